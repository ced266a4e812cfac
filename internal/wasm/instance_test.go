package wasm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	abi "github.com/woxQAQ/unified-markup-lsp/api/wasm"
	"github.com/woxQAQ/unified-markup-lsp/internal/wasm/wasmtest"
)

const directivesJSON = `[{"name":"component","summary":"Declares a component."},{"name":"slot","summary":"Names a slot."}]`

func newTestRuntime(t *testing.T, config *RuntimeConfig) (*Runtime, *ModuleLoader, *InstanceManager) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	runtime, err := NewRuntime(context.Background(), logger, config)
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(context.Background()) })

	return runtime, NewModuleLoader(runtime, logger), NewInstanceManager(runtime, NewHostFunctions(logger), logger)
}

// instantiate loads mod under name and returns a fresh instance of it.
func instantiate(t *testing.T, loader *ModuleLoader, instances *InstanceManager, name string, mod []byte) *Instance {
	t.Helper()
	ctx := context.Background()

	_, err := loader.LoadModuleFromMemory(ctx, name, mod)
	require.NoError(t, err)
	inst, err := instances.Instantiate(ctx, name)
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close(context.Background()) })
	return inst
}

func TestLoadModuleFromMemory(t *testing.T) {
	_, loader, _ := newTestRuntime(t, nil)
	ctx := context.Background()

	module, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	require.NoError(t, err)
	assert.Equal(t, "test-module", module.Name)

	// Same bytes hit the cache.
	module2, err := loader.LoadModuleFromMemory(ctx, "test-module", wasmtest.Empty)
	require.NoError(t, err)
	assert.Same(t, module, module2)
}

func TestLoadModuleRecompilesChangedBytes(t *testing.T) {
	_, loader, _ := newTestRuntime(t, nil)
	ctx := context.Background()

	first, err := loader.LoadModuleFromMemory(ctx, "addon", wasmtest.Empty)
	require.NoError(t, err)

	changed := wasmtest.Module{Payload: directivesJSON}.Bytes()
	second, err := loader.LoadModuleFromMemory(ctx, "addon", changed)
	require.NoError(t, err)

	assert.NotSame(t, first, second, "changed bytecode is recompiled")
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestLoadModuleFromFile(t *testing.T) {
	_, loader, _ := newTestRuntime(t, nil)

	wasmFile := filepath.Join(t.TempDir(), "test.wasm")
	require.NoError(t, os.WriteFile(wasmFile, wasmtest.Empty, 0o644))

	module, err := loader.LoadModuleFromFile(context.Background(), wasmFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(wasmtest.Empty)), module.SizeBytes)
}

func TestLoadModuleInvalidBytes(t *testing.T) {
	_, loader, _ := newTestRuntime(t, nil)

	_, err := loader.LoadModuleFromMemory(context.Background(), "bad", []byte("not wasm"))

	var compErr *CompilationError
	assert.ErrorAs(t, err, &compErr)
}

func TestInstanceDirectives(t *testing.T) {
	runtime, loader, instances := newTestRuntime(t, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		module wasmtest.Module
	}{
		{"at zero", wasmtest.Module{Payload: directivesJSON}},
		{"at offset", wasmtest.Module{Payload: directivesJSON, PayloadAt: 1024}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := loader.LoadModuleFromMemory(ctx, c.name, c.module.Bytes())
			require.NoError(t, err)

			inst, err := instances.Instantiate(ctx, c.name)
			require.NoError(t, err)
			defer inst.Close(ctx)

			got, err := inst.Directives(ctx)
			require.NoError(t, err)
			assert.Equal(t, []abi.DirectiveInfo{
				{Name: "component", Summary: "Declares a component."},
				{Name: "slot", Summary: "Names a slot."},
			}, got)
		})
	}

	assert.Zero(t, runtime.ActiveInstances(), "all instances closed")
}

func TestInstanceDirectivesMissingExport(t *testing.T) {
	_, loader, instances := newTestRuntime(t, nil)
	inst := instantiate(t, loader, instances, "empty", wasmtest.Empty)

	_, err := inst.Directives(context.Background())

	var notFound *FunctionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, abi.ExportDirectives, notFound.FunctionName)
}

func TestInstanceDirectivesOutOfRange(t *testing.T) {
	_, loader, instances := newTestRuntime(t, nil)
	inst := instantiate(t, loader, instances, "oob", wasmtest.Module{Packed: abi.Pack(65000, 1000)}.Bytes())

	_, err := inst.Directives(context.Background())

	var memErr *MemoryAccessError
	assert.ErrorAs(t, err, &memErr)
}

func TestInstanceDirectivesBadJSON(t *testing.T) {
	_, loader, instances := newTestRuntime(t, nil)
	inst := instantiate(t, loader, instances, "badjson", wasmtest.Module{Payload: `{"not":"a list"`}.Bytes())

	_, err := inst.Directives(context.Background())

	var callErr *CallError
	assert.ErrorAs(t, err, &callErr)
}

func TestInstanceDirectivesTimeout(t *testing.T) {
	config := DefaultRuntimeConfig()
	config.ExecutionTimeout = 50 * time.Millisecond
	_, loader, instances := newTestRuntime(t, config)
	inst := instantiate(t, loader, instances, "spin", wasmtest.Module{Spin: true}.Bytes())

	_, err := inst.Directives(context.Background())

	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func newObservedRuntime(t *testing.T) (*ModuleLoader, *InstanceManager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	runtime, err := NewRuntime(context.Background(), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { runtime.Close(context.Background()) })

	return NewModuleLoader(runtime, logger), NewInstanceManager(runtime, NewHostFunctions(logger), logger), logs
}

func TestGuestCallsHostLog(t *testing.T) {
	loader, instances, logs := newObservedRuntime(t)
	ctx := context.Background()

	mod := wasmtest.Module{
		Payload:    `[]`,
		LogMessage: "hello from guest",
		LogLevel:   abi.LogLevelWarn,
	}
	_, err := loader.LoadModuleFromMemory(ctx, "chatty", mod.Bytes())
	require.NoError(t, err)

	// Two instances share the one host module.
	for i := 0; i < 2; i++ {
		inst, err := instances.Instantiate(ctx, "chatty")
		require.NoError(t, err, "guest importing host")
		_, err = inst.Directives(ctx)
		require.NoError(t, err)
		inst.Close(ctx)
	}

	entries := logs.FilterMessage("hello from guest").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestGuestLogStopsAtNUL(t *testing.T) {
	loader, instances, logs := newObservedRuntime(t)

	mod := wasmtest.Module{
		Payload:    `[]`,
		LogMessage: "fixed buffer\x00\x00stale bytes",
		LogLevel:   abi.LogLevelInfo,
	}
	inst := instantiate(t, loader, instances, "cbuf", mod.Bytes())

	_, err := inst.Directives(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("fixed buffer").Len())
	assert.Zero(t, logs.FilterMessageSnippet("stale").Len())
}

func TestInstanceLimit(t *testing.T) {
	config := DefaultRuntimeConfig()
	config.MaxInstances = 1
	runtime, loader, instances := newTestRuntime(t, config)
	ctx := context.Background()

	_, err := loader.LoadModuleFromMemory(ctx, "one", wasmtest.Empty)
	require.NoError(t, err)

	first, err := instances.Instantiate(ctx, "one")
	require.NoError(t, err)

	_, err = instances.Instantiate(ctx, "one")
	var limitErr *InstanceLimitError
	require.ErrorAs(t, err, &limitErr)

	first.Close(ctx)
	first.Close(ctx)
	require.Zero(t, runtime.ActiveInstances(), "double close releases once")

	second, err := instances.Instantiate(ctx, "one")
	require.NoError(t, err, "instantiate after close")
	second.Close(ctx)
}

func TestInstantiateUnknownModule(t *testing.T) {
	_, _, instances := newTestRuntime(t, nil)

	_, err := instances.Instantiate(context.Background(), "missing")

	var notFound *ModuleNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
