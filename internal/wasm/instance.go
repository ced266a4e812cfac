package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/unified-markup-lsp/api/wasm"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	module  api.Module
	runtime *Runtime

	ID        string
	Name      string
	CreatedAt int64

	closeOnce sync.Once
	closeErr  error
}

// Instantiate creates a new instance of a compiled module.
// The host module is exported to the runtime first, so guests may import it.
func (m *InstanceManager) Instantiate(ctx context.Context, moduleName string) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(moduleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: moduleName}
	}

	if err := m.runtime.instantiateHost(ctx, m.hostFuncs); err != nil {
		return nil, err
	}

	limit := m.runtime.config.MaxInstances
	if n := m.runtime.active.Add(1); limit > 0 && int(n) > limit {
		m.runtime.active.Add(-1)
		return nil, &InstanceLimitError{ModuleName: moduleName, Limit: limit}
	}

	instanceID := fmt.Sprintf("inst-%d", m.runtime.nextID.Add(1))

	m.logger.Debug("Instantiating Wasm module",
		zap.String("module", moduleName),
		zap.String("instance_id", instanceID),
	)

	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions() // no _start; add-ons are libraries

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		m.runtime.active.Add(-1)
		return nil, &InstantiationError{
			ModuleName: moduleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	instance := &Instance{
		module:    module,
		runtime:   m.runtime,
		ID:        instanceID,
		Name:      moduleName,
		CreatedAt: time.Now().Unix(),
	}

	m.runtime.instances.Store(instanceID, instance)

	return instance, nil
}

// Close closes the instance and releases resources. Safe to call twice.
func (i *Instance) Close(ctx context.Context) error {
	i.closeOnce.Do(func() {
		i.runtime.instances.Delete(i.ID)
		i.runtime.active.Add(-1)
		i.closeErr = i.module.Close(ctx)
	})
	return i.closeErr
}

// Directives calls the module's directives export and decodes the result.
// A module without the export contributes nothing and returns
// FunctionNotFoundError.
func (i *Instance) Directives(ctx context.Context) ([]abi.DirectiveInfo, error) {
	fn := i.module.ExportedFunction(abi.ExportDirectives)
	if fn == nil {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: abi.ExportDirectives}
	}

	callCtx, cancel := i.runtime.callContext(ctx)
	defer cancel()

	start := time.Now()
	results, err := fn.Call(callCtx)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Duration: time.Since(start)}
		}
		return nil, &CallError{ModuleName: i.Name, FunctionName: abi.ExportDirectives, Err: err}
	}
	if len(results) != 1 {
		return nil, &CallError{
			ModuleName:   i.Name,
			FunctionName: abi.ExportDirectives,
			Err:          fmt.Errorf("expected 1 result, got %d", len(results)),
		}
	}

	mem, ok := NewMemory(i.module)
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: abi.ExportMemory}
	}
	data, err := mem.ReadPacked(results[0])
	if err != nil {
		return nil, err
	}

	var directives []abi.DirectiveInfo
	if err := json.Unmarshal(data, &directives); err != nil {
		return nil, &CallError{ModuleName: i.Name, FunctionName: abi.ExportDirectives, Err: err}
	}

	if i.runtime.config.DebugEnabled {
		i.runtime.logger.Debug("Module returned directives",
			zap.String("module", i.Name),
			zap.Int("count", len(directives)),
		)
	}

	return directives, nil
}
