package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/unified-markup-lsp/api/wasm"
)

var _ abi.HostFunctions = (*HostFunctionsImpl)(nil)

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
// The message ends at the first NUL byte, so guests may pass C buffers.
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	mem, ok := NewMemory(mod)
	if !ok {
		h.logger.Error("Module without memory called log_message", zap.String("module", mod.Name()))
		return
	}
	msg, ok := mem.ReadString(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	h.Log(level, mod.Name(), msg)
}

// Log implements abi.HostFunctions.
func (h *HostFunctionsImpl) Log(level uint32, module string, message string) {
	logger := h.logger.With(zap.String("module", module))
	switch level {
	case abi.LogLevelDebug:
		logger.Debug(message)
	case abi.LogLevelInfo:
		logger.Info(message)
	case abi.LogLevelWarn:
		logger.Warn(message)
	case abi.LogLevelError:
		logger.Error(message)
	default:
		logger.Info(message)
	}
}

// instantiateHost exports the host functions to the runtime. Guests import
// them from the "host" module, so this must happen before any guest is
// instantiated, and only once per runtime.
func (r *Runtime) instantiateHost(ctx context.Context, impl *HostFunctionsImpl) error {
	r.hostOnce.Do(func() {
		_, err := r.runtime.NewHostModuleBuilder(abi.HostModuleName).
			NewFunctionBuilder().
			WithFunc(impl.logMessage).
			WithParameterNames("level", "ptr", "length").
			Export(abi.ImportLogMessage).
			Instantiate(ctx)
		if err != nil {
			r.hostErr = &HostFunctionError{FunctionName: abi.ImportLogMessage, Err: err}
		}
	})
	return r.hostErr
}
