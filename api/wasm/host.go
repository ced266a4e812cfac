//go:build !wasm

package wasm

// HostFunctions defines what the server provides to add-on modules under the
// "host" import module. Guests call log_message(level, ptr, length); the host
// reads the message out of guest memory and hands it to Log.
type HostFunctions interface {
	// Log records a message emitted by the named module.
	// level: 0 = debug, 1 = info, 2 = warn, 3 = error.
	Log(level uint32, module string, message string)
}
