package wasm

// HostModuleName is the import module name host functions are exported under.
const HostModuleName = "host"

// Export names.
const (
	ExportDirectives = "directives"
	ExportMemory     = "memory"
	ImportLogMessage = "log_message"
)

// Log levels accepted by log_message.
const (
	LogLevelDebug uint32 = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// DirectiveInfo describes one directive contributed by an add-on.
type DirectiveInfo struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Pack combines a pointer and a length into one result value.
func Pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unpack splits a packed result into pointer and length.
func Unpack(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}
