package wasm

import (
	"errors"

	"github.com/tetratelabs/wazero/api"

	abi "github.com/woxQAQ/unified-markup-lsp/api/wasm"
)

var errOutOfRange = errors.New("out of range")

// Memory provides bounds-checked reads of a module's linear memory.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory helper. It returns false when the module
// exports no memory.
func NewMemory(module api.Module) (*Memory, bool) {
	mem := module.Memory()
	if mem == nil {
		return nil, false
	}
	return &Memory{mem: mem}, true
}

// ReadString reads a string of at most maxLen bytes, stopping at the first
// NUL byte.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadBytes copies length bytes at ptr out of Wasm memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, error) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{
			Operation: "read",
			Address:   ptr,
			Length:    length,
			Err:       errOutOfRange,
		}
	}
	// Read returns a view; the module may reuse the region afterwards.
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// ReadPacked reads the region described by a packed (ptr, length) result.
func (m *Memory) ReadPacked(packed uint64) ([]byte, error) {
	ptr, length := abi.Unpack(packed)
	return m.ReadBytes(ptr, length)
}
