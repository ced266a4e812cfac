// Package wasmtest assembles small Wasm binaries for tests of the add-on ABI.
package wasmtest

import (
	abi "github.com/woxQAQ/unified-markup-lsp/api/wasm"
)

// Module describes a guest exporting memory and a directives function.
type Module struct {
	// Payload is placed in memory at PayloadAt and returned by directives.
	Payload   string
	PayloadAt uint32

	// Packed overrides the value directives returns when non-zero.
	Packed uint64

	// LogMessage, when set, is passed to host.log_message at LogLevel
	// before directives returns.
	LogMessage string
	LogLevel   uint32

	// Spin makes directives loop forever.
	Spin bool

	// NoDirectives omits the directives export.
	NoDirectives bool
}

const logMessageAt = 4096

// Empty is the smallest valid module: no imports, no exports.
var Empty = []byte{
	0x00, 0x61, 0x73, 0x6d, // \0asm
	0x01, 0x00, 0x00, 0x00, // version 1
}

// Bytes encodes the module.
func (m Module) Bytes() []byte {
	out := append([]byte(nil), Empty...)

	hasImport := m.LogMessage != ""

	// types: 0 = () -> i64, 1 = (i32, i32, i32) -> ()
	types := vec(2,
		[]byte{0x60, 0x00, 0x01, 0x7e},
		[]byte{0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00},
	)
	out = append(out, section(1, types)...)

	if hasImport {
		imp := concat(name(abi.HostModuleName), name(abi.ImportLogMessage), []byte{0x00}, uleb(1))
		out = append(out, section(2, vec(1, imp))...)
	}

	funcIndex := uint64(0)
	if hasImport {
		funcIndex = 1
	}

	out = append(out, section(3, vec(1, uleb(0)))...)
	out = append(out, section(5, vec(1, []byte{0x00, 0x01}))...)

	exports := [][]byte{concat(name(abi.ExportMemory), []byte{0x02}, uleb(0))}
	if !m.NoDirectives {
		exports = append(exports, concat(name(abi.ExportDirectives), []byte{0x00}, uleb(funcIndex)))
	}
	out = append(out, section(7, vec(len(exports), exports...))...)

	packed := m.Packed
	if packed == 0 {
		packed = abi.Pack(m.PayloadAt, uint32(len(m.Payload)))
	}

	var body []byte
	body = append(body, 0x00) // no locals
	if m.Spin {
		body = append(body, 0x03, 0x40, 0x0c, 0x00, 0x0b) // loop br 0 end
	}
	if hasImport {
		body = append(body, 0x41)
		body = append(body, sleb(int64(m.LogLevel))...)
		body = append(body, 0x41)
		body = append(body, sleb(logMessageAt)...)
		body = append(body, 0x41)
		body = append(body, sleb(int64(len(m.LogMessage)))...)
		body = append(body, 0x10)
		body = append(body, uleb(0)...)
	}
	body = append(body, 0x42)
	body = append(body, sleb(int64(packed))...)
	body = append(body, 0x0b)
	out = append(out, section(10, vec(1, concat(uleb(uint64(len(body))), body)))...)

	segments := [][]byte{dataSegment(m.PayloadAt, []byte(m.Payload))}
	if hasImport {
		segments = append(segments, dataSegment(logMessageAt, []byte(m.LogMessage)))
	}
	out = append(out, section(11, vec(len(segments), segments...))...)

	return out
}

func dataSegment(offset uint32, data []byte) []byte {
	seg := []byte{0x00, 0x41}
	seg = append(seg, sleb(int64(offset))...)
	seg = append(seg, 0x0b)
	seg = append(seg, uleb(uint64(len(data)))...)
	return append(seg, data...)
}

func section(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint64(len(content))), content)
}

func vec(n int, items ...[]byte) []byte {
	return concat(append([][]byte{uleb(uint64(n))}, items...)...)
}

func name(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		out = append(out, b)
		if done {
			return out
		}
	}
}
