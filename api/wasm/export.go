//go:build wasm

package wasm

// This file documents the exports an add-on module provides to the server.
// Add-ons implement them with //go:wasmexport (or the equivalent in other
// toolchains).
//
// NOTE: pointers and lengths are uint32 because WebAssembly uses a 32-bit
// linear memory model. Results that carry both are packed into a single
// uint64 with Pack, pointer in the high half.
// See: https://github.com/golang/go/issues/59156

// Exported functions add-ons may implement:
//
// //go:wasmexport directives
// func directives() uint64
//
// directives returns Pack(ptr, length) of a JSON array of DirectiveInfo
// stored in the module's exported memory. The memory must stay untouched
// until the call returns.
