package wasmhost

// Hand-assembled guest used by the tests. Its eval forwards the script text
// to editor_bridge.call as a request envelope and returns the response, so
// a test drives the bridge by sending request JSON as the script:
//
//	(import "editor_bridge" "call" (func $call (param i32 i32 i32)))
//	(import "editor_bridge" "call_async" (func $call_async (param i32 i32 i32)))
//	(memory (export "memory") 1)
//	(global $heap (mut i32) (i32.const 1024))
//	(func (export "malloc") (param i32) (result i32) ...bump...)
//	(func (export "free") (param i32))
//	(func (export "eval") (param i32 i32 i32) (result i64)
//	  (call $call (local.get 1) (local.get 2) (i32.const 0))
//	  (i64.or (i64.shl (i64.extend_i32_u (i32.load (i32.const 0))) (i64.const 32))
//	          (i64.extend_i32_u (i32.load (i32.const 4)))))
//	(func (export "attach") (param i32) (i32.store (i32.const 20) (local.get 0)))
//	(func (export "async_callback") (param i32 i32 i32) ...stores id, ptr, len at 16, 8, 12...)
//	(func (export "request_async") (param i32 i32 i32)
//	  (call $call_async (local.get 0) (local.get 1) (local.get 2)))

const (
	i32 = 0x7f
	i64 = 0x7e

	attachSlot   = 20
	asyncPtrSlot = 8
	asyncLenSlot = 12
	asyncIDSlot  = 16
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)
	return append(out, results...)
}

func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	b = append(b, 0x0b)
	return append(uleb(uint32(len(b))), b...)
}

func export(name string, kind byte, idx uint32) []byte {
	return append(append(wasmName(name), kind), uleb(idx)...)
}

func store(addr byte, local byte) []byte {
	return []byte{0x41, addr, 0x20, local, 0x36, 0x02, 0x00}
}

// echoGuest returns the test guest module.
func echoGuest() []byte {
	const (
		tVoid3 = iota // (i32 i32 i32) -> ()
		tAlloc        // (i32) -> i32
		tVoid1        // (i32) -> ()
		tEval         // (i32 i32 i32) -> i64
	)
	types := vec(
		funcType([]byte{i32, i32, i32}, nil),
		funcType([]byte{i32}, []byte{i32}),
		funcType([]byte{i32}, nil),
		funcType([]byte{i32, i32, i32}, []byte{i64}),
	)
	imports := vec(
		append(append(wasmName(HostModule), wasmName("call")...), 0x00, tVoid3),
		append(append(wasmName(HostModule), wasmName("call_async")...), 0x00, tVoid3),
	)
	// Function indices 0 and 1 are the imports.
	funcs := vec([]byte{tAlloc}, []byte{tVoid1}, []byte{tEval}, []byte{tVoid1}, []byte{tVoid3}, []byte{tVoid3})
	memory := vec([]byte{0x00, 0x01})
	globals := vec([]byte{i32, 0x01, 0x41, 0x80, 0x08, 0x0b}) // mut i32 = 1024
	exports := vec(
		export("memory", 0x02, 0),
		export("malloc", 0x00, 2),
		export("free", 0x00, 3),
		export("eval", 0x00, 4),
		export("attach", 0x00, 5),
		export("async_callback", 0x00, 6),
		export("request_async", 0x00, 7),
	)

	malloc := body(
		0x23, 0x00, // global.get heap (result)
		0x23, 0x00, // global.get heap
		0x20, 0x00, // local.get size
		0x6a,       // i32.add
		0x24, 0x00, // global.set heap
	)
	free := body()
	eval := body(
		0x20, 0x01, 0x20, 0x02, 0x41, 0x00, 0x10, 0x00, // call $call(ptr, len, 0)
		0x41, 0x00, 0x28, 0x02, 0x00, // i32.load [0]
		0xad,       // i64.extend_i32_u
		0x42, 0x20, // i64.const 32
		0x86,                         // i64.shl
		0x41, 0x04, 0x28, 0x02, 0x00, // i32.load [4]
		0xad, // i64.extend_i32_u
		0x84, // i64.or
	)
	attach := body(store(attachSlot, 0)...)
	var callback []byte
	callback = append(callback, store(asyncPtrSlot, 1)...)
	callback = append(callback, store(asyncLenSlot, 2)...)
	callback = append(callback, store(asyncIDSlot, 0)...)
	asyncCallback := body(callback...)
	requestAsync := body(0x20, 0x00, 0x20, 0x01, 0x20, 0x02, 0x10, 0x01)

	code := vec(malloc, free, eval, attach, asyncCallback, requestAsync)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(2, imports)...)
	out = append(out, section(3, funcs)...)
	out = append(out, section(5, memory)...)
	out = append(out, section(6, globals)...)
	out = append(out, section(7, exports)...)
	out = append(out, section(10, code)...)
	return out
}
