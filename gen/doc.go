// Package gen expands dylink extern blocks into lazily bound Go functions.
//
// An input is a Go file excluded from normal builds by a build tag that
// declares body-less function prototypes under two block directives:
//
//	//go:build dylink
//
//	//dylink:link any(name = "libvulkan.so.1", name = "vulkan-1.dll")
//	//dylink:extern "system"
//	package vk
//
//	func vkCreateInstance(info, alloc unsafe.Pointer, out *Instance) Result
//
// The generator writes <input>_dylink.go next to it, constrained to the
// opposite build tag. For every prototype it emits a cache cell that keeps
// the function name and a trampoline that resolves the symbol on first call.
//
// # Pipeline
//
//	decl       directives, prototypes and pass-through declarations (go/parser)
//	annotation link annotation grammar
//	synth      one unit per prototype, trampoline ids from the run's allocator
//	inject     lifecycle bookkeeping for Vulkan create/destroy entry points
//	printer    Go source via go/format
//
// Annotation and block errors reject the whole file. Errors in a single
// prototype reject that prototype only; the rest of the block still expands.
//
// A Generator is one compilation: trampoline ids never repeat across the files
// it processes. Dir parses files concurrently and synthesizes them in file
// name order, so output is deterministic.
package gen
