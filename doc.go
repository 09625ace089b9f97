// Package dylink is the runtime half of lazily bound native functions.
//
// The dylink generator (cmd/dylink) turns a block of body-less Go function
// prototypes into one cache cell per function. Each cell is a *LazyFn that
// starts out holding a trampoline with the prototype's exact signature. The
// first call through the trampoline resolves the native symbol under the
// block's link strategy, binds it, stores it in the cell and forwards the call.
// Every later call goes straight to the stored function.
//
// # Link strategies
//
//	WellKnown(Vulkan)           vkGetInstanceProcAddr / vkGetDeviceProcAddr dispatch
//	WellKnown(OpenGL)           GL library exports, then the platform get-proc-address
//	Named("libfoo.so")          a single library
//	NamedAny("a.so", "b.dll")   libraries tried in order, first hit wins
//
// # Generated code
//
//	var vkCreateInstance = dylink.NewLazyFn[func(info, alloc unsafe.Pointer, out *Instance) int32](
//		"vkCreateInstance", "system", dylink.WellKnown(dylink.Vulkan))
//
//	func init() { vkCreateInstance.Init(__initializer0) }
//
// Cells whose calls need bookkeeping are declared with Wrap; the wrapper is
// applied to whatever function the cell publishes.
//
// Callers invoke vkCreateInstance.Get()(info, nil, &inst).
//
// # Lifecycle tracking
//
// Generated Vulkan entry points that create or destroy instances and devices
// record the handles in Instances and Devices. The Vulkan resolver uses them to
// reach instance- and device-level commands.
//
// # Failure
//
// Resolution failure is fatal for the call that triggered it: Resolve panics
// with an *errors.Error naming the symbol and the reason. A cell never retries.
// Use TryResolve to check for optional symbols.
//
// # Logging
//
// The runtime logs through zap. It is silent by default; see SetLogger.
package dylink
