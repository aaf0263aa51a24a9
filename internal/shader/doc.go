// Package shader checks shader input against the binding contract of a
// render-object type and prepares it for the device.
//
// Two source forms are accepted: WGSL text and SPIR-V words. For each form
// the package can list the declared resource bindings (group/binding pairs)
// and the entry points, so that a pipeline can reject a shader whose bind
// group count differs from what its render-object type allocates before any
// GPU object is created.
//
// WGSL goes through the gogpu/naga front end (ParseWGSL). The lowered IR
// answers the binding and entry point queries, and generates SPIR-V when the
// explicit backend needs bytecode. SPIR-V input is scanned word by word.
package shader
