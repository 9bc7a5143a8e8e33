// Package backend is the registry of GPU drivers available to cmt.
//
// Driver packages register a factory from their init function:
//
//	import _ "github.com/gogpu/cmt/backend/software"
//	import _ "github.com/gogpu/cmt/backend/wgpu"
//
// cmt.OpenDefaultDevice opens the first driver, in priority order, that
// yields a device:
//
//	metal > wgpu > software
//
// Drivers not in the priority list are tried afterwards in name order. A
// specific driver can be requested with Open, or with cmt.WithDriver.
//
// # Available Drivers
//
//   - "metal": Apple Metal through cgo (darwin only)
//   - "wgpu": gogpu/wgpu HAL, Vulkan by default
//   - "software": CPU reference driver (always available)
//
// # Logging
//
// The registry and all drivers log through [Logger], which is silent until
// [SetLogger] (or cmt.SetLogger) installs a logger.
package backend
