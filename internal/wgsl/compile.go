package wgsl

import (
	"github.com/gogpu/naga"

	"github.com/gogpu/cmt/gpucore"
	"github.com/gogpu/cmt/internal/cache"
)

// CompileError codes shared by the drivers that accept WGSL.
const (
	CodeInvalidSource = 1
	CodeReflection    = 2
)

// ModuleCacheSize bounds the number of compiled modules kept in memory.
const ModuleCacheSize = 64

// Compiled is a validated WGSL source: its SPIR-V translation and its
// reflection. Values are shared between libraries and must not be
// modified.
type Compiled struct {
	SPIRV  []byte
	Module *Module
}

var compiled = cache.New[string, *Compiled](ModuleCacheSize)

// Compile validates src with naga and reflects it. Results are cached by
// source text, so libraries built from the same source share one module.
// Failures are returned as *gpucore.CompileError in the "naga" or "wgsl"
// domain.
func Compile(src string) (*Compiled, error) {
	return compiled.GetOrCreate(src, func() (*Compiled, error) {
		spirv, err := naga.Compile(src)
		if err != nil {
			return nil, &gpucore.CompileError{Domain: "naga", Code: CodeInvalidSource, Description: err.Error()}
		}
		mod, err := Parse(src)
		if err != nil {
			return nil, &gpucore.CompileError{Domain: "wgsl", Code: CodeReflection, Description: err.Error()}
		}
		return &Compiled{SPIRV: spirv, Module: mod}, nil
	})
}

// CacheStats reports the activity of the module cache.
func CacheStats() cache.Stats { return compiled.Stats() }
