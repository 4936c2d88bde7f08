package shaders

import (
	_ "embed"
)

//go:embed splat.wgsl
var SplatWGSL string

//go:embed depth_keys.wgsl
var DepthKeysWGSL string

//go:embed bitonic.wgsl
var BitonicWGSL string

//go:embed blit.wgsl
var BlitWGSL string
