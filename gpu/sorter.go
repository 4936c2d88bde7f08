package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/shaders"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	sortWorkgroupSize = 256
	// Uniform buffer offsets must be 256-byte aligned, so per-pass params
	// live at this stride.
	passParamsStride = 256

	sortParamsSize = 80 // mat4 view + two u32 counts + padding
)

// DepthSorter produces a back-to-front permutation of splat indices on the
// GPU: a key pass writes view-space Z per slot, then the bitonic network
// runs its full pass schedule. Everything is encoded into the frame's
// command stream, so the rasterizer's reads are ordered after the sort
// without explicit fences.
type DepthSorter struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	keysPipeline *wgpu.ComputePipeline
	sortPipeline *wgpu.ComputePipeline

	paramsUniform *wgpu.Buffer // SortParams, rewritten every frame
	passUniform   *wgpu.Buffer // per-pass (k, j) blocks at passParamsStride

	keysBind    *wgpu.BindGroup
	elementBind *wgpu.BindGroup
	passBinds   []*wgpu.BindGroup

	passes []Pass
	padded int
	count  int
}

func NewDepthSorter(ctx *Context) (*DepthSorter, error) {
	keysModule, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Depth Keys CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.DepthKeysWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("depth keys shader: %w", err)
	}
	defer keysModule.Release()

	sortModule, err := ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Bitonic CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BitonicWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("bitonic shader: %w", err)
	}
	defer sortModule.Release()

	s := &DepthSorter{device: ctx.Device, queue: ctx.Queue}

	s.keysPipeline, err = ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Depth Keys Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     keysModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("depth keys pipeline: %w", err)
	}

	s.sortPipeline, err = ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Bitonic Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     sortModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bitonic pipeline: %w", err)
	}

	s.paramsUniform, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Sort Params",
		Size:  sortParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("sort params buffer: %w", err)
	}
	return s, nil
}

// Bind rebuilds all per-scene bind groups and the pass schedule for a new
// buffer set. Called once per scene load, not per frame.
func (s *DepthSorter) Bind(buffers *SceneBuffers) error {
	s.passes = Schedule(buffers.PaddedCount)
	s.padded = buffers.PaddedCount
	s.count = buffers.SplatCount

	// One uniform block per network pass, selected by static bind offsets.
	passData := make([]byte, len(s.passes)*passParamsStride)
	for i, p := range s.passes {
		off := i * passParamsStride
		binary.LittleEndian.PutUint32(passData[off:], p.K)
		binary.LittleEndian.PutUint32(passData[off+4:], p.J)
		binary.LittleEndian.PutUint32(passData[off+8:], uint32(s.padded))
	}
	if s.passUniform != nil {
		s.passUniform.Release()
	}
	var err error
	s.passUniform, err = s.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Bitonic Pass Params",
		Contents: passData,
		Usage:    wgpu.BufferUsageUniform,
	})
	if err != nil {
		return fmt.Errorf("pass params buffer: %w", err)
	}

	s.releaseBindGroups()

	keysLayout := s.keysPipeline.GetBindGroupLayout(0)
	defer keysLayout.Release()
	s.keysBind, err = s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: keysLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: s.paramsUniform, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: buffers.Positions, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: buffers.SortElements, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("keys bind group: %w", err)
	}

	elemLayout := s.sortPipeline.GetBindGroupLayout(0)
	defer elemLayout.Release()
	s.elementBind, err = s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: elemLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffers.SortElements, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("sort bind group: %w", err)
	}

	passLayout := s.sortPipeline.GetBindGroupLayout(1)
	defer passLayout.Release()
	s.passBinds = make([]*wgpu.BindGroup, len(s.passes))
	for i := range s.passes {
		s.passBinds[i], err = s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: passLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: s.passUniform, Offset: uint64(i * passParamsStride), Size: 16},
			},
		})
		if err != nil {
			return fmt.Errorf("pass %d bind group: %w", i, err)
		}
	}
	return nil
}

// Encode appends the key pass and the whole sort network to the frame's
// command stream. No-op for zero splats.
func (s *DepthSorter) Encode(encoder *wgpu.CommandEncoder, view mgl32.Mat4) {
	if s.count == 0 || s.keysBind == nil {
		return
	}

	params := make([]byte, sortParamsSize)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(params[i*4:], math.Float32bits(view[i]))
	}
	binary.LittleEndian.PutUint32(params[64:], uint32(s.count))
	binary.LittleEndian.PutUint32(params[68:], uint32(s.padded))
	s.queue.WriteBuffer(s.paramsUniform, 0, params)

	workgroups := uint32((s.padded + sortWorkgroupSize - 1) / sortWorkgroupSize)

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(s.keysPipeline)
	pass.SetBindGroup(0, s.keysBind, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)

	pass.SetPipeline(s.sortPipeline)
	pass.SetBindGroup(0, s.elementBind, nil)
	for i := range s.passes {
		pass.SetBindGroup(1, s.passBinds[i], nil)
		pass.DispatchWorkgroups(workgroups, 1, 1)
	}
	// Encoding errors surface again at submit.
	_ = pass.End()
}

func (s *DepthSorter) releaseBindGroups() {
	if s.keysBind != nil {
		s.keysBind.Release()
		s.keysBind = nil
	}
	if s.elementBind != nil {
		s.elementBind.Release()
		s.elementBind = nil
	}
	for _, bg := range s.passBinds {
		bg.Release()
	}
	s.passBinds = nil
}

func (s *DepthSorter) Release() {
	s.releaseBindGroups()
	if s.passUniform != nil {
		s.passUniform.Release()
	}
	if s.paramsUniform != nil {
		s.paramsUniform.Release()
	}
	if s.keysPipeline != nil {
		s.keysPipeline.Release()
	}
	if s.sortPipeline != nil {
		s.sortPipeline.Release()
	}
}
