package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/shaders"
	"github.com/cogentcore/webgpu/wgpu"
)

const frameUniformsSize = 160 // view + proj + viewport + focal + count + pad

// sceneFormat is the fixed offscreen color format. BGRA matches both the
// common surface format and the 32-bit BGRA contract of the export path.
const sceneFormat = wgpu.TextureFormatBGRA8Unorm

// Renderer draws sorted gaussian splats into an offscreen scene texture and
// presents it with a fullscreen blit. All GPU state lives here, owned by one
// controller; nothing is package-global.
//
// If pipeline creation fails the renderer stays in a no-pipeline state:
// frames still clear and present, splats are simply never drawn. The error
// is surfaced once at construction.
type Renderer struct {
	ctx *Context
	log core.Logger

	sorter *DepthSorter

	splatPipeline *wgpu.RenderPipeline
	blitPipeline  *wgpu.RenderPipeline
	sampler       *wgpu.Sampler

	uniformBuf  *wgpu.Buffer
	uniformBind *wgpu.BindGroup
	splatBind   *wgpu.BindGroup
	blitBind    *wgpu.BindGroup

	sceneTexture *wgpu.Texture
	sceneView    *wgpu.TextureView

	buffers *SceneBuffers
}

// NewRenderer builds every pipeline up front. On failure the renderer is
// still returned and usable (it draws nothing); the cause is logged once and
// also returned for the caller to surface.
func NewRenderer(ctx *Context, log core.Logger) (*Renderer, error) {
	r := &Renderer{ctx: ctx, log: core.OrNop(log)}
	if err := r.init(); err != nil {
		r.log.Errorf("renderer disabled, pipeline init failed: %v", err)
		r.splatPipeline = nil
		return r, err
	}
	return r, nil
}

func (r *Renderer) init() error {
	var err error
	r.sorter, err = NewDepthSorter(r.ctx)
	if err != nil {
		return err
	}

	splatModule, err := r.ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Splat Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SplatWGSL},
	})
	if err != nil {
		return fmt.Errorf("splat shader: %w", err)
	}
	defer splatModule.Release()

	blitModule, err := r.ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return fmt.Errorf("blit shader: %w", err)
	}
	defer blitModule.Release()

	// Premultiplied-alpha "over": the fragment stage already multiplied rgb
	// by alpha, and draw order is the sorter's back-to-front permutation.
	premultiplied := &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			Operation: wgpu.BlendOperationAdd,
		},
	}

	r.splatPipeline, err = r.ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Splat Pipeline",
		Vertex: wgpu.VertexState{
			Module:     splatModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     splatModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    sceneFormat,
				Blend:     premultiplied,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleStrip,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("splat pipeline: %w", err)
	}

	r.blitPipeline, err = r.ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Present Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    r.ctx.Config.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("blit pipeline: %w", err)
	}

	r.sampler, err = r.ctx.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}

	r.uniformBuf, err = r.ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Frame Uniforms",
		Size:  frameUniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("frame uniforms: %w", err)
	}

	uniformLayout := r.splatPipeline.GetBindGroupLayout(0)
	defer uniformLayout.Release()
	r.uniformBind, err = r.ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.uniformBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("uniform bind group: %w", err)
	}

	return r.setupSceneTexture(int(r.ctx.Config.Width), int(r.ctx.Config.Height))
}

func (r *Renderer) setupSceneTexture(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if r.sceneView != nil {
		r.sceneView.Release()
	}
	if r.sceneTexture != nil {
		r.sceneTexture.Release()
	}

	var err error
	r.sceneTexture, err = r.ctx.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Scene Color",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        sceneFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("scene texture: %w", err)
	}
	r.sceneView, err = r.sceneTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("scene view: %w", err)
	}

	if r.blitBind != nil {
		r.blitBind.Release()
	}
	blitLayout := r.blitPipeline.GetBindGroupLayout(0)
	defer blitLayout.Release()
	r.blitBind, err = r.ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: r.sceneView},
			{Binding: 1, Sampler: r.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("blit bind group: %w", err)
	}
	return nil
}

// Ready reports whether pipeline init succeeded.
func (r *Renderer) Ready() bool { return r.splatPipeline != nil }

// SceneView exposes the offscreen color view for the capture path.
func (r *Renderer) SceneView() *wgpu.TextureView { return r.sceneView }

func (r *Renderer) Sampler() *wgpu.Sampler { return r.sampler }

// SetScene uploads a new splat cloud and swaps the full buffer set
// atomically. The previous set is released only after the swap, so a reload
// never leaves the renderer with a partial scene.
func (r *Renderer) SetScene(cloud *core.SplatCloud) error {
	if !r.Ready() {
		return fmt.Errorf("renderer has no pipeline")
	}

	buffers, err := NewSceneBuffers(r.ctx.Device, cloud)
	if err != nil {
		return err
	}
	if err := r.sorter.Bind(buffers); err != nil {
		buffers.Release()
		return err
	}

	splatLayout := r.splatPipeline.GetBindGroupLayout(1)
	defer splatLayout.Release()
	splatBind, err := r.ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: splatLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffers.Positions, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: buffers.Scales, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: buffers.Colors, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: buffers.Rotations, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: buffers.SortElements, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		buffers.Release()
		return fmt.Errorf("splat bind group: %w", err)
	}

	old, oldBind := r.buffers, r.splatBind
	r.buffers, r.splatBind = buffers, splatBind
	if oldBind != nil {
		oldBind.Release()
	}
	if old != nil {
		old.Release()
	}

	r.log.Infof("scene buffers: %d splats, %d padded sort slots",
		buffers.SplatCount, buffers.PaddedCount)
	return nil
}

// SplatCount returns the size of the currently loaded scene.
func (r *Renderer) SplatCount() int {
	if r.buffers == nil {
		return 0
	}
	return r.buffers.SplatCount
}

func (r *Renderer) Resize(width, height int) {
	r.ctx.Resize(width, height)
	if r.Ready() {
		if err := r.setupSceneTexture(width, height); err != nil {
			r.log.Errorf("resize: %v", err)
		}
	}
}

func (r *Renderer) writeFrameUniforms(cam *core.OrbitCamera) {
	width := int(r.ctx.Config.Width)
	height := int(r.ctx.Config.Height)
	view := cam.ViewMatrix()
	proj := cam.ProjMatrix()
	focalX, focalY := core.FocalPixels(proj, width, height)

	buf := make([]byte, frameUniformsSize)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(view[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(proj[i]))
	}
	binary.LittleEndian.PutUint32(buf[128:], math.Float32bits(float32(width)))
	binary.LittleEndian.PutUint32(buf[132:], math.Float32bits(float32(height)))
	binary.LittleEndian.PutUint32(buf[136:], math.Float32bits(focalX))
	binary.LittleEndian.PutUint32(buf[140:], math.Float32bits(focalY))
	binary.LittleEndian.PutUint32(buf[144:], uint32(r.SplatCount()))
	r.ctx.Queue.WriteBuffer(r.uniformBuf, 0, buf)
}

// RenderFrame encodes and submits one complete frame: sort, splat pass into
// the scene texture, present blit, and (optionally) the capture copy.
// Everything rides one ordered submission, so the rasterizer never reads a
// half-sorted permutation and the capture never reads a half-drawn frame.
func (r *Renderer) RenderFrame(cam *core.OrbitCamera, capture *CaptureTarget) error {
	surfaceTexture, err := r.ctx.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface: %w", err)
	}
	defer surfaceTexture.Release()
	surfaceView, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("surface view: %w", err)
	}
	defer surfaceView.Release()

	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}

	drawSplats := r.Ready() && r.buffers != nil && r.buffers.SplatCount > 0
	if drawSplats {
		r.writeFrameUniforms(cam)
		r.sorter.Encode(encoder, cam.ViewMatrix())
	}

	scenePass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       r.sceneView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	if drawSplats {
		scenePass.SetPipeline(r.splatPipeline)
		scenePass.SetBindGroup(0, r.uniformBind, nil)
		scenePass.SetBindGroup(1, r.splatBind, nil)
		// Exactly SplatCount instances: padding slots are never drawn.
		scenePass.Draw(4, uint32(r.buffers.SplatCount), 0, 0)
	}
	_ = scenePass.End()

	if r.Ready() {
		blitPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       surfaceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			}},
		})
		blitPass.SetPipeline(r.blitPipeline)
		blitPass.SetBindGroup(0, r.blitBind, nil)
		blitPass.Draw(3, 1, 0, 0)
		_ = blitPass.End()
	}

	if capture != nil {
		capture.Encode(encoder, r.sceneTexture)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	r.ctx.Queue.Submit(cmd)
	r.ctx.Surface.Present()
	return nil
}

func (r *Renderer) Release() {
	if r.splatBind != nil {
		r.splatBind.Release()
	}
	if r.buffers != nil {
		r.buffers.Release()
	}
	if r.blitBind != nil {
		r.blitBind.Release()
	}
	if r.uniformBind != nil {
		r.uniformBind.Release()
	}
	if r.uniformBuf != nil {
		r.uniformBuf.Release()
	}
	if r.sceneView != nil {
		r.sceneView.Release()
	}
	if r.sceneTexture != nil {
		r.sceneTexture.Release()
	}
	if r.sampler != nil {
		r.sampler.Release()
	}
	if r.blitPipeline != nil {
		r.blitPipeline.Release()
	}
	if r.splatPipeline != nil {
		r.splatPipeline.Release()
	}
	if r.sorter != nil {
		r.sorter.Release()
	}
}
