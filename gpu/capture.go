package gpu

import (
	"fmt"
	"sync"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/shaders"
	"github.com/cogentcore/webgpu/wgpu"
)

// Capture states. A frame is committed only once the readback map succeeds;
// until then the target is busy and no further capture may be encoded.
const (
	captureIdle = iota
	captureCopying // copy encoded into a submitted frame
	captureMapping // MapAsync issued, waiting on the GPU
	captureMapped  // mapped, data ready to hand off
	captureFailed  // map came back unsuccessful, error pending pickup
)

// CaptureTarget grabs rendered frames into an offscreen BGRA texture at the
// export resolution, resampling on the GPU when that differs from the live
// resolution, and reads them back asynchronously.
type CaptureTarget struct {
	ctx *Context

	Width  uint32
	Height uint32

	srcWidth  uint32
	srcHeight uint32

	texture  *wgpu.Texture
	view     *wgpu.TextureView
	readback *wgpu.Buffer

	resamplePipeline *wgpu.RenderPipeline
	resampleBind     *wgpu.BindGroup

	bytesPerRow uint32

	mu    sync.Mutex
	state int
}

// NewCaptureTarget sizes the target for the requested export resolution.
// srcView is the live scene texture the resample pass samples from.
func NewCaptureTarget(ctx *Context, width, height int, srcView *wgpu.TextureView, sampler *wgpu.Sampler, srcWidth, srcHeight int) (*CaptureTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("capture: invalid target size %dx%d", width, height)
	}
	t := &CaptureTarget{
		ctx:       ctx,
		Width:     uint32(width),
		Height:    uint32(height),
		srcWidth:  uint32(srcWidth),
		srcHeight: uint32(srcHeight),
	}
	// Rows must be 256-byte aligned for texture-to-buffer copies.
	t.bytesPerRow = (t.Width*4 + 255) &^ uint32(255)

	var err error
	t.texture, err = ctx.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Capture Target",
		Size:          wgpu.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        sceneFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("capture texture: %w", err)
	}
	t.view, err = t.texture.CreateView(nil)
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("capture view: %w", err)
	}

	t.readback, err = ctx.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Capture Readback",
		Size:  uint64(t.bytesPerRow * t.Height),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("capture readback buffer: %w", err)
	}

	if t.needsResample() {
		if err := t.setupResample(srcView, sampler); err != nil {
			t.Release()
			return nil, err
		}
	}
	return t, nil
}

func (t *CaptureTarget) needsResample() bool {
	return t.Width != t.srcWidth || t.Height != t.srcHeight
}

func (t *CaptureTarget) setupResample(srcView *wgpu.TextureView, sampler *wgpu.Sampler) error {
	module, err := t.ctx.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Resample Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BlitWGSL},
	})
	if err != nil {
		return fmt.Errorf("resample shader: %w", err)
	}
	defer module.Release()

	t.resamplePipeline, err = t.ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Resample Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    sceneFormat,
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
		return fmt.Errorf("resample pipeline: %w", err)
	}

	layout := t.resamplePipeline.GetBindGroupLayout(0)
	defer layout.Release()
	t.resampleBind, err = t.ctx.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: srcView},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("resample bind group: %w", err)
	}
	return nil
}

// Busy reports whether a captured frame is still in flight. The caller must
// not encode another capture until the previous one resolved.
func (t *CaptureTarget) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != captureIdle
}

// Encode appends the resample (or direct copy) and the readback copy to the
// frame's command stream. Caller checked Busy first.
func (t *CaptureTarget) Encode(encoder *wgpu.CommandEncoder, sceneTexture *wgpu.Texture) {
	t.mu.Lock()
	if t.state != captureIdle {
		t.mu.Unlock()
		return
	}
	t.state = captureCopying
	t.mu.Unlock()

	if t.needsResample() {
		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       t.view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			}},
		})
		pass.SetPipeline(t.resamplePipeline)
		pass.SetBindGroup(0, t.resampleBind, nil)
		pass.Draw(3, 1, 0, 0)
		_ = pass.End()
	} else {
		encoder.CopyTextureToTexture(
			sceneTexture.AsImageCopy(),
			t.texture.AsImageCopy(),
			&wgpu.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
		)
	}

	encoder.CopyTextureToBuffer(
		t.texture.AsImageCopy(),
		&wgpu.ImageCopyBuffer{
			Buffer: t.readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  t.bytesPerRow,
				RowsPerImage: t.Height,
			},
		},
		&wgpu.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
	)
}

// Resolve advances the readback state machine and, when a frame has fully
// landed, hands the tightly packed BGRA pixels to fn. Call it every loop
// tick while exporting; fn runs at most once per captured frame and only
// after the GPU finished writing it. A readback whose map never succeeded is
// returned as an error exactly once, with the target back at idle, so the
// caller can abort its run instead of waiting on a frame that will never
// arrive.
func (t *CaptureTarget) Resolve(fn func(pix []byte, width, height int)) error {
	t.mu.Lock()
	if t.state == captureCopying {
		t.state = captureMapping
		t.mu.Unlock()
		t.readback.MapAsync(wgpu.MapModeRead, 0, t.readback.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
			t.mu.Lock()
			defer t.mu.Unlock()
			if status == wgpu.BufferMapAsyncStatusSuccess {
				t.state = captureMapped
			} else {
				t.state = captureFailed
			}
		})
	} else {
		t.mu.Unlock()
	}

	t.ctx.Device.Poll(false, nil)

	t.mu.Lock()
	if t.state == captureFailed {
		t.state = captureIdle
		t.mu.Unlock()
		return fmt.Errorf("capture: readback map failed")
	}
	if t.state != captureMapped {
		t.mu.Unlock()
		return nil
	}
	mapped := t.readback.GetMappedRange(0, uint(t.readback.GetSize()))
	pix := make([]byte, t.Width*t.Height*4)
	rowLen := int(t.Width * 4)
	for y := 0; y < int(t.Height); y++ {
		src := mapped[y*int(t.bytesPerRow):]
		copy(pix[y*rowLen:(y+1)*rowLen], src[:rowLen])
	}
	t.readback.Unmap()
	t.state = captureIdle
	t.mu.Unlock()

	if fn != nil {
		fn(pix, int(t.Width), int(t.Height))
	}
	return nil
}

func (t *CaptureTarget) Release() {
	if t.resampleBind != nil {
		t.resampleBind.Release()
	}
	if t.resamplePipeline != nil {
		t.resamplePipeline.Release()
	}
	if t.readback != nil {
		t.readback.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.texture != nil {
		t.texture.Release()
	}
}
