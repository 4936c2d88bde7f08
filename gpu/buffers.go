package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/cogentcore/webgpu/wgpu"
)

// sortElementSize is the byte stride of one (key, index) pair.
const sortElementSize = 8

// SceneBuffers is the GPU-resident form of one loaded scene: the splat
// structure-of-arrays plus the padded sort array. A set is built whole and
// swapped whole; a live set is never mutated after upload, so in-flight
// frames can keep reading the previous set during a reload.
type SceneBuffers struct {
	Positions *wgpu.Buffer
	Scales    *wgpu.Buffer
	Colors    *wgpu.Buffer
	Rotations *wgpu.Buffer

	// SortElements holds PaddedCount (key, index) pairs; padding slots get a
	// +inf sentinel key each frame so they sort to the tail.
	SortElements *wgpu.Buffer

	SplatCount  int
	PaddedCount int
}

// NewSceneBuffers uploads a splat cloud. An empty cloud still produces valid
// one-element buffers so bind group creation never sees a zero-sized binding;
// the draw itself is skipped for zero splats.
func NewSceneBuffers(device *wgpu.Device, cloud *core.SplatCloud) (*SceneBuffers, error) {
	b := &SceneBuffers{
		SplatCount:  cloud.Count(),
		PaddedCount: cloud.PaddedCount(),
	}

	var err error
	if b.Positions, err = createStorageInit(device, "Splat Positions", pad16(cloud.PackPositions())); err != nil {
		return nil, err
	}
	if b.Scales, err = createStorageInit(device, "Splat Scales", pad16(cloud.PackScales())); err != nil {
		b.Release()
		return nil, err
	}
	if b.Colors, err = createStorageInit(device, "Splat Colors", pad16(cloud.PackColors())); err != nil {
		b.Release()
		return nil, err
	}
	if b.Rotations, err = createStorageInit(device, "Splat Rotations", pad16(cloud.PackRotations())); err != nil {
		b.Release()
		return nil, err
	}

	sort := make([]byte, b.PaddedCount*sortElementSize)
	for i := 0; i < b.PaddedCount; i++ {
		off := i * sortElementSize
		binary.LittleEndian.PutUint32(sort[off:], math.Float32bits(core.PadSentinelKey))
		binary.LittleEndian.PutUint32(sort[off+4:], uint32(i))
	}
	if b.SortElements, err = createStorageInit(device, "Sort Elements", sort); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (b *SceneBuffers) Release() {
	for _, buf := range []*wgpu.Buffer{b.Positions, b.Scales, b.Colors, b.Rotations, b.SortElements} {
		if buf != nil {
			buf.Release()
		}
	}
	b.Positions, b.Scales, b.Colors, b.Rotations, b.SortElements = nil, nil, nil, nil, nil
}

func createStorageInit(device *wgpu.Device, label string, data []byte) (*wgpu.Buffer, error) {
	buf, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s buffer: %w", label, err)
	}
	return buf, nil
}

// pad16 guarantees a non-empty, 16-byte aligned upload.
func pad16(data []byte) []byte {
	if len(data) == 0 {
		return make([]byte, 16)
	}
	if rem := len(data) % 16; rem != 0 {
		data = append(data, make([]byte, 16-rem)...)
	}
	return data
}
