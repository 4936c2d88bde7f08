package ply

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(count int, props ...string) string {
	var b strings.Builder
	b.WriteString("ply\n")
	b.WriteString("format binary_little_endian 1.0\n")
	b.WriteString("comment generated by test\n")
	fmt.Fprintf(&b, "element vertex %d\n", count)
	for _, p := range props {
		fmt.Fprintf(&b, "property %s\n", p)
	}
	b.WriteString("end_header\n")
	return b.String()
}

func floats(vals ...float32) []byte {
	buf := &bytes.Buffer{}
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

var gaussianProps = []string{
	"float x", "float y", "float z",
	"float scale_0", "float scale_1", "float scale_2",
	"float rot_0", "float rot_1", "float rot_2", "float rot_3",
	"float f_dc_0", "float f_dc_1", "float f_dc_2",
	"float opacity",
}

func gaussianRecord(x, y, z, s0, s1, s2, r0, r1, r2, r3, dc0, dc1, dc2, op float32) []byte {
	return floats(x, y, z, s0, s1, s2, r0, r1, r2, r3, dc0, dc1, dc2, op)
}

func TestDecodeGaussianVertex(t *testing.T) {
	data := []byte(header(1, gaussianProps...))
	data = append(data, gaussianRecord(
		1, 2, 3,
		float32(math.Log(0.5)), float32(math.Log(2)), 0,
		1, 0, 0, 0,
		0.2, 0, -0.2,
		0,
	)...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Count())

	s := cloud.At(0)
	assert.Equal(t, float32(1), s.Position.X())
	assert.Equal(t, float32(3), s.Position.Z())

	assert.InDelta(t, 0.5, s.Scale.X(), 1e-6)
	assert.InDelta(t, 2.0, s.Scale.Y(), 1e-6)
	assert.InDelta(t, 1.0, s.Scale.Z(), 1e-6)

	assert.InDelta(t, 0.5+SH0*0.2, s.Color.X(), 1e-6)
	assert.InDelta(t, 0.5, s.Color.Y(), 1e-6)
	assert.InDelta(t, 0.5-SH0*0.2, s.Color.Z(), 1e-6)

	// logit 0 is half opacity
	assert.InDelta(t, 0.5, s.Opacity, 1e-6)

	assert.Equal(t, float32(1), s.Rotation[0]) // scalar-first
}

func TestDecodeRGBFallback(t *testing.T) {
	data := []byte(header(1,
		"float x", "float y", "float z",
		"uchar red", "uchar green", "uchar blue",
	))
	body := floats(4, 5, 6)
	body = append(body, 255, 0, 128)
	data = append(data, body...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Count())

	s := cloud.At(0)
	assert.InDelta(t, 1.0, s.Color.X(), 1e-6)
	assert.InDelta(t, 0.0, s.Color.Y(), 1e-6)
	assert.InDelta(t, 128.0/255.0, s.Color.Z(), 1e-6)
	// no rotation fields decodes to the identity quaternion
	assert.Equal(t, float32(1), s.Rotation[0])
	assert.Equal(t, float32(0), s.Rotation[1])
	// no scale fields decodes to exp(0)
	assert.Equal(t, float32(1), s.Scale.X())
}

func TestColorAndOpacityClampAtExtremes(t *testing.T) {
	data := []byte(header(2, gaussianProps...))
	data = append(data, gaussianRecord(0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1000, -1000, 1000, 1000)...)
	data = append(data, gaussianRecord(0, 0, 0, 0, 0, 0, 1, 0, 0, 0, -1000, 1000, -1000, -1000)...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	require.Equal(t, 2, cloud.Count())

	hot := cloud.At(0)
	assert.Equal(t, float32(1), hot.Color.X())
	assert.Equal(t, float32(0), hot.Color.Y())
	assert.Equal(t, float32(1), hot.Opacity)

	cold := cloud.At(1)
	assert.Equal(t, float32(0), cold.Color.X())
	assert.Equal(t, float32(1), cold.Color.Y())
	assert.Equal(t, float32(0), cold.Opacity)
}

func TestTruncatedBodyRecoversCompleteRecords(t *testing.T) {
	data := []byte(header(3, gaussianProps...))
	data = append(data, gaussianRecord(1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0)...)
	data = append(data, gaussianRecord(2, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0)...)
	// half of a third record
	data = append(data, floats(3, 0, 0, 0, 0, 0, 0)...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cloud.Count())
	assert.Equal(t, float32(2), cloud.At(1).Position.X())
}

func TestDCPreferredOverRGB(t *testing.T) {
	// Both color encodings present: the DC branch wins, truncation still
	// recovers the two complete records.
	props := append(append([]string{}, gaussianProps...), "uchar red", "uchar green", "uchar blue")
	data := []byte(header(3, props...))
	rec := func(x, dc0 float32) []byte {
		b := gaussianRecord(x, 0, 0, 0, 0, 0, 1, 0, 0, 0, dc0, 0, 0, 0)
		return append(b, 9, 9, 9)
	}
	data = append(data, rec(1, 0.5)...)
	data = append(data, rec(2, -0.5)...)
	data = append(data, rec(3, 0)[:10]...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	require.Equal(t, 2, cloud.Count())
	assert.InDelta(t, 0.5+SH0*0.5, cloud.At(0).Color.X(), 1e-6)
	assert.InDelta(t, 0.5-SH0*0.5, cloud.At(1).Color.X(), 1e-6)
}

func TestMissingTerminatorFails(t *testing.T) {
	data := []byte("ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\n")
	_, err := Decode(data, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_header")
}

func TestBigEndianRejected(t *testing.T) {
	data := []byte("ply\nformat binary_big_endian 1.0\nelement vertex 0\nproperty float x\nend_header\n")
	_, err := Decode(data, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big-endian")
}

func TestASCIIFormatRejected(t *testing.T) {
	data := []byte("ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\nend_header\n")
	_, err := Decode(data, nil)
	require.Error(t, err)
}

func TestUnknownPropertyTypeFails(t *testing.T) {
	data := []byte(header(1, "quad x"))
	_, err := Decode(data, nil)
	require.Error(t, err)
}

func TestHeaderLayout(t *testing.T) {
	h, bodyStart, err := ParseHeader([]byte(header(7,
		"float x", "double y", "uchar red", "short s", "uint n",
	)))
	require.NoError(t, err)
	assert.Equal(t, 7, h.VertexCount)
	assert.Equal(t, 4+8+1+2+4, h.Stride)

	offsets := map[string]int{}
	for _, p := range h.Properties {
		offsets[p.Name] = p.Offset
	}
	assert.Equal(t, 0, offsets["x"])
	assert.Equal(t, 4, offsets["y"])
	assert.Equal(t, 12, offsets["red"])
	assert.Equal(t, 13, offsets["s"])
	assert.Equal(t, 15, offsets["n"])

	assert.Greater(t, bodyStart, 0)
}

func TestOtherElementsIgnored(t *testing.T) {
	data := []byte("ply\n" +
		"format binary_little_endian 1.0\n" +
		"element vertex 1\n" +
		"property float x\nproperty float y\nproperty float z\n" +
		"element face 10\n" +
		"property float something\n" +
		"end_header\n")
	data = append(data, floats(1, 2, 3)...)

	cloud, err := Decode(data, nil)
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Count())
	assert.Equal(t, float32(2), cloud.At(0).Position.Y())
}
