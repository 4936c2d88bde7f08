// Package ply decodes binary PLY point clouds into splat scenes.
//
// The format is a newline-delimited ASCII header terminated by "end_header",
// followed by a packed binary body of fixed-stride vertex records. Gaussian
// splat exporters store log scales, opacity logits, and spherical-harmonics
// DC color terms; decoding applies the inverse transforms so the rest of the
// renderer only ever sees linear values.
package ply

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/DINKIssTyle/DINKIssTyle-Sharp-3DGS/core"
	"github.com/go-gl/mathgl/mgl32"
)

// SH0 is the zeroth spherical-harmonics basis constant; color = 0.5 + SH0*dc.
const SH0 = 0.28209479177387814

const headerTerminator = "end_header"

type PropertyType uint8

const (
	Float32 PropertyType = iota
	Float64
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
)

var typeNames = map[string]PropertyType{
	"float":   Float32,
	"float32": Float32,
	"double":  Float64,
	"float64": Float64,
	"char":    Int8,
	"int8":    Int8,
	"uchar":   UInt8,
	"uint8":   UInt8,
	"short":   Int16,
	"int16":   Int16,
	"ushort":  UInt16,
	"uint16":  UInt16,
	"int":     Int32,
	"int32":   Int32,
	"uint":    UInt32,
	"uint32":  UInt32,
}

func (t PropertyType) Size() int {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Float64:
		return 8
	default:
		return 4
	}
}

// Property is one named scalar of the vertex record, at a fixed byte offset.
type Property struct {
	Name   string
	Type   PropertyType
	Offset int
}

// Header describes the vertex element layout declared by the ASCII header.
type Header struct {
	VertexCount int
	Stride      int
	Properties  []Property
}

func (h *Header) property(name string) (Property, bool) {
	for _, p := range h.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// ParseHeader reads the ASCII header and returns it together with the byte
// offset of the binary body (one past the end_header line terminator).
// Big-endian bodies are rejected: no splat exporter emits them, and decoding
// one as little-endian would produce garbage silently.
func ParseHeader(data []byte) (*Header, int, error) {
	term := []byte(headerTerminator)
	idx := bytes.Index(data, term)
	if idx < 0 {
		return nil, 0, fmt.Errorf("ply: missing %q terminator", headerTerminator)
	}
	bodyStart := idx + len(term)
	// Consume one trailing CR/LF or LF after the terminator.
	if bodyStart < len(data) && data[bodyStart] == '\r' {
		bodyStart++
	}
	if bodyStart < len(data) && data[bodyStart] == '\n' {
		bodyStart++
	}

	h := &Header{}
	inVertex := false
	for lineNo, line := range strings.Split(string(data[:idx]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "ply", "comment", "obj_info":
			continue
		case "format":
			if len(fields) < 2 {
				return nil, 0, fmt.Errorf("ply: malformed format line %d", lineNo+1)
			}
			switch fields[1] {
			case "binary_little_endian":
				// the only supported encoding
			case "binary_big_endian":
				return nil, 0, fmt.Errorf("ply: big-endian bodies are not supported")
			default:
				return nil, 0, fmt.Errorf("ply: unsupported format %q", fields[1])
			}
		case "element":
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("ply: malformed element line %d", lineNo+1)
			}
			inVertex = fields[1] == "vertex"
			if inVertex {
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return nil, 0, fmt.Errorf("ply: bad vertex count %q", fields[2])
				}
				h.VertexCount = n
			}
		case "property":
			if !inVertex {
				continue
			}
			if len(fields) >= 2 && fields[1] == "list" {
				return nil, 0, fmt.Errorf("ply: list properties are not supported for vertices")
			}
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("ply: malformed property line %d", lineNo+1)
			}
			t, ok := typeNames[fields[1]]
			if !ok {
				return nil, 0, fmt.Errorf("ply: unknown property type %q", fields[1])
			}
			h.Properties = append(h.Properties, Property{
				Name:   fields[2],
				Type:   t,
				Offset: h.Stride,
			})
			h.Stride += t.Size()
		}
	}
	if h.Stride == 0 {
		return nil, 0, fmt.Errorf("ply: header declares no vertex properties")
	}
	return h, bodyStart, nil
}

func readScalar(rec []byte, p Property) float32 {
	b := rec[p.Offset:]
	switch p.Type {
	case Float32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case Float64:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case Int8:
		return float32(int8(b[0]))
	case UInt8:
		return float32(b[0])
	case Int16:
		return float32(int16(binary.LittleEndian.Uint16(b)))
	case UInt16:
		return float32(binary.LittleEndian.Uint16(b))
	case Int32:
		return float32(int32(binary.LittleEndian.Uint32(b)))
	default:
		return float32(binary.LittleEndian.Uint32(b))
	}
}

// fieldReader resolves a property once and then reads it per record.
// Missing properties read as the fallback value.
type fieldReader struct {
	prop     Property
	present  bool
	fallback float32
}

func (h *Header) field(name string, fallback float32) fieldReader {
	p, ok := h.property(name)
	return fieldReader{prop: p, present: ok, fallback: fallback}
}

func (f fieldReader) read(rec []byte) float32 {
	if !f.present {
		return f.fallback
	}
	return readScalar(rec, f.prop)
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Decode parses a complete PLY byte buffer into a splat cloud.
//
// A truncated body is recovered by decoding only the complete records, with
// a warning; a missing header terminator fails the whole load.
func Decode(data []byte, log core.Logger) (*core.SplatCloud, error) {
	log = core.OrNop(log)

	h, bodyStart, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[bodyStart:]

	count := h.VertexCount
	if avail := len(body) / h.Stride; avail < count {
		log.Warnf("ply: body truncated, %d of %d vertex records present", avail, count)
		count = avail
	}

	x := h.field("x", 0)
	y := h.field("y", 0)
	z := h.field("z", 0)
	s0 := h.field("scale_0", 0)
	s1 := h.field("scale_1", 0)
	s2 := h.field("scale_2", 0)
	// Scalar-first quaternion; missing rotation decodes to identity.
	r0 := h.field("rot_0", 1)
	r1 := h.field("rot_1", 0)
	r2 := h.field("rot_2", 0)
	r3 := h.field("rot_3", 0)
	opacity := h.field("opacity", 0)

	dc0, hasDC := h.property("f_dc_0")
	dc1 := h.field("f_dc_1", 0)
	dc2 := h.field("f_dc_2", 0)
	red := h.field("red", 0)
	green := h.field("green", 0)
	blue := h.field("blue", 0)

	cloud := core.NewSplatCloud(count)
	for i := 0; i < count; i++ {
		rec := body[i*h.Stride : (i+1)*h.Stride]

		var color mgl32.Vec3
		if hasDC {
			color = mgl32.Vec3{
				clamp01(0.5 + SH0*readScalar(rec, dc0)),
				clamp01(0.5 + SH0*dc1.read(rec)),
				clamp01(0.5 + SH0*dc2.read(rec)),
			}
		} else {
			color = mgl32.Vec3{
				clamp01(red.read(rec) / 255.0),
				clamp01(green.read(rec) / 255.0),
				clamp01(blue.read(rec) / 255.0),
			}
		}

		cloud.Append(core.Splat{
			Position: mgl32.Vec3{x.read(rec), y.read(rec), z.read(rec)},
			Scale: mgl32.Vec3{
				expf(s0.read(rec)),
				expf(s1.read(rec)),
				expf(s2.read(rec)),
			},
			Color:    color,
			Opacity:  clamp01(sigmoid(opacity.read(rec))),
			Rotation: mgl32.Vec4{r0.read(rec), r1.read(rec), r2.read(rec), r3.read(rec)},
		})
	}

	log.Infof("ply: loaded %d splats (stride %d bytes, %d properties)",
		cloud.Count(), h.Stride, len(h.Properties))
	return cloud, nil
}

func expf(x float32) float32 {
	return float32(math.Exp(float64(x)))
}
