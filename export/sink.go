// Package export drives offline frame export: a tagged state machine that
// paces capture through the external encoder collaborator, plus a PNG
// sequence sink used headless and in tests.
package export

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// FrameSink receives committed frames in presentation order. The real video
// encoder lives outside this module; anything that satisfies this contract
// can stand on the other end. Pixels are tightly packed 32-bit BGRA.
type FrameSink interface {
	AppendFrame(pix []byte, width, height int, pts float64) error
	Finish() error
}

// PNGSequenceSink writes numbered PNG files into a directory. When Width and
// Height are set and differ from the incoming frame, the frame is rescaled
// with Catmull-Rom resampling.
type PNGSequenceSink struct {
	Dir    string
	Prefix string

	// Optional fixed output size; zero means keep the incoming size.
	Width  int
	Height int

	frames int
}

func (s *PNGSequenceSink) AppendFrame(pix []byte, width, height int, pts float64) error {
	if len(pix) < width*height*4 {
		return fmt.Errorf("png sink: short frame, got %d bytes for %dx%d", len(pix), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		// BGRA in, RGBA out.
		img.Pix[i*4+0] = pix[i*4+2]
		img.Pix[i*4+1] = pix[i*4+1]
		img.Pix[i*4+2] = pix[i*4+0]
		img.Pix[i*4+3] = pix[i*4+3]
	}

	var out image.Image = img
	if s.Width > 0 && s.Height > 0 && (s.Width != width || s.Height != height) {
		scaled := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = scaled
	}

	prefix := s.Prefix
	if prefix == "" {
		prefix = "frame"
	}
	name := filepath.Join(s.Dir, fmt.Sprintf("%s_%05d.png", prefix, s.frames))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return fmt.Errorf("png sink: encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("png sink: %w", err)
	}
	s.frames++
	return nil
}

func (s *PNGSequenceSink) Finish() error { return nil }

// Frames reports how many frames were written.
func (s *PNGSequenceSink) Frames() int { return s.frames }
