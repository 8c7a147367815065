package pdf

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/use-agent/slidepdf/filter"
)

var pageObject = regexp.MustCompile(`/Type /Page\b`)

func countPages(doc []byte) int {
	return len(pageObject.FindAll(doc, -1))
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func inspect(t *testing.T, data []byte) filter.Image {
	t.Helper()
	img, err := filter.Inspect(data)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	return img
}

func jpegImage(t *testing.T, w, h int) filter.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return inspect(t, buf.Bytes())
}

func pngImage(t *testing.T, w, h int) filter.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return inspect(t, buf.Bytes())
}

func gifImage(t *testing.T, w, h int) filter.Image {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, solid(w, h), nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return inspect(t, buf.Bytes())
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestLayout(t *testing.T) {
	const pageW, pageH = 841.89, 595.28
	tests := []struct {
		name      string
		w, h      int
		wantScale float64
	}{
		{"wide slide is scaled to page width", 1920, 1080, pageW / 1920},
		{"tall image is scaled to page height", 1000, 2000, pageH / 2000},
		{"small image is never upscaled", 400, 300, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Layout(tt.w, tt.h, pageW, pageH)
			if !approx(p.Scale, tt.wantScale) {
				t.Errorf("scale = %v, want %v", p.Scale, tt.wantScale)
			}
			if p.Width > pageW+1e-6 || p.Height > pageH+1e-6 {
				t.Errorf("placement %vx%v overflows page", p.Width, p.Height)
			}
			if !approx(p.Width/p.Height, float64(tt.w)/float64(tt.h)) {
				t.Errorf("aspect ratio not preserved: %v vs %v", p.Width/p.Height, float64(tt.w)/float64(tt.h))
			}
			if !approx(p.X*2+p.Width, pageW) || !approx(p.Y*2+p.Height, pageH) {
				t.Errorf("placement not centered: %+v", p)
			}
		})
	}
}

func TestLayout_ZeroSize(t *testing.T) {
	if p := Layout(0, 100, 841.89, 595.28); p != (Placement{}) {
		t.Errorf("Layout(0, 100) = %+v, want zero placement", p)
	}
}

func TestBuild_OnePagePerImage(t *testing.T) {
	images := []filter.Image{
		jpegImage(t, 1200, 800),
		pngImage(t, 640, 480),
		gifImage(t, 320, 240),
	}

	doc, err := Build(images, Options{Title: "Deck", CreatedAt: time.Unix(1700000000, 0)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Errorf("output does not look like a PDF: %q", doc[:min(len(doc), 8)])
	}
	if got := countPages(doc); got != 3 {
		t.Errorf("pages = %d, want 3", got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	images := []filter.Image{jpegImage(t, 800, 600), pngImage(t, 800, 600)}
	opts := Options{CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	a, err := Build(images, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := Build(images, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical input and creation time produced different output")
	}
}

func TestBuild_NoImages(t *testing.T) {
	if _, err := Build(nil, Options{}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Build(nil) error = %v, want ErrNoImages", err)
	}
}
