// Package pdf lays slide images out one per landscape A4 page.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/use-agent/slidepdf/filter"
	"golang.org/x/image/draw"
)

// ErrNoImages is returned by Build when there is nothing to lay out.
var ErrNoImages = errors.New("pdf: no images to assemble")

// Placement is where an image lands on a page, in points.
type Placement struct {
	X, Y          float64
	Width, Height float64
	Scale         float64
}

// Layout scales an image uniformly to fit the page, never enlarging it, and
// centers it. Pixel dimensions are taken as points (72 dpi).
func Layout(imgW, imgH int, pageW, pageH float64) Placement {
	if imgW <= 0 || imgH <= 0 {
		return Placement{}
	}
	w, h := float64(imgW), float64(imgH)
	scale := min(pageW/w, pageH/h, 1.0)
	drawW, drawH := w*scale, h*scale
	return Placement{
		X:      (pageW - drawW) / 2,
		Y:      (pageH - drawH) / 2,
		Width:  drawW,
		Height: drawH,
		Scale:  scale,
	}
}

// Options sets document metadata.
type Options struct {
	Title string

	// CreatedAt is written as the creation and modification date. Output is
	// byte-identical for identical images and CreatedAt. Zero means now.
	CreatedAt time.Time
}

// Build renders one page per image, in order.
func Build(images []filter.Image, opts Options) ([]byte, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	created := opts.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	doc := fpdf.New("L", "pt", "A4", "")
	doc.SetCatalogSort(true)
	doc.SetCreationDate(created)
	doc.SetModificationDate(created)
	doc.SetCreator("slidepdf", true)
	if opts.Title != "" {
		doc.SetTitle(opts.Title, true)
	}
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	pageW, pageH := doc.GetPageSize()

	for i, img := range images {
		data, imageType, err := embeddable(img)
		if err != nil {
			return nil, fmt.Errorf("pdf: prepare image %d: %w", i+1, err)
		}

		name := fmt.Sprintf("slide-%03d", i+1)
		imgOpts := fpdf.ImageOptions{ImageType: imageType}
		doc.RegisterImageOptionsReader(name, imgOpts, bytes.NewReader(data))
		if doc.Err() {
			return nil, fmt.Errorf("pdf: register image %d: %w", i+1, doc.Error())
		}

		p := Layout(img.Width, img.Height, pageW, pageH)
		doc.AddPage()
		doc.ImageOptions(name, p.X, p.Y, p.Width, p.Height, false, imgOpts, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

// embeddable returns bytes the PDF writer can embed directly. JPEG passes
// through untouched; everything else is flattened to 8-bit PNG.
func embeddable(img filter.Image) ([]byte, string, error) {
	if img.Format == "jpeg" {
		return img.Data, "JPG", nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", err
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "PNG", nil
}
