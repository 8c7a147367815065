// Package filter selects which candidate images end up in the PDF: a domain
// allow-list and positional trim over URLs, then geometry checks over the
// downloaded bytes.
package filter

import (
	"bytes"
	"image"
	"net/url"
	"strings"

	// Decoders for every format WeChat serves or might serve.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DomainAllowed reports whether the URL's host contains any of the allowed
// substrings. Matching is containment, not suffix: "mmbiz.qpic.cn" also
// matches "sub.mmbiz.qpic.cn" and "mmbiz.qpic.cn.example.com".
func DomainAllowed(rawURL string, allowed []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, domain := range allowed {
		if strings.Contains(u.Host, domain) {
			return true
		}
	}
	return false
}

// FilterDomains keeps the URLs accepted by DomainAllowed, preserving order.
func FilterDomains(urls []string, allowed []string) []string {
	kept := make([]string, 0, len(urls))
	for _, u := range urls {
		if DomainAllowed(u, allowed) {
			kept = append(kept, u)
		}
	}
	return kept
}

// ApplyEdgeTrimming drops the first leading and last trailing URLs. When
// leading+trailing covers the whole list the result is empty. The input is
// never modified.
func ApplyEdgeTrimming(urls []string, leading, trailing int) []string {
	leading = max(leading, 0)
	trailing = max(trailing, 0)
	if leading+trailing >= len(urls) {
		return []string{}
	}
	trimmed := make([]string, len(urls)-leading-trailing)
	copy(trimmed, urls[leading:len(urls)-trailing])
	return trimmed
}

// Image is a downloaded payload with its decoded pixel size.
type Image struct {
	Data   []byte
	Width  int
	Height int
	// Format is the decoder name: "jpeg", "png", "gif", "webp", "bmp" or "tiff".
	Format string
}

// Ratio returns width/height, or 0 when height is 0.
func (img Image) Ratio() float64 {
	if img.Height == 0 {
		return 0
	}
	return float64(img.Width) / float64(img.Height)
}

// Inspect decodes only the image header to learn its size and format.
func Inspect(data []byte) (Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, err
	}
	return Image{Data: data, Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Verify fully decodes the image. Inspect reads only the header, so a
// payload with a valid header and truncated or corrupt pixel data gets
// past it but cannot be embedded.
func Verify(img Image) error {
	_, _, err := image.Decode(bytes.NewReader(img.Data))
	return err
}

// Passes applies the geometry checks. Each check is independent and any
// failure rejects; bounds are inclusive.
func Passes(img Image, s Settings) bool {
	if img.Width < s.MinWidth || img.Height < s.MinHeight {
		return false
	}
	if img.Width*img.Height < s.MinArea {
		return false
	}
	ratio := img.Ratio()
	return ratio >= s.AspectRatioMin && ratio <= s.AspectRatioMax
}

// ImagePassesFilters decodes data and applies Passes. Undecodable data is
// rejected rather than reported as an error.
func ImagePassesFilters(data []byte, s Settings) bool {
	img, err := Inspect(data)
	if err != nil {
		return false
	}
	return Passes(img, s) && Verify(img) == nil
}
