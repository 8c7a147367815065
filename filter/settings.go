package filter

import "encoding/json"

// DefaultAllowedDomain is the WeChat image CDN.
const DefaultAllowedDomain = "mmbiz.qpic.cn"

// Settings holds the per-request filter thresholds. Ratios are width/height.
//
// AspectRatioMin <= AspectRatioMax is deliberately not enforced: inverted
// bounds yield a filter that rejects every image.
type Settings struct {
	// AllowedDomains lists host substrings an image URL must contain.
	AllowedDomains []string `json:"allowed_domains"`

	MinArea   int `json:"min_area" binding:"min=1"`
	MinWidth  int `json:"min_width" binding:"min=1"`
	MinHeight int `json:"min_height" binding:"min=1"`

	AspectRatioMin float64 `json:"aspect_ratio_min" binding:"gt=0"`
	AspectRatioMax float64 `json:"aspect_ratio_max" binding:"gt=0"`

	// TrimLeading and TrimTrailing drop banner-like images from the ends
	// of the domain-filtered list.
	TrimLeading  int `json:"trim_leading" binding:"min=0"`
	TrimTrailing int `json:"trim_trailing" binding:"min=0"`
}

// Defaults returns the settings used when a request carries no overrides.
func Defaults() Settings {
	return Settings{
		AllowedDomains: []string{DefaultAllowedDomain},
		MinArea:        300_000,
		MinWidth:       600,
		MinHeight:      400,
		AspectRatioMin: 0.6,
		AspectRatioMax: 1.8,
		TrimLeading:    2,
		TrimTrailing:   2,
	}
}

// UnmarshalJSON fills fields missing from the payload with their defaults,
// so a partial override such as {"min_width": 800} keeps everything else.
// A null allowed_domains also falls back to the default.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	p := plain(Defaults())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	// An explicit null means "not set"; an explicit [] is honoured.
	if p.AllowedDomains == nil {
		p.AllowedDomains = []string{DefaultAllowedDomain}
	}
	*s = Settings(p)
	return nil
}
