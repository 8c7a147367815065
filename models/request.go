package models

import (
	"errors"
	"net/url"

	"github.com/use-agent/slidepdf/filter"
)

// ProcessRequest is the payload for POST /api/process and
// POST /api/process-stream.
type ProcessRequest struct {
	// URL is the article to convert. Required; http or https only.
	URL string `json:"url" binding:"required,url"`

	// Filters overrides the default filter thresholds. Omitted fields
	// keep their defaults; null or absent means all defaults.
	Filters *filter.Settings `json:"filters"`
}

// ErrUnsupportedScheme rejects URLs the fetcher cannot retrieve.
var ErrUnsupportedScheme = errors.New("url must use http or https")

// Validate checks what binding tags cannot express.
func (r *ProcessRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	return nil
}

// Settings returns the effective filter settings.
func (r *ProcessRequest) Settings() filter.Settings {
	if r.Filters == nil {
		return filter.Defaults()
	}
	return *r.Filters
}
