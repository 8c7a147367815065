package main

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/use-agent/slidepdf/pipeline"
)

func TestDescribe(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name string
		ev   pipeline.Event
		want string
	}{
		{
			name: "stage only",
			ev:   pipeline.Event{Stage: pipeline.StageFetchingHTML},
			want: "fetching_html",
		},
		{
			name: "download counters",
			ev:   pipeline.Event{Stage: pipeline.StageDownloadingImages, Current: 3, Total: 6, Kept: 2},
			want: "downloading_images 3/6 (kept 2)",
		},
		{
			name: "download start has no counters",
			ev:   pipeline.Event{Stage: pipeline.StageDownloadingImages},
			want: "downloading_images",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(strings.Fields(describe(tt.ev)), " ")
			if got != tt.want {
				t.Errorf("describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
