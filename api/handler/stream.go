package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/slidepdf/api/middleware"
	"github.com/use-agent/slidepdf/pipeline"
)

// ProcessStream returns a handler for POST /api/process-stream.
//
// Body validation happens before the stream opens, so a bad request still
// gets a plain 422. After that every pipeline event becomes one SSE frame
// whose data is the JSON-encoded event; the last frame is either
// "completed" (with the base64 PDF) or "error". A client disconnect
// cancels the request context, which stops outstanding downloads.
func ProcessStream(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRequest(c)
		if !ok {
			return
		}

		c.Header("Content-Type", sse.ContentType)
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		var last pipeline.Event
		for ev := range p.Stream(c.Request.Context(), pipeline.Request{
			URL:     req.URL,
			Filters: req.Settings(),
		}) {
			c.Render(-1, sse.Event{Data: ev})
			c.Writer.Flush()
			last = ev
		}

		slog.Info("stream finished",
			"request_id", middleware.GetRequestID(c),
			"url", req.URL,
			"stage", last.Stage,
			"error_kind", last.ErrorKind,
		)
	}
}
