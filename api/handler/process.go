package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slidepdf/api/middleware"
	"github.com/use-agent/slidepdf/models"
	"github.com/use-agent/slidepdf/pipeline"
)

// PageCountHeader reports the number of pages of a synchronous result.
const PageCountHeader = "X-Page-Count"

// Process returns a handler for POST /api/process.
//
// Runs the whole pipeline and answers with the PDF as an attachment, or
// with {"detail": ...} and a status derived from the failing stage.
func Process(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRequest(c)
		if !ok {
			return
		}

		res, err := p.Process(c.Request.Context(), pipeline.Request{
			URL:     req.URL,
			Filters: req.Settings(),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("pdf generated",
			"request_id", middleware.GetRequestID(c),
			"url", req.URL,
			"pages", res.PageCount,
			"bytes", len(res.PDF),
		)
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
		c.Header(PageCountHeader, strconv.Itoa(res.PageCount))
		c.Data(http.StatusOK, "application/pdf", res.PDF)
	}
}

// bindRequest parses and validates the JSON body, answering 422 on failure.
func bindRequest(c *gin.Context) (*models.ProcessRequest, bool) {
	var req models.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: err.Error()})
		return nil, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Detail: err.Error()})
		return nil, false
	}
	return &req, true
}

// respondError maps a pipeline error to the correct HTTP status code and
// writes a JSON error response.
func respondError(c *gin.Context, err error) {
	pe := pipeline.AsError(err)
	status := mapErrorToStatus(pe)

	log := slog.With("request_id", middleware.GetRequestID(c), "kind", pe.Kind, "status", status)
	if status >= http.StatusInternalServerError {
		log.Error("process failed", "error", err)
	} else {
		log.Warn("process failed", "error", err)
	}

	c.JSON(status, models.ErrorResponse{Detail: pe.Message})
}

// mapErrorToStatus translates error kinds to HTTP status codes.
func mapErrorToStatus(e *pipeline.Error) int {
	switch e.Kind {
	case pipeline.KindFetchFailed:
		// The article host's own status is passed through.
		if e.StatusCode > 0 {
			return e.StatusCode
		}
		return http.StatusBadGateway // 502
	case pipeline.KindNoImages,
		pipeline.KindFilteredOut,
		pipeline.KindTrimmedOut,
		pipeline.KindNoValidImages:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
