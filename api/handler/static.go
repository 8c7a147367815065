package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slidepdf/models"
)

// Static returns a fallback handler serving the front-end bundle in dir,
// with index.html for directories. Returns nil when dir does not exist.
func Static(dir string) gin.HandlerFunc {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}

	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			NotFound(c)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "not found"})
}
