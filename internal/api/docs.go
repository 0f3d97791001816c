package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
)

var openAPIPaths = []string{
	"/docs/openapi.yaml",
	"docs/openapi.yaml",
	filepath.Join("..", "..", "docs", "openapi.yaml"),
}

const redocPage = `<!doctype html>
<html><head><title>%s</title><meta charset="utf-8"/></head>
<body>
<redoc spec-url="/openapi.yaml"></redoc>
<script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
</body></html>`

// openAPIDoc reads the first openapi.yaml found and keeps it for the life of
// the process. A miss is retried on the next request.
type openAPIDoc struct {
	mu      sync.Mutex
	content []byte
}

func (d *openAPIDoc) load() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.content != nil {
		return d.content, nil
	}
	var err error
	for _, path := range openAPIPaths {
		var b []byte
		if b, err = os.ReadFile(path); err == nil {
			d.content = b
			return b, nil
		}
	}
	return nil, err
}

// RegisterDocs serves the redoc page and the raw OpenAPI document.
func RegisterDocs(r gin.IRoutes, title string) {
	doc := &openAPIDoc{}
	r.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(redocPage, title)))
	})
	r.GET("/openapi.yaml", func(c *gin.Context) {
		content, err := doc.load()
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error":       "openapi.yaml not found",
				"tried_paths": openAPIPaths,
			})
			return
		}
		c.Data(http.StatusOK, "application/x-yaml", content)
	})
}
