package rollups

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/rollup"
	rollupService "github.com/stadvdb/olap-insights/internal/service/rollup"
)

type RollupsHandler struct {
	log     *zap.Logger
	svc     *rollupService.RollupService
	catalog *catalog.Catalog
}

func NewRollupsHandler(log *zap.Logger, svc *rollupService.RollupService, catalog *catalog.Catalog) *RollupsHandler {
	return &RollupsHandler{log: log, svc: svc, catalog: catalog}
}

// Register adds one GET route per spec in the catalog.
func (h *RollupsHandler) Register(r gin.IRoutes) {
	for _, spec := range h.catalog.Specs() {
		r.GET(spec.Path, h.serve(spec))
	}
}

func (h *RollupsHandler) serve(spec rollup.Spec) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := map[string]string{}
		for key, values := range c.Request.URL.Query() {
			if len(values) > 0 {
				raw[key] = values[0]
			}
		}
		rows, err := h.svc.Run(c.Request.Context(), spec, raw)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}
