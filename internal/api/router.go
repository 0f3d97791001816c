package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	catalogHandler "github.com/stadvdb/olap-insights/internal/api/catalog"
	"github.com/stadvdb/olap-insights/internal/api/rollups"
	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/config"
	"github.com/stadvdb/olap-insights/internal/middleware"
	"github.com/stadvdb/olap-insights/internal/rollup"
	rollupService "github.com/stadvdb/olap-insights/internal/service/rollup"
	"github.com/stadvdb/olap-insights/internal/store/warehouse"
)

// Deps are the collaborators the routes need. Redis and Audit may be nil.
type Deps struct {
	Config    config.Config
	Catalog   *catalog.Catalog
	Warehouse rollup.Querier
	Redis     *redis.Client
	Audit     rollupService.Publisher
}

// RegisterRoutes wires all HTTP routes.
func RegisterRoutes(r *gin.Engine, log *zap.Logger, deps Deps) {
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORS(deps.Config.CORSOrigin))

	paths := make([]string, 0, len(deps.Catalog.Specs()))
	for _, s := range deps.Catalog.Specs() {
		paths = append(paths, s.Path)
	}
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "OLAP Insights",
			"description": "Rollup statistics for occupancy, tourism arrivals and ratings by country, time, listing type and rating band.",
			"version":     "1.0.0",
			"docs":        "/docs",
			"endpoints":   append([]string{"/v1/health", "/api/catalog", "/api/dimensions/:key/values"}, paths...),
		})
	})
	r.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterDocs(r, "OLAP Insights API")

	limited := r.Group("", middleware.HybridRateLimit(deps.Redis, deps.Config.RateLimitRPS, deps.Config.RateLimitBurst))

	// When the warehouse is unreachable the rollup endpoints answer 500.
	svc := rollupService.NewRollupService(log, deps.Warehouse, deps.Audit)
	repo := warehouse.NewWarehouseRepository(deps.Warehouse, log)

	rollups.NewRollupsHandler(log, svc, deps.Catalog).Register(limited)
	catalogHandler.NewCatalogHandler(log, deps.Catalog, repo).Register(limited)
}
