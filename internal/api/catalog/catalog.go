package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/stadvdb/olap-insights/internal/catalog"
	"github.com/stadvdb/olap-insights/internal/rollup"
	"github.com/stadvdb/olap-insights/internal/store/warehouse"
)

type DimensionInfo struct {
	Key            string `json:"key"`
	Column         string `json:"column"`
	Name           string `json:"name"`
	FilterSentinel string `json:"filter_sentinel"`
	TotalLabel     string `json:"total_label"`
	Derived        bool   `json:"derived"`
}

type MeasureInfo struct {
	Key       string `json:"key"`
	Aggregate string `json:"aggregate"`
	Precision int    `json:"precision"`
}

type SpecInfo struct {
	Key        string          `json:"key"`
	Path       string          `json:"path"`
	Title      string          `json:"title"`
	Dimensions []DimensionInfo `json:"dimensions"`
	Measures   []MeasureInfo   `json:"measures"`
}

type CatalogHandler struct {
	log       *zap.Logger
	catalog   *catalog.Catalog
	warehouse *warehouse.WarehouseRepository
}

func NewCatalogHandler(log *zap.Logger, catalog *catalog.Catalog, warehouse *warehouse.WarehouseRepository) *CatalogHandler {
	return &CatalogHandler{log: log, catalog: catalog, warehouse: warehouse}
}

func (h *CatalogHandler) Register(r gin.IRoutes) {
	r.GET("/api/catalog", h.list)
	r.GET("/api/dimensions/:key/values", h.values)
}

func (h *CatalogHandler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rollups": lo.Map(h.catalog.Specs(), func(s rollup.Spec, _ int) SpecInfo {
		return describe(s)
	})})
}

func (h *CatalogHandler) values(c *gin.Context) {
	key := c.Param("key")
	d, ok := h.catalog.Dimension(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown dimension " + key})
		return
	}
	values, err := h.warehouse.DimensionValues(c.Request.Context(), d)
	if err != nil {
		h.log.Error("dimension values failed", zap.String("dimension", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dimension": key, "values": values})
}

func describe(s rollup.Spec) SpecInfo {
	return SpecInfo{
		Key:   s.Key,
		Path:  s.Path,
		Title: s.Title,
		Dimensions: lo.Map(s.Dimensions, func(d rollup.Dimension, _ int) DimensionInfo {
			return DimensionInfo{
				Key:            d.Key,
				Column:         d.Column,
				Name:           d.Name,
				FilterSentinel: d.FilterSentinel(),
				TotalLabel:     d.TotalLabel(),
				Derived:        d.Bucket != nil,
			}
		}),
		Measures: lo.Map(s.Measures, func(m rollup.Measure, _ int) MeasureInfo {
			return MeasureInfo{Key: m.Key, Aggregate: string(m.Agg), Precision: m.Precision}
		}),
	}
}
