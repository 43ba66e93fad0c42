package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/pkg/response"
)

// CacheClearer drops all cached read results
type CacheClearer interface {
	Invalidate(ctx context.Context) error
}

// SpotFeed upgrades a request to the live spot availability stream
type SpotFeed interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// ParkingHandler serves the catalog reads shared by admins and users,
// the live spot feed and cache management
type ParkingHandler struct {
	queryService *service.QueryService
	cache        CacheClearer
	feed         SpotFeed
}

// NewParkingHandler creates a new ParkingHandler
func NewParkingHandler(queryService *service.QueryService, cache CacheClearer, feed SpotFeed) *ParkingHandler {
	return &ParkingHandler{
		queryService: queryService,
		cache:        cache,
		feed:         feed,
	}
}

// GetLocations lists locations with their lots
// GET /api/v1/locations
func (h *ParkingHandler) GetLocations(c *gin.Context) {
	locations, err := h.queryService.Locations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"locations": locations})
}

// GetLots lists lots and spots
// GET /api/v1/lots
func (h *ParkingHandler) GetLots(c *gin.Context) {
	view, err := h.queryService.Lots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// ClearCache drops every cached read
// POST /api/v1/cache/clear
func (h *ParkingHandler) ClearCache(c *gin.Context) {
	if err := h.cache.Invalidate(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Cache cleared successfully"})
}

// SpotEvents streams spot availability changes over a websocket
// GET /api/v1/ws/spots
func (h *ParkingHandler) SpotEvents(c *gin.Context) {
	h.feed.ServeWS(c.Writer, c.Request)
}

// RegisterRoutes registers catalog routes
func (h *ParkingHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	rg.GET("/locations", h.GetLocations)

	protected := rg.Group("", authMiddleware)
	{
		protected.GET("/lots", h.GetLots)
		protected.POST("/cache/clear", h.ClearCache)
		protected.GET("/ws/spots", h.SpotEvents)
	}
}
