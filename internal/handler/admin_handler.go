package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/middleware"
	"github.com/parkpal-server/internal/report"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/pkg/response"
)

// AdminHandler handles administrator API requests
type AdminHandler struct {
	parkingService *service.ParkingService
	queryService   *service.QueryService
	userService    *service.UserService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	parkingService *service.ParkingService,
	queryService *service.QueryService,
	userService *service.UserService,
) *AdminHandler {
	return &AdminHandler{
		parkingService: parkingService,
		queryService:   queryService,
		userService:    userService,
	}
}

// CreateLocation adds a location
// POST /api/v1/admin/locations
func (h *AdminHandler) CreateLocation(c *gin.Context) {
	var req service.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	location, err := h.parkingService.CreateLocation(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, location)
}

// DeleteLocation removes a location with its lots, spots and reservations
// DELETE /api/v1/admin/locations/:id
func (h *AdminHandler) DeleteLocation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteLocation(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Location deleted successfully"})
}

// CreateLot adds a parking lot and its spots
// POST /api/v1/admin/lots
func (h *AdminHandler) CreateLot(c *gin.Context) {
	var req service.LotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	lot, err := h.parkingService.CreateLot(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, lot)
}

// UpdateLot edits a lot and resizes its spots
// PUT /api/v1/admin/lots/:id
func (h *AdminHandler) UpdateLot(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.LotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.parkingService.UpdateLot(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteLot removes a lot that has never been reserved
// DELETE /api/v1/admin/lots/:id
func (h *AdminHandler) DeleteLot(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.parkingService.DeleteLot(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Parking lot deleted successfully"})
}

// GetParkingLots lists lots, spots and all reservations
// GET /api/v1/admin/parking-lots
func (h *AdminHandler) GetParkingLots(c *gin.Context) {
	view, err := h.queryService.AdminParkingLots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// GetUsers lists regular users one page at a time
// GET /api/v1/admin/users?page=&page_size=
func (h *AdminHandler) GetUsers(c *gin.Context) {
	page, pageSize := response.PageParams(c)

	users, err := h.userService.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessPaginated(c, users.Items, users.Total, page, pageSize)
}

// DeleteUser removes a user, freeing the spots they held
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		response.BadRequest(c, "Cannot delete your own account")
		return
	}
	if err := h.parkingService.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "User deleted successfully"})
}

// Summary returns the admin dashboard data
// GET /api/v1/admin/summary
func (h *AdminHandler) Summary(c *gin.Context) {
	summary, err := h.queryService.AdminSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, summary)
}

// Search matches users, lots and reservations against q
// GET /api/v1/admin/search?q=
func (h *AdminHandler) Search(c *gin.Context) {
	result, err := h.queryService.AdminSearch(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// ExportReservations downloads every reservation as a spreadsheet
// GET /api/v1/admin/reservations/export?format=xlsx|csv
func (h *AdminHandler) ExportReservations(c *gin.Context) {
	lines, err := h.queryService.ReservationReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	stamp := time.Now().Format("20060102")

	if strings.EqualFold(c.DefaultQuery("format", "xlsx"), "csv") {
		data, err := report.CSV(lines)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"reservations_%s.csv\"", stamp))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
		return
	}

	f, err := report.Workbook(lines)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"reservations_%s.xlsx\"", stamp))
	if err := f.Write(c.Writer); err != nil {
		middleware.LogError("reservation export failed: %v", err)
	}
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	admin := rg.Group("/admin", authMiddleware, middleware.AdminRequired(), middleware.MutationLoggerMiddleware())
	{
		admin.POST("/locations", h.CreateLocation)
		admin.DELETE("/locations/:id", h.DeleteLocation)

		admin.POST("/lots", h.CreateLot)
		admin.PUT("/lots/:id", h.UpdateLot)
		admin.DELETE("/lots/:id", h.DeleteLot)
		admin.GET("/parking-lots", h.GetParkingLots)

		admin.GET("/users", h.GetUsers)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.GET("/summary", h.Summary)
		admin.GET("/search", h.Search)
		admin.GET("/reservations/export", h.ExportReservations)
	}
}
