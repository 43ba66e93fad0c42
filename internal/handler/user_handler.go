package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/middleware"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/pkg/response"
)

// UserHandler handles regular user API requests
type UserHandler struct {
	parkingService *service.ParkingService
	queryService   *service.QueryService
	userService    *service.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	parkingService *service.ParkingService,
	queryService *service.QueryService,
	userService *service.UserService,
) *UserHandler {
	return &UserHandler{
		parkingService: parkingService,
		queryService:   queryService,
		userService:    userService,
	}
}

// ReserveSpot reserves a spot for the current user
// POST /api/v1/user/spots/:id/reserve
func (h *UserHandler) ReserveSpot(c *gin.Context) {
	spotID, ok := parseID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.parkingService.CreateReservation(c.Request.Context(), middleware.GetUserID(c), spotID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":     "Spot reserved successfully",
		"reservation": reservation,
	})
}

// ReleaseReservation closes a reservation of the current user and bills it
// POST /api/v1/user/reservations/:id/release
func (h *UserHandler) ReleaseReservation(c *gin.Context) {
	reservationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.parkingService.ReleaseReservation(c.Request.Context(), middleware.GetUserID(c), reservationID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":     "Parking released successfully",
		"reservation": reservation,
	})
}

// GetSpotsInLot lists the spots of a lot
// GET /api/v1/user/lots/:id/spots
func (h *UserHandler) GetSpotsInLot(c *gin.Context) {
	lotID, ok := parseID(c, "id")
	if !ok {
		return
	}
	spots, err := h.queryService.SpotsInLot(c.Request.Context(), lotID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"spots": spots})
}

// GetAvailableSpots counts the free spots of a lot
// GET /api/v1/user/lots/:id/available
func (h *UserHandler) GetAvailableSpots(c *gin.Context) {
	lotID, ok := parseID(c, "id")
	if !ok {
		return
	}
	count, err := h.queryService.AvailableSpots(lotID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"available_spots": count})
}

// GetReservations lists the reservations of a user by username
// GET /api/v1/user/reservations/:username
func (h *UserHandler) GetReservations(c *gin.Context) {
	view, err := h.queryService.UserReservations(c.Request.Context(), middleware.GetUserID(c), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// Summary returns the user dashboard data
// GET /api/v1/user/summary
func (h *UserHandler) Summary(c *gin.Context) {
	summary, err := h.queryService.UserSummary(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, summary)
}

// Search matches lots and the user's own reservations against q
// GET /api/v1/user/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	result, err := h.queryService.UserSearch(c.Request.Context(), middleware.GetUserID(c), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// GetUsernames lists the usernames of regular users
// GET /api/v1/user/usernames
func (h *UserHandler) GetUsernames(c *gin.Context) {
	names, err := h.userService.Usernames(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"usernames": names})
}

// GetProfile returns the current user's profile
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.userService.Profile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, profile)
}

// UpdateProfile changes the current user's name, username and email
// PUT /api/v1/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, profile)
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	user := rg.Group("/user", authMiddleware, middleware.UserRequired())
	{
		user.POST("/spots/:id/reserve", h.ReserveSpot)
		user.POST("/reservations/:id/release", h.ReleaseReservation)
		user.GET("/reservations/:username", h.GetReservations)

		user.GET("/lots/:id/spots", h.GetSpotsInLot)
		user.GET("/lots/:id/available", h.GetAvailableSpots)

		user.GET("/summary", h.Summary)
		user.GET("/search", h.Search)
		user.GET("/usernames", h.GetUsernames)
		user.GET("/profile", h.GetProfile)
		user.PUT("/profile", h.UpdateProfile)
	}
}
