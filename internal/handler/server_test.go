package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parkpal-server/internal/cache"
	"github.com/parkpal-server/internal/config"
	"github.com/parkpal-server/internal/handler"
	"github.com/parkpal-server/internal/middleware"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/realtime"
	"github.com/parkpal-server/internal/repository"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/internal/testutil"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	queue  *queue.RedisQueue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)

	userRepo := repository.NewUserRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	lotRepo := repository.NewLotRepository(db)
	spotRepo := repository.NewSpotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	readCache := cache.New(rdb, "test:cache", 0)
	jobs := queue.NewRedisQueue(rdb, "test:jobs")
	hub := realtime.NewHub()
	t.Cleanup(hub.Close)

	authService := service.NewAuthService(userRepo, config.JWTConfig{Secret: "test-secret", ExpireHours: 1}, readCache)
	parkingService := service.NewParkingService(db, userRepo, locationRepo, lotRepo, spotRepo, reservationRepo, jobs, hub, readCache)
	queryService := service.NewQueryService(userRepo, locationRepo, lotRepo, spotRepo, reservationRepo, readCache)
	userService := service.NewUserService(userRepo, readCache)

	_, err := authService.EnsureAdmin("admin")
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api/v1")
	auth := middleware.AuthMiddleware(authService)
	handler.NewAuthHandler(authService).RegisterRoutes(api, auth)
	handler.NewParkingHandler(queryService, readCache, hub).RegisterRoutes(api, auth)
	handler.NewAdminHandler(parkingService, queryService, userService).RegisterRoutes(api, auth)
	handler.NewUserHandler(parkingService, queryService, userService).RegisterRoutes(api, auth)

	return &testServer{t: t, router: r, queue: jobs}
}

func (s *testServer) raw(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	w := s.raw(method, path, token, body)
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *testServer) register(username string) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/register", "", gin.H{
		"name":     username,
		"username": username,
		"email":    username + "@example.com",
		"password": "secret",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	return decode[service.TokenResponse](s.t, env).AccessToken
}

type idOnly struct {
	ID uint `json:"id"`
}

// seedLot creates a location and a lot with the given number of spots as admin
func (s *testServer) seedLot(adminToken string, spots int) uint {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/admin/locations", adminToken, gin.H{
		"name": "Downtown", "city": "Pune", "latitude": 18.5, "longitude": 73.8,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	location := decode[idOnly](s.t, env)

	code, env = s.do(http.MethodPost, "/admin/lots", adminToken, gin.H{
		"prime_location_name": "Central",
		"price":               10,
		"address":             "1 Main Road",
		"pin_code":            "411001",
		"number_of_spots":     spots,
		"location_id":         location.ID,
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return decode[idOnly](s.t, env).ID
}
