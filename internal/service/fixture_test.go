package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/realtime"
	"github.com/parkpal-server/internal/repository"
	"github.com/parkpal-server/internal/service"
	"github.com/parkpal-server/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedJob struct {
	Name          queue.JobName
	ReservationID uint
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []recordedJob
	err  error
}

func (f *fakeJobs) Enqueue(_ context.Context, name queue.JobName, reservationID uint) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, recordedJob{Name: name, ReservationID: reservationID})
	return &queue.Job{Name: name, ReservationID: reservationID}, nil
}

type fakeEvents struct {
	events []realtime.SpotEvent
}

func (f *fakeEvents) PublishSpotEvent(event realtime.SpotEvent) {
	f.events = append(f.events, event)
}

type fakeCache struct {
	invalidations int
	err           error
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.invalidations++
	return f.err
}

type fixture struct {
	db           *gorm.DB
	svc          *service.ParkingService
	users        *repository.UserRepository
	locations    *repository.LocationRepository
	lots         *repository.LotRepository
	spots        *repository.SpotRepository
	reservations *repository.ReservationRepository
	jobs         *fakeJobs
	events       *fakeEvents
	cache        *fakeCache
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	f := &fixture{
		db:           db,
		users:        repository.NewUserRepository(db),
		locations:    repository.NewLocationRepository(db),
		lots:         repository.NewLotRepository(db),
		spots:        repository.NewSpotRepository(db),
		reservations: repository.NewReservationRepository(db),
		jobs:         &fakeJobs{},
		events:       &fakeEvents{},
		cache:        &fakeCache{},
		now:          time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = service.NewParkingService(db, f.users, f.locations, f.lots, f.spots, f.reservations, f.jobs, f.events, f.cache)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Name: username, Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.users.Create(u))
	return u
}

func (f *fixture) location(t *testing.T, name string) *models.Location {
	t.Helper()
	loc, err := f.svc.CreateLocation(context.Background(), &service.LocationRequest{
		Name:      name,
		City:      "Pune",
		Latitude:  floatPtr(18.52),
		Longitude: floatPtr(73.85),
	})
	require.NoError(t, err)
	return loc
}

func (f *fixture) lot(t *testing.T, locationID uint, name string, price float64, spots int) *models.ParkingLot {
	t.Helper()
	lot, err := f.svc.CreateLot(context.Background(), lotRequest(locationID, name, price, spots))
	require.NoError(t, err)
	return lot
}

func (f *fixture) spotIDs(t *testing.T, lotID uint) []uint {
	t.Helper()
	spots, err := f.spots.ListByLot(lotID)
	require.NoError(t, err)
	ids := make([]uint, len(spots))
	for i, s := range spots {
		ids[i] = s.ID
	}
	return ids
}

// assertAvailability checks that every spot is available exactly when it
// has no open reservation
func (f *fixture) assertAvailability(t *testing.T) {
	t.Helper()
	spots, err := f.spots.List()
	require.NoError(t, err)
	for _, s := range spots {
		var open int64
		require.NoError(t, f.db.Model(&models.ReservedParking{}).
			Where("spot_id = ? AND exit_time IS NULL", s.ID).Count(&open).Error)
		require.LessOrEqual(t, open, int64(1), "spot %d has several open reservations", s.ID)
		require.Equal(t, open == 0, s.IsAvailable, "spot %d availability", s.ID)
	}
}

// assertSpotCount checks number_of_spots against the real spot rows
func (f *fixture) assertSpotCount(t *testing.T) {
	t.Helper()
	lots, err := f.lots.List()
	require.NoError(t, err)
	for _, l := range lots {
		n, err := f.spots.CountByLot(l.ID)
		require.NoError(t, err)
		require.Equal(t, int64(l.NumberOfSpots), n, "lot %d spot count", l.ID)
	}
}

func lotRequest(locationID uint, name string, price float64, spots int) *service.LotRequest {
	return &service.LotRequest{
		PrimeLocationName: name,
		Price:             floatPtr(price),
		Address:           "1 Main Road",
		PinCode:           "411001",
		NumberOfSpots:     intPtr(spots),
		LocationID:        locationID,
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

var errBoom = errors.New("boom")
