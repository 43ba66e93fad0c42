package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/realtime"
	"github.com/parkpal-server/internal/repository"
	"github.com/parkpal-server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	loc := f.location(t, "Downtown")
	lot := f.lot(t, loc.ID, "Central", 10, 2)
	spotID := f.spotIDs(t, lot.ID)[0]
	f.cache.invalidations = 0

	res, err := f.svc.CreateReservation(ctx, u.ID, spotID)
	require.NoError(t, err)

	assert.Equal(t, u.ID, res.UserID)
	assert.Equal(t, spotID, res.SpotID)
	assert.True(t, res.ParkTime.Equal(f.now))
	assert.Nil(t, res.ExitTime)
	assert.Nil(t, res.TotalCost)

	spot, err := f.spots.GetByID(spotID)
	require.NoError(t, err)
	assert.False(t, spot.IsAvailable)
	f.assertAvailability(t)

	assert.Equal(t, []recordedJob{{Name: queue.JobReservationConfirmed, ReservationID: res.ID}}, f.jobs.jobs)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, realtime.EventSpotReserved, f.events.events[0].Type)
	assert.Equal(t, lot.ID, f.events.events[0].LotID)
	assert.False(t, f.events.events[0].IsAvailable)
	assert.Equal(t, 1, f.cache.invalidations)
}

func TestCreateReservation_OccupiedSpot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)
	spotID := f.spotIDs(t, lot.ID)[0]

	_, err := f.svc.CreateReservation(ctx, alice.ID, spotID)
	require.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, bob.ID, spotID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Equal(t, "Spot already reserved", err.Error())

	all, err := f.reservations.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, alice.ID, all[0].UserID)
	assert.Len(t, f.jobs.jobs, 1)
	f.assertAvailability(t)
}

func TestCreateReservation_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)

	_, err := f.svc.CreateReservation(ctx, u.ID, 9999)
	assert.True(t, errors.Is(err, service.ErrNotFound))

	spotID := f.spotIDs(t, lot.ID)[0]
	_, err = f.svc.CreateReservation(ctx, 9999, spotID)
	assert.True(t, errors.Is(err, service.ErrNotFound))

	spot, err := f.spots.GetByID(spotID)
	require.NoError(t, err)
	assert.True(t, spot.IsAvailable, "failed reservation must roll back the claim")
	assert.Empty(t, f.jobs.jobs)
}

func TestCreateReservation_NotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.jobs.err = errBoom
	f.cache.err = errBoom
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)

	res, err := f.svc.CreateReservation(context.Background(), u.ID, f.spotIDs(t, lot.ID)[0])
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	f.assertAvailability(t)
}

func TestReleaseReservation_BillsStay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)
	spotID := f.spotIDs(t, lot.ID)[0]

	res, err := f.svc.CreateReservation(ctx, u.ID, spotID)
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	released, err := f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)

	require.NotNil(t, released.ExitTime)
	require.NotNil(t, released.TotalCost)
	assert.True(t, released.ExitTime.Equal(f.now))
	assert.InDelta(t, 40.0, *released.TotalCost, 1e-9)

	stored, err := f.reservations.GetByID(res.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TotalCost)
	assert.InDelta(t, 40.0, *stored.TotalCost, 1e-9)

	spot, err := f.spots.GetByID(spotID)
	require.NoError(t, err)
	assert.True(t, spot.IsAvailable)
	f.assertAvailability(t)

	require.Len(t, f.jobs.jobs, 2)
	assert.Equal(t, recordedJob{Name: queue.JobReservationReleased, ReservationID: res.ID}, f.jobs.jobs[1])
	require.Len(t, f.events.events, 2)
	assert.Equal(t, realtime.EventSpotReleased, f.events.events[1].Type)
	assert.True(t, f.events.events[1].IsAvailable)
}

func TestReleaseReservation_ZeroDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)

	res, err := f.svc.CreateReservation(ctx, u.ID, f.spotIDs(t, lot.ID)[0])
	require.NoError(t, err)

	released, err := f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, *released.TotalCost)
}

func TestReleaseReservation_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)
	spotID := f.spotIDs(t, lot.ID)[0]

	res, err := f.svc.CreateReservation(ctx, alice.ID, spotID)
	require.NoError(t, err)

	_, err = f.svc.ReleaseReservation(ctx, bob.ID, res.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrForbidden))
	assert.Contains(t, err.Error(), "is: 1")
	assert.Contains(t, err.Error(), "you are: 2")

	stored, err := f.reservations.GetByID(res.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
	assert.Nil(t, stored.TotalCost)

	spot, err := f.spots.GetByID(spotID)
	require.NoError(t, err)
	assert.False(t, spot.IsAvailable)
}

func TestReleaseReservation_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 1)

	res, err := f.svc.CreateReservation(ctx, u.ID, f.spotIDs(t, lot.ID)[0])
	require.NoError(t, err)
	f.advance(time.Hour)
	first, err := f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)

	f.advance(time.Hour)
	_, err = f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	assert.True(t, errors.Is(err, service.ErrConflict))

	stored, err := f.reservations.GetByID(res.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.TotalCost, *stored.TotalCost)
	assert.True(t, stored.ExitTime.Equal(*first.ExitTime))
}

func TestReleaseReservation_NotFound(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	_, err := f.svc.ReleaseReservation(context.Background(), u.ID, 42)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestCreateLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, "Downtown")

	lot := f.lot(t, loc.ID, "Central", 25, 4)
	assert.NotZero(t, lot.ID)
	assert.Len(t, f.spotIDs(t, lot.ID), 4)
	f.assertSpotCount(t)

	available, err := f.spots.CountAvailableByLot(lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), available)

	_, err = f.svc.CreateLot(ctx, lotRequest(loc.ID, "Central", 10, 1))
	assert.True(t, errors.Is(err, service.ErrConflict))

	_, err = f.svc.CreateLot(ctx, lotRequest(9999, "Elsewhere", 10, 1))
	assert.True(t, errors.Is(err, service.ErrValidation))
	assert.Equal(t, "Invalid location ID", err.Error())
}

func TestCreateLot_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, "Downtown")

	tests := []struct {
		name    string
		mutate  func(r *service.LotRequest)
		message string
	}{
		{"missing name", func(r *service.LotRequest) { r.PrimeLocationName = " " }, "Missing required fields"},
		{"missing price", func(r *service.LotRequest) { r.Price = nil }, "Missing required fields"},
		{"missing count", func(r *service.LotRequest) { r.NumberOfSpots = nil }, "Missing required fields"},
		{"negative count", func(r *service.LotRequest) { r.NumberOfSpots = intPtr(-1) }, "Number of spots cannot be negative"},
		{"negative price", func(r *service.LotRequest) { r.Price = floatPtr(-0.5) }, "Price cannot be negative"},
		{"long pin", func(r *service.LotRequest) { r.PinCode = "1234567" }, "Pin code must be at most 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := lotRequest(loc.ID, "Central", 10, 2)
			tt.mutate(req)
			_, err := f.svc.CreateLot(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, service.ErrValidation))
			assert.Equal(t, tt.message, err.Error())
		})
	}

	lots, err := f.lots.List()
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestCreateLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loc := f.location(t, "Downtown")
	assert.NotZero(t, loc.ID)

	_, err := f.svc.CreateLocation(ctx, &service.LocationRequest{
		Name: "Downtown", City: "Pune", Latitude: floatPtr(1), Longitude: floatPtr(1),
	})
	assert.True(t, errors.Is(err, service.ErrConflict))

	_, err = f.svc.CreateLocation(ctx, &service.LocationRequest{
		Name: "North", City: "Pune", Latitude: floatPtr(91), Longitude: floatPtr(1),
	})
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.CreateLocation(ctx, &service.LocationRequest{Name: "North", City: "Pune"})
	assert.True(t, errors.Is(err, service.ErrValidation))
}

func TestUpdateLot_Grow(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)

	result, err := f.svc.UpdateLot(context.Background(), lot.ID, lotRequest(0, "Central East", 12, 5))
	require.NoError(t, err)

	assert.Equal(t, 2, result.SpotsAdded)
	assert.Equal(t, 0, result.SpotsRemoved)
	assert.Equal(t, "Central East", result.Lot.PrimeLocationName)
	assert.Equal(t, 12.0, result.Lot.Price)
	assert.Len(t, f.spotIDs(t, lot.ID), 5)

	available, err := f.spots.CountAvailableByLot(lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)
	f.assertSpotCount(t)
}

func TestUpdateLot_MetadataOnly(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)
	before := f.spotIDs(t, lot.ID)

	result, err := f.svc.UpdateLot(context.Background(), lot.ID, lotRequest(0, "Central", 15, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, result.SpotsAdded)
	assert.Equal(t, 0, result.SpotsRemoved)
	assert.Equal(t, before, f.spotIDs(t, lot.ID))

	stored, err := f.lots.GetByID(lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, stored.Price)
}

func TestUpdateLot_ShrinkRemovesNewestFreeSpots(t *testing.T) {
	f := newFixture(t)
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 5)
	ids := f.spotIDs(t, lot.ID)

	result, err := f.svc.UpdateLot(context.Background(), lot.ID, lotRequest(0, "Central", 10, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, result.SpotsRemoved)
	assert.Equal(t, ids[:2], f.spotIDs(t, lot.ID))
	f.assertSpotCount(t)
}

func TestUpdateLot_ShrinkBlockedByActiveReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 5)
	ids := f.spotIDs(t, lot.ID)

	_, err := f.svc.CreateReservation(ctx, u.ID, ids[2])
	require.NoError(t, err)

	_, err = f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Renamed", 99, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Equal(t, "Cannot reduce spots to 0. There are 1 spots with active reservations that cannot be deleted.", err.Error())

	// rolled back, metadata included
	stored, err := f.lots.GetByID(lot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Central", stored.PrimeLocationName)
	assert.Equal(t, 10.0, stored.Price)
	assert.Equal(t, ids, f.spotIDs(t, lot.ID))
	f.assertSpotCount(t)
	f.assertAvailability(t)
}

func TestUpdateLot_ShrinkKeepsSpotClaimedMidUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)
	ids := f.spotIDs(t, lot.ID)
	newest := ids[2]

	// A reservation lands on the newest spot after the resize picked it,
	// just before the history of the doomed spots is deleted.
	claimed := false
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").Register("test:claim_spot", func(tx *gorm.DB) {
		if claimed || tx.Statement.Table != "reserved_parkings" {
			return
		}
		claimed = true
		conn := tx.Session(&gorm.Session{NewDB: true})
		require.NoError(t, conn.Model(&models.ParkingSpot{}).Where("id = ?", newest).Update("is_available", false).Error)
		require.NoError(t, conn.Create(&models.ReservedParking{UserID: u.ID, SpotID: newest, ParkTime: f.now}).Error)
	}))

	_, err := f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", 10, 2))
	require.True(t, claimed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Equal(t, "Cannot reduce spots to 2. A spot was reserved during the update, please retry.", err.Error())

	assert.Equal(t, ids, f.spotIDs(t, lot.ID))
	f.assertSpotCount(t)
	f.assertAvailability(t)
}

func TestUpdateLot_ShrinkKeepsReservedSpot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 5)
	ids := f.spotIDs(t, lot.ID)

	res, err := f.svc.CreateReservation(ctx, u.ID, ids[2])
	require.NoError(t, err)

	result, err := f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", 10, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, result.SpotsRemoved)
	assert.Equal(t, []uint{ids[2]}, f.spotIDs(t, lot.ID))

	stored, err := f.reservations.GetByID(res.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
	f.assertSpotCount(t)
	f.assertAvailability(t)
}

func TestUpdateLot_ShrinkAfterReservationClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 5)
	ids := f.spotIDs(t, lot.ID)

	res, err := f.svc.CreateReservation(ctx, u.ID, ids[2])
	require.NoError(t, err)
	f.advance(time.Hour)
	_, err = f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)
	f.advance(time.Minute)

	result, err := f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", 10, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, result.SpotsRemoved)
	assert.Equal(t, []uint{ids[0]}, f.spotIDs(t, lot.ID))

	_, err = f.reservations.GetByID(res.ID)
	assert.True(t, errors.Is(err, repository.ErrReservationNotFound), "history of deleted spots goes with them")
	f.assertSpotCount(t)
}

func TestUpdateLot_ShrinkBlockedByFutureExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 5)
	ids := f.spotIDs(t, lot.ID)

	res, err := f.svc.CreateReservation(ctx, u.ID, ids[2])
	require.NoError(t, err)
	_, err = f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.ReservedParking{}).Where("id = ?", res.ID).
		Update("exit_time", f.now.Add(time.Hour)).Error)

	_, err = f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", 10, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Contains(t, err.Error(), "There are 1 spots")
	assert.Len(t, f.spotIDs(t, lot.ID), 5)
}

func TestUpdateLot_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loc := f.location(t, "Downtown")
	lot := f.lot(t, loc.ID, "Central", 10, 2)
	f.lot(t, loc.ID, "Harbour", 10, 2)

	_, err := f.svc.UpdateLot(ctx, 9999, lotRequest(0, "Central", 10, 2))
	assert.True(t, errors.Is(err, service.ErrNotFound))

	_, err = f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Harbour", 10, 2))
	assert.True(t, errors.Is(err, service.ErrConflict))

	_, err = f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", -1, 2))
	assert.True(t, errors.Is(err, service.ErrValidation))

	_, err = f.svc.UpdateLot(ctx, lot.ID, lotRequest(0, "Central", 10, -2))
	assert.True(t, errors.Is(err, service.ErrValidation))

	f.assertSpotCount(t)
}

func TestDeleteLot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)

	require.NoError(t, f.svc.DeleteLot(ctx, lot.ID))

	_, err := f.lots.GetByID(lot.ID)
	assert.True(t, errors.Is(err, repository.ErrLotNotFound))
	assert.Empty(t, f.spotIDs(t, lot.ID))

	err = f.svc.DeleteLot(ctx, lot.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestDeleteLot_WithHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)

	res, err := f.svc.CreateReservation(ctx, u.ID, f.spotIDs(t, lot.ID)[0])
	require.NoError(t, err)
	_, err = f.svc.ReleaseReservation(ctx, u.ID, res.ID)
	require.NoError(t, err)

	err = f.svc.DeleteLot(ctx, lot.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrConflict))
	assert.Equal(t, "Cannot delete lot with reserved spots", err.Error())
	assert.Len(t, f.spotIDs(t, lot.ID), 3)
}

func TestDeleteUser_FreesSpots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	lot := f.lot(t, f.location(t, "Downtown").ID, "Central", 10, 3)
	ids := f.spotIDs(t, lot.ID)

	_, err := f.svc.CreateReservation(ctx, alice.ID, ids[0])
	require.NoError(t, err)
	bobRes, err := f.svc.CreateReservation(ctx, bob.ID, ids[1])
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteUser(ctx, alice.ID))

	_, err = f.users.GetByID(alice.ID)
	assert.True(t, errors.Is(err, repository.ErrUserNotFound))
	mine, err := f.reservations.ListByUser(alice.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	spot, err := f.spots.GetByID(ids[0])
	require.NoError(t, err)
	assert.True(t, spot.IsAvailable)

	stored, err := f.reservations.GetByID(bobRes.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive())
	f.assertAvailability(t)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, realtime.EventSpotFreed, last.Type)
	assert.Equal(t, ids[0], last.SpotID)

	assert.True(t, errors.Is(f.svc.DeleteUser(ctx, alice.ID), service.ErrNotFound))
}

func TestDeleteLocation_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	loc := f.location(t, "Downtown")
	other := f.location(t, "Uptown")
	lot := f.lot(t, loc.ID, "Central", 10, 2)
	keep := f.lot(t, other.ID, "Hill", 10, 2)

	res, err := f.svc.CreateReservation(ctx, u.ID, f.spotIDs(t, lot.ID)[0])
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteLocation(ctx, loc.ID))

	_, err = f.locations.GetByID(loc.ID)
	assert.True(t, errors.Is(err, repository.ErrLocationNotFound))
	_, err = f.lots.GetByID(lot.ID)
	assert.True(t, errors.Is(err, repository.ErrLotNotFound))
	assert.Empty(t, f.spotIDs(t, lot.ID))
	_, err = f.reservations.GetByID(res.ID)
	assert.True(t, errors.Is(err, repository.ErrReservationNotFound))

	assert.Len(t, f.spotIDs(t, keep.ID), 2)
	_, err = f.users.GetByID(u.ID)
	assert.NoError(t, err)

	assert.True(t, errors.Is(f.svc.DeleteLocation(ctx, loc.ID), service.ErrNotFound))
}
