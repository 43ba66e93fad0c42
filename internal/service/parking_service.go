package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/parkpal-server/internal/metrics"
	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/realtime"
	"github.com/parkpal-server/internal/repository"
	"gorm.io/gorm"
)

// JobEnqueuer schedules asynchronous notification jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, name queue.JobName, reservationID uint) (*queue.Job, error)
}

// SpotEventPublisher broadcasts spot availability changes
type SpotEventPublisher interface {
	PublishSpotEvent(event realtime.SpotEvent)
}

// CacheInvalidator drops cached read results after a write
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ParkingService owns the lifecycle of locations, lots, spots and
// reservations. Every mutating operation runs in a single transaction;
// notifications, events and cache invalidation happen only after commit.
type ParkingService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	locationRepo    *repository.LocationRepository
	lotRepo         *repository.LotRepository
	spotRepo        *repository.SpotRepository
	reservationRepo *repository.ReservationRepository

	jobs   JobEnqueuer
	events SpotEventPublisher
	cache  CacheInvalidator
	now    func() time.Time
}

// NewParkingService creates a new ParkingService.
// jobs, events and cache may be nil.
func NewParkingService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	locationRepo *repository.LocationRepository,
	lotRepo *repository.LotRepository,
	spotRepo *repository.SpotRepository,
	reservationRepo *repository.ReservationRepository,
	jobs JobEnqueuer,
	events SpotEventPublisher,
	cache CacheInvalidator,
) *ParkingService {
	return &ParkingService{
		db:              db,
		userRepo:        userRepo,
		locationRepo:    locationRepo,
		lotRepo:         lotRepo,
		spotRepo:        spotRepo,
		reservationRepo: reservationRepo,
		jobs:            jobs,
		events:          events,
		cache:           cache,
		now:             time.Now,
	}
}

// SetClock replaces the time source
func (s *ParkingService) SetClock(now func() time.Time) {
	s.now = now
}

// LocationRequest represents the create location request
type LocationRequest struct {
	Name      string   `json:"name"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *LocationRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.City) == "" || r.Latitude == nil || r.Longitude == nil {
		return validationf("Missing required fields")
	}
	if *r.Latitude < -90 || *r.Latitude > 90 {
		return validationf("Latitude must be between -90 and 90")
	}
	if *r.Longitude < -180 || *r.Longitude > 180 {
		return validationf("Longitude must be between -180 and 180")
	}
	return nil
}

// LotRequest represents the create and update parking lot request.
// LocationID is only read on create.
type LotRequest struct {
	PrimeLocationName string   `json:"prime_location_name"`
	Price             *float64 `json:"price"`
	Address           string   `json:"address"`
	PinCode           string   `json:"pin_code"`
	NumberOfSpots     *int     `json:"number_of_spots"`
	LocationID        uint     `json:"location_id"`
}

func (r *LotRequest) validate() error {
	if strings.TrimSpace(r.PrimeLocationName) == "" || strings.TrimSpace(r.Address) == "" ||
		strings.TrimSpace(r.PinCode) == "" || r.Price == nil || r.NumberOfSpots == nil {
		return validationf("Missing required fields")
	}
	if *r.NumberOfSpots < 0 {
		return validationf("Number of spots cannot be negative")
	}
	if *r.Price < 0 {
		return validationf("Price cannot be negative")
	}
	if len(r.PinCode) > 6 {
		return validationf("Pin code must be at most 6 characters")
	}
	return nil
}

// LotUpdateResult describes the outcome of UpdateLot
type LotUpdateResult struct {
	Lot          *models.ParkingLot `json:"lot"`
	SpotsAdded   int                `json:"spots_added"`
	SpotsRemoved int                `json:"spots_removed"`
}

// CreateLocation adds a location
func (s *ParkingService) CreateLocation(ctx context.Context, req *LocationRequest) (*models.Location, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	location := &models.Location{
		Name:      strings.TrimSpace(req.Name),
		City:      strings.TrimSpace(req.City),
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locations := s.locationRepo.WithTx(tx)
		exists, err := locations.ExistsByName(location.Name)
		if err != nil {
			return err
		}
		if exists {
			return conflictf("Location already exists")
		}
		return locations.Create(location)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return location, nil
}

// DeleteLocation removes a location with all of its lots, spots and
// reservations. Reservation history does not block it.
func (s *ParkingService) DeleteLocation(ctx context.Context, locationID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locations := s.locationRepo.WithTx(tx)
		lots := s.lotRepo.WithTx(tx)
		spots := s.spotRepo.WithTx(tx)
		reservations := s.reservationRepo.WithTx(tx)

		if _, err := locations.GetByID(locationID); err != nil {
			return translate(err)
		}

		locationLots, err := lots.ListByLocation(locationID)
		if err != nil {
			return err
		}
		lotIDs := make([]uint, len(locationLots))
		for i, lot := range locationLots {
			lotIDs[i] = lot.ID
		}

		spotIDs, err := spots.IDsByLots(lotIDs)
		if err != nil {
			return err
		}

		if err := reservations.DeleteBySpots(spotIDs); err != nil {
			return err
		}
		if err := spots.DeleteByLots(lotIDs); err != nil {
			return err
		}
		if err := lots.DeleteByLocation(locationID); err != nil {
			return err
		}
		return locations.Delete(locationID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// CreateLot adds a lot to an existing location together with its spots
func (s *ParkingService) CreateLot(ctx context.Context, req *LotRequest) (*models.ParkingLot, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.LocationID == 0 {
		return nil, validationf("Invalid location ID")
	}

	lot := &models.ParkingLot{
		PrimeLocationName: strings.TrimSpace(req.PrimeLocationName),
		Price:             *req.Price,
		Address:           req.Address,
		PinCode:           req.PinCode,
		NumberOfSpots:     *req.NumberOfSpots,
		LocationID:        req.LocationID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lots := s.lotRepo.WithTx(tx)

		if _, err := s.locationRepo.WithTx(tx).GetByID(req.LocationID); err != nil {
			if errors.Is(err, repository.ErrLocationNotFound) {
				return validationf("Invalid location ID")
			}
			return err
		}

		exists, err := lots.ExistsByName(lot.PrimeLocationName, 0)
		if err != nil {
			return err
		}
		if exists {
			return conflictf("Parking lot already exists")
		}

		if err := lots.Create(lot); err != nil {
			return err
		}
		return s.spotRepo.WithTx(tx).CreateBatch(lot.ID, lot.NumberOfSpots)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return lot, nil
}

// UpdateLot replaces the lot metadata and resizes its spot pool.
//
// Growing appends available spots. Shrinking removes the most recently
// created spots that are available and hold no reservation that is open or
// exits in the future; if there are not enough of them nothing changes.
func (s *ParkingService) UpdateLot(ctx context.Context, lotID uint, req *LotRequest) (*LotUpdateResult, error) {
	result := &LotUpdateResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lots := s.lotRepo.WithTx(tx)
		spots := s.spotRepo.WithTx(tx)
		reservations := s.reservationRepo.WithTx(tx)

		lot, err := lots.GetByID(lotID)
		if err != nil {
			return translate(err)
		}
		if err := req.validate(); err != nil {
			return err
		}

		name := strings.TrimSpace(req.PrimeLocationName)
		taken, err := lots.ExistsByName(name, lot.ID)
		if err != nil {
			return err
		}
		if taken {
			return conflictf("Parking lot already exists")
		}

		current, err := spots.CountByLot(lot.ID)
		if err != nil {
			return err
		}
		target := *req.NumberOfSpots

		lot.PrimeLocationName = name
		lot.Price = *req.Price
		lot.Address = req.Address
		lot.PinCode = req.PinCode
		lot.NumberOfSpots = target
		if err := lots.Update(lot); err != nil {
			return err
		}
		result.Lot = lot

		switch {
		case target > int(current):
			result.SpotsAdded = target - int(current)
			return spots.CreateBatch(lot.ID, result.SpotsAdded)

		case target < int(current):
			now := s.now()
			removable, blocked, err := s.removableSpots(spots, reservations, lot.ID, now)
			if err != nil {
				return err
			}
			need := int(current) - target
			if need > len(removable) {
				return conflictf("Cannot reduce spots to %d. There are %d spots with active reservations that cannot be deleted.",
					target, blocked)
			}

			// Only released history goes with the spot. A spot claimed after
			// the read above is no longer available and survives the delete.
			doomed := removable[:need]
			if err := reservations.DeleteReleasedBySpots(doomed, now); err != nil {
				return err
			}
			removed, err := spots.DeleteAvailable(doomed)
			if err != nil {
				return err
			}
			if removed != int64(need) {
				return conflictf("Cannot reduce spots to %d. A spot was reserved during the update, please retry.", target)
			}
			result.SpotsRemoved = need
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return result, nil
}

// removableSpots returns the ids of spots that may be deleted, newest first,
// and how many spots of the lot are not removable
func (s *ParkingService) removableSpots(
	spots *repository.SpotRepository,
	reservations *repository.ReservationRepository,
	lotID uint,
	now time.Time,
) ([]uint, int, error) {
	all, err := spots.ListByLotNewestFirstForUpdate(lotID)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint, len(all))
	for i, spot := range all {
		ids[i] = spot.ID
	}
	held, err := reservations.SpotIDsBlockedAt(ids, now)
	if err != nil {
		return nil, 0, err
	}
	isHeld := make(map[uint]bool, len(held))
	for _, id := range held {
		isHeld[id] = true
	}

	removable := make([]uint, 0, len(all))
	for _, spot := range all {
		if spot.IsAvailable && !isHeld[spot.ID] {
			removable = append(removable, spot.ID)
		}
	}
	return removable, len(all) - len(removable), nil
}

// DeleteLot removes a lot and its spots. A lot whose spots carry any
// reservation, open or closed, is kept.
func (s *ParkingService) DeleteLot(ctx context.Context, lotID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lots := s.lotRepo.WithTx(tx)
		spots := s.spotRepo.WithTx(tx)

		if _, err := lots.GetByID(lotID); err != nil {
			return translate(err)
		}

		spotIDs, err := spots.IDsByLots([]uint{lotID})
		if err != nil {
			return err
		}
		history, err := s.reservationRepo.WithTx(tx).CountBySpots(spotIDs)
		if err != nil {
			return err
		}
		if history > 0 {
			return conflictf("Cannot delete lot with reserved spots")
		}

		if err := spots.DeleteByLots([]uint{lotID}); err != nil {
			return err
		}
		return lots.Delete(lotID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// DeleteUser frees every spot the user ever reserved, then removes the
// user's reservations and the user
func (s *ParkingService) DeleteUser(ctx context.Context, userID uint) error {
	var freed []models.ParkingSpot

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		spots := s.spotRepo.WithTx(tx)
		reservations := s.reservationRepo.WithTx(tx)

		if _, err := users.GetByID(userID); err != nil {
			return translate(err)
		}

		spotIDs, err := reservations.SpotIDsByUser(userID)
		if err != nil {
			return err
		}
		if err := spots.MarkAvailable(spotIDs); err != nil {
			return err
		}
		for _, id := range spotIDs {
			spot, err := spots.GetByID(id)
			if err != nil {
				return err
			}
			freed = append(freed, *spot)
		}

		if err := reservations.DeleteByUser(userID); err != nil {
			return err
		}
		return users.Delete(userID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	for _, spot := range freed {
		s.publish(realtime.SpotEvent{
			Type:        realtime.EventSpotFreed,
			SpotID:      spot.ID,
			LotID:       spot.LotID,
			IsAvailable: true,
		})
	}
	return nil
}

// CreateReservation parks userID on spotID
func (s *ParkingService) CreateReservation(ctx context.Context, userID, spotID uint) (*models.ReservedParking, error) {
	var reservation *models.ReservedParking
	var lotID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		spots := s.spotRepo.WithTx(tx)

		spot, err := spots.GetByIDForUpdate(spotID)
		if err != nil {
			return translate(err)
		}
		if !spot.IsAvailable {
			return conflictf("Spot already reserved")
		}
		if _, err := s.userRepo.WithTx(tx).GetByID(userID); err != nil {
			return translate(err)
		}

		// Claim re-checks availability in the UPDATE itself.
		claimed, err := spots.Claim(spotID)
		if err != nil {
			return err
		}
		if !claimed {
			return conflictf("Spot already reserved")
		}

		reservation = &models.ReservedParking{
			UserID:   userID,
			SpotID:   spotID,
			ParkTime: s.now(),
		}
		lotID = spot.LotID
		return s.reservationRepo.WithTx(tx).Create(reservation)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationsCreated.Inc()
	s.invalidate(ctx)
	s.enqueue(ctx, queue.JobReservationConfirmed, reservation.ID)
	s.publish(realtime.SpotEvent{
		Type:          realtime.EventSpotReserved,
		SpotID:        spotID,
		LotID:         lotID,
		IsAvailable:   false,
		ReservationID: reservation.ID,
	})
	return reservation, nil
}

// ReleaseReservation closes an active reservation owned by userID, bills it
// and frees its spot
func (s *ParkingService) ReleaseReservation(ctx context.Context, userID, reservationID uint) (*models.ReservedParking, error) {
	var reservation *models.ReservedParking
	var lotID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservations := s.reservationRepo.WithTx(tx)
		spots := s.spotRepo.WithTx(tx)

		res, err := reservations.GetByID(reservationID)
		if err != nil {
			return translate(err)
		}
		if res.UserID != userID {
			return forbiddenf("You are not authorized to release this spot. User who booked the spot is: %d and you are: %d",
				res.UserID, userID)
		}
		if !res.IsActive() {
			return conflictf("Reservation already released")
		}

		spot, err := spots.GetByID(res.SpotID)
		if err != nil {
			return translate(err)
		}
		lot, err := s.lotRepo.WithTx(tx).GetByID(spot.LotID)
		if err != nil {
			return translate(err)
		}

		exitTime := s.now()
		cost := ReservationCost(lot.Price, res.ParkTime, exitTime)
		if err := reservations.Close(res.ID, exitTime, cost); err != nil {
			return err
		}
		if err := spots.SetAvailability(spot.ID, true); err != nil {
			return err
		}

		res.ExitTime = &exitTime
		res.TotalCost = &cost
		reservation = res
		lotID = lot.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationsReleased.Inc()
	metrics.BilledAmount.Add(*reservation.TotalCost)
	s.invalidate(ctx)
	s.enqueue(ctx, queue.JobReservationReleased, reservation.ID)
	s.publish(realtime.SpotEvent{
		Type:          realtime.EventSpotReleased,
		SpotID:        reservation.SpotID,
		LotID:         lotID,
		IsAvailable:   true,
		ReservationID: reservation.ID,
	})
	return reservation, nil
}

func (s *ParkingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("[ParkingService] Failed to invalidate cache: %v", err)
	}
}

// enqueue never fails the caller; the state change is already committed
func (s *ParkingService) enqueue(ctx context.Context, name queue.JobName, reservationID uint) {
	if s.jobs == nil {
		return
	}
	if _, err := s.jobs.Enqueue(context.WithoutCancel(ctx), name, reservationID); err != nil {
		metrics.EnqueueFailures.WithLabelValues(string(name)).Inc()
		log.Printf("[ParkingService] Failed to enqueue %s for reservation %d: %v", name, reservationID, err)
	}
}

func (s *ParkingService) publish(event realtime.SpotEvent) {
	if s.events == nil {
		return
	}
	s.events.PublishSpotEvent(event)
}
