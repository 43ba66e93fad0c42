package repository

import (
	"errors"
	"time"

	"github.com/parkpal-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationRepository handles reserved parking data access
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *ReservationRepository) WithTx(tx *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: tx}
}

// Create creates a new reservation
func (r *ReservationRepository) Create(reservation *models.ReservedParking) error {
	return r.db.Create(reservation).Error
}

// GetByID retrieves a reservation by ID
func (r *ReservationRepository) GetByID(id uint) (*models.ReservedParking, error) {
	var reservation models.ReservedParking
	result := r.db.First(&reservation, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, result.Error
	}
	return &reservation, nil
}

// List retrieves all reservations
func (r *ReservationRepository) List() ([]models.ReservedParking, error) {
	var reservations []models.ReservedParking
	result := r.db.Order("id ASC").Find(&reservations)
	return reservations, result.Error
}

// ListByUser retrieves the reservations of a user
func (r *ReservationRepository) ListByUser(userID uint) ([]models.ReservedParking, error) {
	var reservations []models.ReservedParking
	result := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&reservations)
	return reservations, result.Error
}

// ListParkedBetween retrieves reservations whose park time falls in [from, to]
func (r *ReservationRepository) ListParkedBetween(from, to time.Time) ([]models.ReservedParking, error) {
	var reservations []models.ReservedParking
	result := r.db.Where("park_time BETWEEN ? AND ?", from, to).Order("id ASC").Find(&reservations)
	return reservations, result.Error
}

// SpotIDsByUser returns the distinct spots referenced by a user's reservations
func (r *ReservationRepository) SpotIDsByUser(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.ReservedParking{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("spot_id", &ids).Error
	return ids, err
}

// SpotIDsBlockedAt returns, among spotIDs, those holding a reservation that
// is still open or exits after t
func (r *ReservationRepository) SpotIDsBlockedAt(spotIDs []uint, t time.Time) ([]uint, error) {
	var ids []uint
	if len(spotIDs) == 0 {
		return ids, nil
	}
	err := r.db.Model(&models.ReservedParking{}).
		Where("spot_id IN ? AND (exit_time IS NULL OR exit_time > ?)", spotIDs, t).
		Distinct().
		Pluck("spot_id", &ids).Error
	return ids, err
}

// CountBySpots counts all reservation rows, open or closed, on the spots
func (r *ReservationRepository) CountBySpots(spotIDs []uint) (int64, error) {
	var count int64
	if len(spotIDs) == 0 {
		return 0, nil
	}
	err := r.db.Model(&models.ReservedParking{}).Where("spot_id IN ?", spotIDs).Count(&count).Error
	return count, err
}

// Close stores the exit time and billed cost of a reservation
func (r *ReservationRepository) Close(id uint, exitTime time.Time, totalCost float64) error {
	return r.db.Model(&models.ReservedParking{}).Where("id = ?", id).Updates(map[string]interface{}{
		"exit_time":  exitTime,
		"total_cost": totalCost,
	}).Error
}

// DeleteByUser deletes all reservations of a user
func (r *ReservationRepository) DeleteByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.ReservedParking{}).Error
}

// DeleteBySpots deletes all reservations on the given spots
func (r *ReservationRepository) DeleteBySpots(spotIDs []uint) error {
	if len(spotIDs) == 0 {
		return nil
	}
	return r.db.Where("spot_id IN ?", spotIDs).Delete(&models.ReservedParking{}).Error
}

// DeleteReleasedBySpots deletes the reservations on the given spots that
// exited at or before t
func (r *ReservationRepository) DeleteReleasedBySpots(spotIDs []uint, t time.Time) error {
	if len(spotIDs) == 0 {
		return nil
	}
	return r.db.Where("spot_id IN ? AND exit_time IS NOT NULL AND exit_time <= ?", spotIDs, t).
		Delete(&models.ReservedParking{}).Error
}
