package repository

import (
	"errors"

	"github.com/parkpal-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSpotNotFound = errors.New("parking spot not found")
)

// SpotRepository handles parking spot data access
type SpotRepository struct {
	db *gorm.DB
}

// NewSpotRepository creates a new SpotRepository
func NewSpotRepository(db *gorm.DB) *SpotRepository {
	return &SpotRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *SpotRepository) WithTx(tx *gorm.DB) *SpotRepository {
	return &SpotRepository{db: tx}
}

// CreateBatch creates count available spots for a lot
func (r *SpotRepository) CreateBatch(lotID uint, count int) error {
	if count <= 0 {
		return nil
	}
	spots := make([]models.ParkingSpot, count)
	for i := range spots {
		spots[i] = models.ParkingSpot{LotID: lotID, IsAvailable: true}
	}
	return r.db.Create(&spots).Error
}

// GetByID retrieves a spot by ID
func (r *SpotRepository) GetByID(id uint) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	result := r.db.First(&spot, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, result.Error
	}
	return &spot, nil
}

// GetByIDForUpdate retrieves a spot and locks its row until the transaction ends.
// Dialects without row locks (SQLite) ignore the locking clause.
func (r *SpotRepository) GetByIDForUpdate(id uint) (*models.ParkingSpot, error) {
	var spot models.ParkingSpot
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&spot, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSpotNotFound
		}
		return nil, result.Error
	}
	return &spot, nil
}

// List retrieves all spots
func (r *SpotRepository) List() ([]models.ParkingSpot, error) {
	var spots []models.ParkingSpot
	result := r.db.Order("id ASC").Find(&spots)
	return spots, result.Error
}

// ListByLot retrieves the spots of a lot in ascending id order
func (r *SpotRepository) ListByLot(lotID uint) ([]models.ParkingSpot, error) {
	var spots []models.ParkingSpot
	result := r.db.Where("lot_id = ?", lotID).Order("id ASC").Find(&spots)
	return spots, result.Error
}

// ListByLotNewestFirstForUpdate retrieves the spots of a lot, most recently
// created first, and locks them until the transaction ends
func (r *SpotRepository) ListByLotNewestFirstForUpdate(lotID uint) ([]models.ParkingSpot, error) {
	var spots []models.ParkingSpot
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lot_id = ?", lotID).
		Order("id DESC").
		Find(&spots)
	return spots, result.Error
}

// IDsByLots returns the spot ids belonging to any of the lots
func (r *SpotRepository) IDsByLots(lotIDs []uint) ([]uint, error) {
	var ids []uint
	if len(lotIDs) == 0 {
		return ids, nil
	}
	err := r.db.Model(&models.ParkingSpot{}).Where("lot_id IN ?", lotIDs).Pluck("id", &ids).Error
	return ids, err
}

// LotNamesBySpot maps each of the spot ids to the name of its lot
func (r *SpotRepository) LotNamesBySpot(spotIDs []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(spotIDs))
	if len(spotIDs) == 0 {
		return names, nil
	}

	var rows []struct {
		SpotID  uint
		LotName string
	}
	err := r.db.Table("parking_spots").
		Select("parking_spots.id AS spot_id, parking_lots.prime_location_name AS lot_name").
		Joins("JOIN parking_lots ON parking_lots.id = parking_spots.lot_id").
		Where("parking_spots.id IN ?", spotIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		names[row.SpotID] = row.LotName
	}
	return names, nil
}

// CountByLot counts the spots of a lot
func (r *SpotRepository) CountByLot(lotID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ParkingSpot{}).Where("lot_id = ?", lotID).Count(&count).Error
	return count, err
}

// CountAvailableByLot counts the available spots of a lot
func (r *SpotRepository) CountAvailableByLot(lotID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ParkingSpot{}).
		Where("lot_id = ? AND is_available = ?", lotID, true).
		Count(&count).Error
	return count, err
}

// SetAvailability updates the availability flag of a spot
func (r *SpotRepository) SetAvailability(id uint, available bool) error {
	return r.db.Model(&models.ParkingSpot{}).Where("id = ?", id).Update("is_available", available).Error
}

// Claim marks an available spot occupied.
// It reports false when the spot was no longer available.
func (r *SpotRepository) Claim(id uint) (bool, error) {
	result := r.db.Model(&models.ParkingSpot{}).
		Where("id = ? AND is_available = ?", id, true).
		Update("is_available", false)
	return result.RowsAffected == 1, result.Error
}

// MarkAvailable frees all the given spots
func (r *SpotRepository) MarkAvailable(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.ParkingSpot{}).Where("id IN ?", ids).Update("is_available", true).Error
}

// DeleteAvailable deletes those of the given spots that are still available
// and returns how many were deleted
func (r *SpotRepository) DeleteAvailable(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Where("id IN ? AND is_available = ?", ids, true).Delete(&models.ParkingSpot{})
	return result.RowsAffected, result.Error
}

// DeleteByLots deletes all spots of the given lots
func (r *SpotRepository) DeleteByLots(lotIDs []uint) error {
	if len(lotIDs) == 0 {
		return nil
	}
	return r.db.Where("lot_id IN ?", lotIDs).Delete(&models.ParkingSpot{}).Error
}
