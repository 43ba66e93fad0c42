package repository

import (
	"errors"

	"github.com/parkpal-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrLotNotFound = errors.New("parking lot not found")
)

// LotRepository handles parking lot data access
type LotRepository struct {
	db *gorm.DB
}

// NewLotRepository creates a new LotRepository
func NewLotRepository(db *gorm.DB) *LotRepository {
	return &LotRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *LotRepository) WithTx(tx *gorm.DB) *LotRepository {
	return &LotRepository{db: tx}
}

// Create creates a new lot
func (r *LotRepository) Create(lot *models.ParkingLot) error {
	return r.db.Create(lot).Error
}

// GetByID retrieves a lot by ID
func (r *LotRepository) GetByID(id uint) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	result := r.db.First(&lot, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrLotNotFound
		}
		return nil, result.Error
	}
	return &lot, nil
}

// ExistsByName checks if another lot already uses the name.
// excludeID of 0 checks all lots.
func (r *LotRepository) ExistsByName(name string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&models.ParkingLot{}).Where("prime_location_name = ?", name)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

// List retrieves all lots
func (r *LotRepository) List() ([]models.ParkingLot, error) {
	var lots []models.ParkingLot
	result := r.db.Order("id ASC").Find(&lots)
	return lots, result.Error
}

// ListByLocation retrieves the lots of a location
func (r *LotRepository) ListByLocation(locationID uint) ([]models.ParkingLot, error) {
	var lots []models.ParkingLot
	result := r.db.Where("location_id = ?", locationID).Order("id ASC").Find(&lots)
	return lots, result.Error
}

// Update saves all lot fields
func (r *LotRepository) Update(lot *models.ParkingLot) error {
	return r.db.Save(lot).Error
}

// Delete deletes a lot row
func (r *LotRepository) Delete(id uint) error {
	return r.db.Delete(&models.ParkingLot{}, id).Error
}

// DeleteByLocation deletes all lots of a location
func (r *LotRepository) DeleteByLocation(locationID uint) error {
	return r.db.Where("location_id = ?", locationID).Delete(&models.ParkingLot{}).Error
}
