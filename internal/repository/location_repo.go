package repository

import (
	"errors"

	"github.com/parkpal-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrLocationNotFound = errors.New("location not found")
)

// LocationRepository handles location data access
type LocationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new LocationRepository
func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *LocationRepository) WithTx(tx *gorm.DB) *LocationRepository {
	return &LocationRepository{db: tx}
}

// Create creates a new location
func (r *LocationRepository) Create(location *models.Location) error {
	return r.db.Create(location).Error
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(id uint) (*models.Location, error) {
	var location models.Location
	result := r.db.First(&location, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, result.Error
	}
	return &location, nil
}

// ExistsByName checks if a location name is taken
func (r *LocationRepository) ExistsByName(name string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Location{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

// ListWithLots retrieves all locations with their lots preloaded
func (r *LocationRepository) ListWithLots() ([]models.Location, error) {
	var locations []models.Location
	result := r.db.Preload("Lots", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Order("id ASC").Find(&locations)
	return locations, result.Error
}

// Delete deletes a location row
func (r *LocationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Location{}, id).Error
}
