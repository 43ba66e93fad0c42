package repository

import (
	"errors"
	"time"

	"github.com/parkpal-server/internal/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository handles user data access
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create creates a new user
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	result := r.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// ExistsByUsername checks if a username is already registered
func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail checks if an email is already registered
func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// ExistsOtherWithUsernameOrEmail checks whether a different user already
// holds the username or the email
func (r *UserRepository) ExistsOtherWithUsernameOrEmail(id uint, username, email string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("id <> ? AND (username = ? OR email = ?)", id, username, email).
		Count(&count).Error
	return count > 0, err
}

// HasAdmin reports whether at least one admin exists
func (r *UserRepository) HasAdmin() (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("admin = ?", true).Count(&count).Error
	return count > 0, err
}

// ListRegular retrieves all non-admin users
func (r *UserRepository) ListRegular() ([]models.User, error) {
	var users []models.User
	result := r.db.Where("admin = ?", false).Order("id ASC").Find(&users)
	return users, result.Error
}

// ListRegularPage retrieves one page of non-admin users in id order together
// with the total number of non-admin users
func (r *UserRepository) ListRegularPage(offset, limit int) ([]models.User, int64, error) {
	var total int64
	if err := r.db.Model(&models.User{}).Where("admin = ?", false).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	result := r.db.Where("admin = ?", false).Order("id ASC").Offset(offset).Limit(limit).Find(&users)
	return users, total, result.Error
}

// ListInactiveSince retrieves non-admin users whose last login is before t
func (r *UserRepository) ListInactiveSince(t time.Time) ([]models.User, error) {
	var users []models.User
	result := r.db.Where("admin = ? AND last_login < ?", false, t).Order("id ASC").Find(&users)
	return users, result.Error
}

// UpdateLastLogin sets the last login timestamp
func (r *UserRepository) UpdateLastLogin(id uint, t time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_login", t).Error
}

// Update updates a user
func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete deletes a user
func (r *UserRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}
