package models

import "time"

// ReservedParking records one stay of a user on a spot.
// ExitTime and TotalCost stay nil until the reservation is released.
type ReservedParking struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	SpotID    uint       `gorm:"index;not null" json:"spot_id"`
	ParkTime  time.Time  `gorm:"not null;index" json:"park_time"`
	ExitTime  *time.Time `json:"exit_time"`
	TotalCost *float64   `json:"total_cost"`

	// Relations
	User User        `gorm:"foreignKey:UserID" json:"-"`
	Spot ParkingSpot `gorm:"foreignKey:SpotID" json:"-"`
}

// TableName specifies the table name for ReservedParking model
func (ReservedParking) TableName() string {
	return "reserved_parkings"
}

// IsActive returns true while the reservation has not been released
func (r *ReservedParking) IsActive() bool {
	return r.ExitTime == nil
}

// BlocksSpotAt reports whether the reservation still holds its spot at t:
// it is open, or its exit time lies after t.
func (r *ReservedParking) BlocksSpotAt(t time.Time) bool {
	return r.ExitTime == nil || r.ExitTime.After(t)
}
