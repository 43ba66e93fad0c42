package models

import "time"

// Location is a named place grouping one or more parking lots
type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:80;not null" json:"name"`
	City      string    `gorm:"size:80;not null" json:"city"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Lots []ParkingLot `gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE" json:"lots"`
}

// TableName specifies the table name for Location model
func (Location) TableName() string {
	return "locations"
}
