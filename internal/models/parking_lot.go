package models

import "time"

// ParkingLot is a priced collection of spots at a location
type ParkingLot struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	PrimeLocationName string    `gorm:"uniqueIndex;size:80;not null" json:"prime_location_name"`
	Price             float64   `gorm:"not null" json:"price"`
	Address           string    `gorm:"size:120;not null" json:"address"`
	PinCode           string    `gorm:"size:6;not null" json:"pin_code"`
	NumberOfSpots     int       `gorm:"not null" json:"number_of_spots"`
	LocationID        uint      `gorm:"index;not null" json:"location_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	Location Location      `gorm:"foreignKey:LocationID" json:"-"`
	Spots    []ParkingSpot `gorm:"foreignKey:LotID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for ParkingLot model
func (ParkingLot) TableName() string {
	return "parking_lots"
}
