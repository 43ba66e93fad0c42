package models

// ParkingSpot is the reservable unit within a lot
type ParkingSpot struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	LotID       uint `gorm:"index;not null" json:"lot_id"`
	IsAvailable bool `gorm:"not null;default:true" json:"is_available"`

	// Relations
	Lot          ParkingLot        `gorm:"foreignKey:LotID" json:"-"`
	Reservations []ReservedParking `gorm:"foreignKey:SpotID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for ParkingSpot model
func (ParkingSpot) TableName() string {
	return "parking_spots"
}
