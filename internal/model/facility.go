package model

import "time"

// Facility is a room or area activities can be held in.
// Capacity is the declared number of concurrent occupants; 1 means a single-use room.
type Facility struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Capacity  int       `gorm:"not null;default:1" json:"capacity"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`

	// Associations
	Slots []CapacitySlot `gorm:"foreignKey:FacilityID" json:"-"`
}

// SingleOccupancy reports whether the facility can host only one activity at a time.
func (f Facility) SingleOccupancy() bool {
	return f.Capacity <= 1
}
