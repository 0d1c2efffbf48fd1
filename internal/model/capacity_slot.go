package model

import "time"

// CapacitySlot is a fixed-capacity booking window, e.g. a visiting-hour slot
// hosting at most MaxCapacity visits.
type CapacitySlot struct {
	SlotKey     string    `gorm:"primaryKey;size:128" json:"slot_key"`
	FacilityID  *int64    `gorm:"index" json:"facility_id,omitempty"`
	StartsAt    time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt      time.Time `gorm:"not null" json:"ends_at"`
	MaxCapacity int       `gorm:"not null" json:"max_capacity"`
	Booked      int       `gorm:"not null;default:0" json:"booked"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// Remaining returns the number of reservations still available, never negative.
func (s CapacitySlot) Remaining() int {
	if s.Booked >= s.MaxCapacity {
		return 0
	}
	return s.MaxCapacity - s.Booked
}
