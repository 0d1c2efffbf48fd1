package model

import (
	"strings"
	"time"

	"custody-schedule-backend/internal/interval"
)

// ActivityStatus is the lifecycle state of a scheduled activity.
type ActivityStatus string

const (
	ActivityScheduled   ActivityStatus = "scheduled"
	ActivityConfirmed   ActivityStatus = "confirmed"
	ActivityCompleted   ActivityStatus = "completed"
	ActivityCancelled   ActivityStatus = "cancelled"
	ActivityRescheduled ActivityStatus = "rescheduled"
)

// Valid reports whether s is a known activity status.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityScheduled, ActivityConfirmed, ActivityCompleted, ActivityCancelled, ActivityRescheduled:
		return true
	}
	return false
}

// Participates reports whether activities in this status take part in conflict detection.
func (s ActivityStatus) Participates() bool {
	return s != ActivityCancelled
}

// Activity is a single timed event held for a subject (hearing, visit, program session).
type Activity struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	Type          string         `gorm:"size:64;not null" json:"type"`
	SubjectID     int64          `gorm:"index;not null" json:"subject_id"`
	FacilityID    *int64         `gorm:"index" json:"facility_id,omitempty"`
	ProgramID     *int64         `json:"program_id,omitempty"`
	CounterpartID *int64         `json:"counterpart_id,omitempty"`
	Officer       string         `gorm:"size:128;index" json:"officer,omitempty"`
	Resource      string         `gorm:"size:128;index" json:"resource,omitempty"`
	SlotKey       *string        `gorm:"size:128" json:"slot_key,omitempty"`
	StartsAt      time.Time      `gorm:"not null;index" json:"starts_at"`
	EndsAt        time.Time      `gorm:"not null;index" json:"ends_at"`
	Status        ActivityStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedBy     int64          `gorm:"not null" json:"created_by"`
	UpdatedBy     int64          `gorm:"not null" json:"updated_by"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

// Interval returns the activity's time range.
func (a Activity) Interval() interval.Interval {
	return interval.Interval{Start: a.StartsAt, End: a.EndsAt}
}

// Normalize trims free-text labels and converts instants to UTC so that
// stored values compare consistently across drivers.
func (a *Activity) Normalize() {
	a.Officer = strings.TrimSpace(a.Officer)
	a.Resource = strings.TrimSpace(a.Resource)
	a.StartsAt = a.StartsAt.UTC()
	a.EndsAt = a.EndsAt.UTC()
	if a.SlotKey != nil && strings.TrimSpace(*a.SlotKey) == "" {
		a.SlotKey = nil
	}
}

// Dimensions lists the conflict dimensions the activity occupies, highest
// precedence first. The subject dimension is always present.
func (a Activity) Dimensions() []DimensionKey {
	keys := []DimensionKey{SubjectKey(a.SubjectID)}
	if a.FacilityID != nil {
		keys = append(keys, FacilityKey(*a.FacilityID))
	}
	if officer := strings.TrimSpace(a.Officer); officer != "" {
		keys = append(keys, OfficerKey(officer))
	}
	if resource := strings.TrimSpace(a.Resource); resource != "" {
		keys = append(keys, ResourceKey(resource))
	}
	return keys
}
