package model

import "time"

// PushSubscription holds an operator browser's push endpoint. Alerts are sent
// for newly detected conflicts at or above MinSeverity.
type PushSubscription struct {
	Endpoint    string    `gorm:"primaryKey" json:"endpoint"`
	P256DH      string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth        string    `gorm:"not null" json:"auth"`
	MinSeverity Severity  `gorm:"size:16;not null;default:high" json:"min_severity"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// Wants reports whether the subscription should be alerted for a conflict of severity s.
func (p PushSubscription) Wants(s Severity) bool {
	min := p.MinSeverity
	if !min.Valid() {
		min = SeverityHigh
	}
	return s.Rank() >= min.Rank()
}
