package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
)

var (
	// ErrCapacityExhausted is returned by Reserve when the slot has no capacity left.
	ErrCapacityExhausted = errors.New("slot unavailable: capacity exhausted")
	// ErrUnknownSlot is returned when no slot exists for the given key.
	ErrUnknownSlot = errors.New("unknown capacity slot")
)

// Gate is the fixed-capacity slot counter consulted as an availability veto.
type Gate interface {
	RemainingCapacity(ctx context.Context, slotKey string) (int, error)
	Reserve(ctx context.Context, slotKey string) error
	Release(ctx context.Context, slotKey string) error
	SlotsFor(ctx context.Context, facilityID int64, iv interval.Interval) ([]model.CapacitySlot, error)
}

// GormGate implements Gate on the capacity_slots table.
type GormGate struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormGate creates a gate bound to db, which may be a transaction handle.
func NewGormGate(db *gorm.DB) *GormGate {
	return &GormGate{db: db, now: time.Now}
}

// RemainingCapacity returns how many reservations the slot can still take.
func (g *GormGate) RemainingCapacity(ctx context.Context, slotKey string) (int, error) {
	slot, err := g.get(ctx, slotKey)
	if err != nil {
		return 0, err
	}
	return slot.Remaining(), nil
}

// Reserve takes one unit of capacity with a single conditional UPDATE, so two
// concurrent bookings of the last unit cannot both succeed.
func (g *GormGate) Reserve(ctx context.Context, slotKey string) error {
	res := g.db.WithContext(ctx).
		Model(&model.CapacitySlot{}).
		Where("slot_key = ? AND booked < max_capacity", slotKey).
		Updates(map[string]any{
			"booked":     gorm.Expr("booked + 1"),
			"updated_at": g.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reserve slot %q: %w", slotKey, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := g.get(ctx, slotKey); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrCapacityExhausted, slotKey)
	}
	return nil
}

// Release gives one unit of capacity back. Booked never drops below zero.
func (g *GormGate) Release(ctx context.Context, slotKey string) error {
	res := g.db.WithContext(ctx).
		Model(&model.CapacitySlot{}).
		Where("slot_key = ? AND booked > 0", slotKey).
		Updates(map[string]any{
			"booked":     gorm.Expr("booked - 1"),
			"updated_at": g.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release slot %q: %w", slotKey, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either unknown or already at zero.
		if _, err := g.get(ctx, slotKey); err != nil {
			return err
		}
	}
	return nil
}

// SlotsFor returns the slots of a facility whose window overlaps iv.
func (g *GormGate) SlotsFor(ctx context.Context, facilityID int64, iv interval.Interval) ([]model.CapacitySlot, error) {
	var slots []model.CapacitySlot
	if err := g.db.WithContext(ctx).
		Where("facility_id = ? AND starts_at < ? AND ends_at > ?", facilityID, iv.End.UTC(), iv.Start.UTC()).
		Order("starts_at").
		Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch slots for facility %d: %w", facilityID, err)
	}
	// The SQL filter narrows; the half-open predicate decides.
	out := slots[:0]
	for _, s := range slots {
		if interval.Overlaps(s.StartsAt, s.EndsAt, iv.Start, iv.End) {
			out = append(out, s)
		}
	}
	return out, nil
}

// UpsertSlots creates or reconfigures slots. The booked counter of existing
// slots is preserved.
func (g *GormGate) UpsertSlots(ctx context.Context, slots []model.CapacitySlot) error {
	if len(slots) == 0 {
		return nil
	}
	for i := range slots {
		slots[i].StartsAt = slots[i].StartsAt.UTC()
		slots[i].EndsAt = slots[i].EndsAt.UTC()
		if !slots[i].StartsAt.Before(slots[i].EndsAt) {
			return fmt.Errorf("slot %q: %w", slots[i].SlotKey, interval.ErrInvalidInterval)
		}
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"facility_id", "starts_at", "ends_at", "max_capacity", "updated_at"}),
	}).Create(&slots).Error
}

func (g *GormGate) get(ctx context.Context, slotKey string) (model.CapacitySlot, error) {
	var slot model.CapacitySlot
	err := g.db.WithContext(ctx).Where("slot_key = ?", slotKey).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CapacitySlot{}, fmt.Errorf("%w: %s", ErrUnknownSlot, slotKey)
	}
	if err != nil {
		return model.CapacitySlot{}, fmt.Errorf("failed to load slot %q: %w", slotKey, err)
	}
	return slot, nil
}
