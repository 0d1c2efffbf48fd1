package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/interval"
	"custody-schedule-backend/internal/model"
)

// ErrNotFound is returned when a referenced activity, conflict or facility does not exist.
var ErrNotFound = errors.New("not found")

// ActivityStore persists scheduled activities.
type ActivityStore interface {
	CreateActivity(ctx context.Context, a *model.Activity) error
	SaveActivity(ctx context.Context, a *model.Activity) error
	GetActivity(ctx context.Context, id int64) (model.Activity, error)
	DeleteActivity(ctx context.Context, id int64) error
	FindActivities(ctx context.Context, ids []int64) (map[int64]model.Activity, error)
	FindOverlappingCandidates(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) ([]model.Activity, error)
}

// ConflictStore persists conflict records.
type ConflictStore interface {
	FindConflictByPair(ctx context.Context, idA, idB int64, t model.ConflictType) (model.Conflict, error)
	CreateConflict(ctx context.Context, c *model.Conflict) (bool, error)
	GetConflict(ctx context.Context, id int64) (model.Conflict, error)
	ListConflictsForActivity(ctx context.Context, activityID int64) ([]model.Conflict, error)
	ListConflicts(ctx context.Context, f ConflictFilter) ([]model.Conflict, error)
	RetireConflicts(ctx context.Context, ids []int64, at time.Time) error
	TransitionConflict(ctx context.Context, id int64, from []model.ConflictStatus, changes map[string]any) (bool, error)
	ActivitiesWithOpenConflicts(ctx context.Context) ([]int64, error)
}

// FacilityStore reads facility reference data.
type FacilityStore interface {
	GetFacility(ctx context.Context, id int64) (model.Facility, error)
}

// SubscriptionStore persists operator push subscriptions.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	ActivityStore
	ConflictStore
	FacilityStore
	SubscriptionStore

	// Capacity returns the slot gate bound to the same connection or transaction.
	Capacity() capacity.Gate
	// Transaction runs fn in one atomic unit of work. Any error rolls back
	// every write made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Capacity() capacity.Gate {
	return capacity.NewGormGate(s.db)
}

// Transaction runs fn inside a database transaction. On postgres the
// transaction is SERIALIZABLE so that a detection scan and the write that
// triggered it cannot interleave with a concurrent booking; serialization
// failures are returned to the caller unchanged.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	}, opts...)
}

// --- Activities ---

func (s *gormStore) CreateActivity(ctx context.Context, a *model.Activity) error {
	a.Normalize()
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create activity for subject %d: %w", a.SubjectID, err)
	}
	return nil
}

func (s *gormStore) SaveActivity(ctx context.Context, a *model.Activity) error {
	a.Normalize()
	res := s.db.WithContext(ctx).Save(a)
	if res.Error != nil {
		return fmt.Errorf("failed to save activity %d: %w", a.ID, res.Error)
	}
	return nil
}

func (s *gormStore) GetActivity(ctx context.Context, id int64) (model.Activity, error) {
	var a model.Activity
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Activity{}, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Activity{}, fmt.Errorf("failed to load activity %d: %w", id, err)
	}
	return a, nil
}

func (s *gormStore) DeleteActivity(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&model.Activity{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete activity %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	return nil
}

// FindActivities loads the given activities keyed by id. Missing ids are
// simply absent from the map.
func (s *gormStore) FindActivities(ctx context.Context, ids []int64) (map[int64]model.Activity, error) {
	out := make(map[int64]model.Activity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var activities []model.Activity
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	for _, a := range activities {
		out[a.ID] = a
	}
	return out, nil
}

// FindOverlappingCandidates returns non-cancelled activities sharing key whose
// interval overlaps iv, excluding excludeID when it is non-zero.
func (s *gormStore) FindOverlappingCandidates(ctx context.Context, key model.DimensionKey, iv interval.Interval, excludeID int64) ([]model.Activity, error) {
	q := s.db.WithContext(ctx).
		Where("status <> ?", model.ActivityCancelled).
		Where("starts_at < ? AND ends_at > ?", iv.End.UTC(), iv.Start.UTC())

	switch key.Kind {
	case model.DimensionSubject:
		q = q.Where("subject_id = ?", key.ID)
	case model.DimensionFacility:
		q = q.Where("facility_id = ?", key.ID)
	case model.DimensionOfficer:
		if key.Label == "" {
			return nil, nil
		}
		q = q.Where("officer = ?", key.Label)
	case model.DimensionResource:
		if key.Label == "" {
			return nil, nil
		}
		q = q.Where("resource = ?", key.Label)
	default:
		return nil, fmt.Errorf("unknown dimension %q", key.Kind)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var candidates []model.Activity
	if err := q.Order("starts_at, id").Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to find candidates on %s: %w", key, err)
	}
	return candidates, nil
}

// --- Conflicts ---

func (s *gormStore) FindConflictByPair(ctx context.Context, idA, idB int64, t model.ConflictType) (model.Conflict, error) {
	lo, hi := model.Pair(idA, idB)
	var c model.Conflict
	err := s.db.WithContext(ctx).
		Where("activity_a_id = ? AND activity_b_id = ? AND type = ? AND retired_at IS NULL", lo, hi, t).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Conflict{}, fmt.Errorf("conflict %d/%d %s: %w", lo, hi, t, ErrNotFound)
	}
	if err != nil {
		return model.Conflict{}, fmt.Errorf("failed to look up conflict %d/%d: %w", lo, hi, err)
	}
	return c, nil
}

// CreateConflict inserts c unless a live record for the same pair and type
// already exists. It reports whether a row was written; when it was not, c is
// overwritten with the existing record.
func (s *gormStore) CreateConflict(ctx context.Context, c *model.Conflict) (bool, error) {
	c.ActivityAID, c.ActivityBID = model.Pair(c.ActivityAID, c.ActivityBID)
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create conflict %d/%d: %w", c.ActivityAID, c.ActivityBID, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	existing, err := s.FindConflictByPair(ctx, c.ActivityAID, c.ActivityBID, c.Type)
	if err != nil {
		return false, err
	}
	*c = existing
	return false, nil
}

func (s *gormStore) GetConflict(ctx context.Context, id int64) (model.Conflict, error) {
	var c model.Conflict
	err := s.db.WithContext(ctx).Where("retired_at IS NULL").First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Conflict{}, fmt.Errorf("conflict %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Conflict{}, fmt.Errorf("failed to load conflict %d: %w", id, err)
	}
	return c, nil
}

func (s *gormStore) ListConflictsForActivity(ctx context.Context, activityID int64) ([]model.Conflict, error) {
	var out []model.Conflict
	if err := s.db.WithContext(ctx).
		Where("retired_at IS NULL AND (activity_a_id = ? OR activity_b_id = ?)", activityID, activityID).
		Order("id").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list conflicts for activity %d: %w", activityID, err)
	}
	return out, nil
}

// ListConflicts returns live conflicts matching f, most severe first, then newest.
func (s *gormStore) ListConflicts(ctx context.Context, f ConflictFilter) ([]model.Conflict, error) {
	statuses, err := f.Group.Statuses()
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Model(&model.Conflict{}).Where("retired_at IS NULL")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ActivityID != 0 {
		q = q.Where("(activity_a_id = ? OR activity_b_id = ?)", f.ActivityID, f.ActivityID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []model.Conflict
	if err := q.
		Order(severityOrder).
		Order("detected_at DESC").
		Order("id DESC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return out, nil
}

const severityOrder = "CASE severity " +
	"WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC"

// RetireConflicts suppresses stale records. Retired rows no longer count
// towards the one-live-record-per-pair index.
func (s *gormStore) RetireConflicts(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Model(&model.Conflict{}).
		Where("id IN ? AND retired_at IS NULL", ids).
		Updates(map[string]any{"retired_at": at.UTC(), "updated_at": at.UTC()}).Error; err != nil {
		return fmt.Errorf("failed to retire %d conflicts: %w", len(ids), err)
	}
	return nil
}

// TransitionConflict applies changes only if the record is live and currently
// in one of the from statuses. It reports whether the row was updated.
func (s *gormStore) TransitionConflict(ctx context.Context, id int64, from []model.ConflictStatus, changes map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Conflict{}).
		Where("id = ? AND retired_at IS NULL AND status IN ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update conflict %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ActivitiesWithOpenConflicts returns the distinct activity ids referenced by
// live unresolved conflicts.
func (s *gormStore) ActivitiesWithOpenConflicts(ctx context.Context) ([]int64, error) {
	var rows []struct {
		ActivityAID int64 `gorm:"column:activity_a_id"`
		ActivityBID int64 `gorm:"column:activity_b_id"`
	}
	if err := s.db.WithContext(ctx).
		Model(&model.Conflict{}).
		Select("activity_a_id, activity_b_id").
		Where("retired_at IS NULL AND status IN ?", model.UnresolvedStatuses).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to scan open conflicts: %w", err)
	}

	seen := make(map[int64]struct{}, len(rows)*2)
	var ids []int64
	for _, r := range rows {
		for _, id := range []int64{r.ActivityAID, r.ActivityBID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// --- Facilities ---

func (s *gormStore) GetFacility(ctx context.Context, id int64) (model.Facility, error) {
	var f model.Facility
	err := s.db.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Facility{}, fmt.Errorf("facility %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Facility{}, fmt.Errorf("failed to load facility %d: %w", id, err)
	}
	return f, nil
}

// --- Push subscriptions ---

func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "min_severity"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, fmt.Errorf("subscription: %w", ErrNotFound)
	}
	return sub, err
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
