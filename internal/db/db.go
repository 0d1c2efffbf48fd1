package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"custody-schedule-backend/config"
	"custody-schedule-backend/internal/capacity"
	"custody-schedule-backend/internal/model"
)

// Init opens the configured database, tunes the pool and runs migrations.
func Init(cfg *config.DatabaseConfig, log *charmlog.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations", "driver", cfg.Driver)
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if db.Dialector.Name() == "postgres" {
		if err := applyRangeDDL(db, cfg.EnforceSubjectExclusion); err != nil {
			log.Warn("failed to apply some range DDL, continuing without it", "err", err)
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Facility{},
		&model.CapacitySlot{},
		&model.Activity{},
		&model.Conflict{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed upserts the facilities and capacity slots declared in the config file.
func Seed(ctx context.Context, db *gorm.DB, seed config.SeedConfig) error {
	if len(seed.Facilities) > 0 {
		facilities := make([]model.Facility, 0, len(seed.Facilities))
		for _, f := range seed.Facilities {
			capacity := f.Capacity
			if capacity <= 0 {
				capacity = 1
			}
			facilities = append(facilities, model.Facility{ID: f.ID, Name: f.Name, Capacity: capacity})
		}
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "capacity", "updated_at"}),
		}).Create(&facilities).Error; err != nil {
			return fmt.Errorf("batch upsert facilities failed: %w", err)
		}
	}

	if len(seed.Slots) > 0 {
		slots := make([]model.CapacitySlot, 0, len(seed.Slots))
		for _, s := range seed.Slots {
			slot := model.CapacitySlot{
				SlotKey:     s.Key,
				StartsAt:    s.Start,
				EndsAt:      s.End,
				MaxCapacity: s.MaxCapacity,
			}
			if s.FacilityID != 0 {
				id := s.FacilityID
				slot.FacilityID = &id
			}
			slots = append(slots, slot)
		}
		if err := capacity.NewGormGate(db).UpsertSlots(ctx, slots); err != nil {
			return fmt.Errorf("batch upsert slots failed: %w", err)
		}
	}
	return nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// applyRangeDDL installs range indexes over the half-open activity and slot
// windows. With enforceSubject, overlapping non-cancelled activities of one
// subject are rejected by the database itself.
func applyRangeDDL(db *gorm.DB, enforceSubject bool) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		"DO $$ BEGIN " +
			"ALTER TABLE activities ADD CONSTRAINT activities_period_valid CHECK (starts_at < ends_at); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

		"CREATE INDEX IF NOT EXISTS idx_activities_facility_period ON activities " +
			"USING GIST (facility_id, tstzrange(starts_at, ends_at, '[)')) WHERE status <> 'cancelled';",

		"CREATE INDEX IF NOT EXISTS idx_activities_subject_period ON activities " +
			"USING GIST (subject_id, tstzrange(starts_at, ends_at, '[)')) WHERE status <> 'cancelled';",

		"CREATE INDEX IF NOT EXISTS idx_capacity_slots_facility_period ON capacity_slots " +
			"USING GIST (facility_id, tstzrange(starts_at, ends_at, '[)'));",

		"DO $$ BEGIN " +
			"ALTER TABLE capacity_slots ADD CONSTRAINT capacity_slots_booked_floor CHECK (booked >= 0 AND booked <= max_capacity); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",
	}
	if enforceSubject {
		ddls = append(ddls,
			"DO $$ BEGIN "+
				"ALTER TABLE activities ADD CONSTRAINT activities_subject_no_overlap "+
				"EXCLUDE USING GIST (subject_id WITH =, tstzrange(starts_at, ends_at, '[)') WITH &&) "+
				"WHERE (status <> 'cancelled'); "+
				"EXCEPTION WHEN duplicate_object THEN NULL; END $$;")
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
