// Package records is the SQLite-backed record store: one denormalized row per
// person, name uniqueness, and identity allocation.
package records

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	personsTable   = "persons"
	pendingTable   = "pending_connexions"
	personSequence = "person"
)

// personModel is the persisted row. Column names match the wire field names.
type personModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name        string  `gorm:"column:name;not null;uniqueIndex:idx_persons_name"`
	NameKey     string  `gorm:"column:nameKey;not null;index:idx_persons_name_key"` // lower(name), prefix search
	CodeName    *string `gorm:"column:codeName"`
	Status      string  `gorm:"column:status;not null;index:idx_persons_status"`
	DateOfBirth int64   `gorm:"column:dateOfBirth;not null"`
}

func (personModel) TableName() string {
	return personsTable
}

// sequenceModel keeps the identity high-water mark so deleted ids are never reissued.
type sequenceModel struct {
	Name   string `gorm:"column:name;primaryKey"`
	NextID int64  `gorm:"column:next_id;not null"`
}

func (sequenceModel) TableName() string {
	return "identity_sequences"
}

// pendingModel is a connexion whose target name had no person yet. The row
// is resolved when a person with that name is saved.
type pendingModel struct {
	PersonID int64  `gorm:"column:person_id;primaryKey;autoIncrement:false"`
	Target   string `gorm:"column:target;primaryKey;index:idx_pending_target"`
}

func (pendingModel) TableName() string {
	return pendingTable
}

// Options configures Open.
type Options struct {
	Path          string
	MaxOpenConns  int
	BusyTimeout   time.Duration
	SlowThreshold time.Duration
}

// Open connects to the SQLite file at opts.Path, routes GORM logging through
// zap and migrates the schema.
func Open(opts Options, log *zap.Logger) (*gorm.DB, error) {
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 16
	}
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = 200 * time.Millisecond
	}

	gormLog := gormlogger.New(
		zap.NewStdLog(log.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn(opts)), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open record store at %s: %w", opts.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Info("Record store initialized", zap.String("path", opts.Path))
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&personModel{}, &sequenceModel{}, &pendingModel{}); err != nil {
		return fmt.Errorf("record store migration failed: %w", err)
	}
	seed := sequenceModel{Name: personSequence, NextID: 0}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("failed to seed identity sequence: %w", err)
	}
	return nil
}

func dsn(opts Options) string {
	sep := "?"
	if strings.Contains(opts.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		opts.Path, sep, opts.BusyTimeout.Milliseconds())
}
