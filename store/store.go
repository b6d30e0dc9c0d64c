// Package store wraps the persistent store behind the minimal capability set
// the rest of the system needs: filtered find with sort and limit, upsert with
// an explicit conflict target, and select with field projection. The handle is
// constructed explicitly and passed into collaborators; there is no package
// global.
package store

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Config holds connection settings for the production postgres store.
type Config struct {
	DSN     string
	Verbose bool
}

// Store is an explicitly opened database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and verifies the connection with a ping.
func Open(cfg Config) (*Store, error) {
	return OpenDialector(postgres.Open(cfg.DSN), cfg.Verbose)
}

// OpenDialector opens a store over any gorm dialector. Tests use this with an
// in-memory sqlite database.
func OpenDialector(dialector gorm.Dialector, verbose bool) (*Store, error) {
	logLevel := logger.Error
	if verbose {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Database connection verified successfully")
	return &Store{db: db}, nil
}

// DB exposes the underlying gorm handle for filtered finds and projections.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping verifies the connection is still alive.
func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	log.Println("Database connection closed")
	return nil
}

// UpsertWithConflict inserts records, updating the named columns when the
// conflict target matches an existing row.
func (s *Store) UpsertWithConflict(ctx context.Context, records interface{}, conflictColumns, updateColumns []string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   toColumns(conflictColumns),
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(records).Error
}

// UpsertIgnoreConflict inserts a record, doing nothing when the conflict
// target matches an existing row. Returns the number of rows actually
// inserted (0 when the row already existed).
func (s *Store) UpsertIgnoreConflict(ctx context.Context, record interface{}, conflictColumns []string) (int64, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   toColumns(conflictColumns),
		DoNothing: true,
	}).Create(record)
	return tx.RowsAffected, tx.Error
}

func toColumns(names []string) []clause.Column {
	columns := make([]clause.Column, len(names))
	for i, name := range names {
		columns[i] = clause.Column{Name: name}
	}
	return columns
}
