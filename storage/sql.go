package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvRow is one ledger record in the SQL backend.
type kvRow struct {
	Key   []byte `gorm:"column:record_key;primaryKey"`
	Value []byte `gorm:"column:record_value;not null"`
}

func (kvRow) TableName() string { return "ledger_kv" }

// SQLDB stores the ledger keyspace in a single SQL table through gorm. It is
// an alternative to LevelDB for operators who already run Postgres, and runs
// over SQLite for single-host deployments.
type SQLDB struct {
	db *gorm.DB
}

// IsPostgresDSN reports whether dsn selects the Postgres driver.
func IsPostgresDSN(dsn string) bool {
	trimmed := strings.TrimSpace(dsn)
	return strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://")
}

// OpenSQL connects to dsn and migrates the ledger table. postgres:// and
// postgresql:// URLs use Postgres; anything else is a SQLite path or URI.
func OpenSQL(dsn string) (*SQLDB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, errors.New("storage: sql dsn required")
	}
	var dialector gorm.Dialector
	if IsPostgresDSN(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open sql database: %w", err)
	}
	if !IsPostgresDSN(trimmed) {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewSQLDB(db)
}

// NewSQLDB wraps an existing gorm connection.
func NewSQLDB(db *gorm.DB) (*SQLDB, error) {
	if db == nil {
		return nil, errors.New("storage: nil sql database")
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("storage: migrate ledger table: %w", err)
	}
	return &SQLDB{db: db}, nil
}

func (s *SQLDB) Get(key []byte) ([]byte, error) {
	var row kvRow
	err := s.db.Where("record_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (s *SQLDB) Has(key []byte) (bool, error) {
	var count int64
	if err := s.db.Model(&kvRow{}).Where("record_key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SQLDB) Put(key []byte, value []byte) error {
	return upsert(s.db, key, value)
}

func (s *SQLDB) Delete(key []byte) error {
	return s.db.Where("record_key = ?", key).Delete(&kvRow{}).Error
}

// Write replays the batch inside one SQL transaction.
func (s *SQLDB) Write(batch *Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		replay := &sqlReplay{tx: tx}
		if err := batch.inner.Replay(replay); err != nil {
			return err
		}
		return replay.err
	})
}

func (s *SQLDB) Iterate(fn func(key, value []byte) error) error {
	rows, err := s.db.Model(&kvRow{}).Order("record_key").Rows()
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var row kvRow
		if err := s.db.ScanRows(rows, &row); err != nil {
			return err
		}
		if err := fn(row.Key, row.Value); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLDB) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func upsert(tx *gorm.DB, key, value []byte) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"record_value"}),
	}).Create(&kvRow{Key: key, Value: value}).Error
}

// sqlReplay applies leveldb batch records to a gorm transaction, keeping the
// first failure.
type sqlReplay struct {
	tx  *gorm.DB
	err error
}

func (r *sqlReplay) Put(key, value []byte) {
	if r.err != nil {
		return
	}
	r.err = upsert(r.tx, key, value)
}

func (r *sqlReplay) Delete(key []byte) {
	if r.err != nil {
		return
	}
	r.err = r.tx.Where("record_key = ?", key).Delete(&kvRow{}).Error
}
