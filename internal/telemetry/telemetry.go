// Package telemetry provides read-only access to the shared telemetry
// database written by the out-of-process radio ingester. All queries go
// through a single lazily opened handle; the service never writes rows.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dkrasnov/foxground/internal/metrics"
)

// ErrDBUnavailable indicates the telemetry database could not be opened.
var ErrDBUnavailable = errors.New("telemetry: database unavailable")

// Record maps one row of the external telemetry table. The table is owned
// by the radio ingester; Foxground only reads it.
type Record struct {
	ID        int64  `gorm:"column:id;primaryKey" json:"id"`
	DroneID   int64  `gorm:"column:drone_id" json:"droneId"`
	Timestamp int64  `gorm:"column:timestamp" json:"timestamp"`
	Data      string `gorm:"column:data" json:"-"`
	Active    int    `gorm:"column:active" json:"-"`
}

// TableName pins the model to the ingester's table.
func (Record) TableName() string { return "telemetry" }

// Payload returns the record's JSON payload parsed into a map, or a
// {"raw": s} wrapper when the blob does not parse.
func (r Record) Payload() map[string]any {
	return parsePayload(r.Data)
}

func parsePayload(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return map[string]any{"raw": s}
	}
	return m
}

// Reader owns the read-only handle to the telemetry database.
//
// The database is opened in write mode even though Foxground never writes:
// WAL sidecar files must be writable for readers to attach. A 5 second
// busy timeout covers ingester write bursts.
type Reader struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
	db *gorm.DB
}

// NewReader creates a Reader for the database at path. The handle is
// opened lazily on first query.
func NewReader(path string, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{path: path, log: log}
}

// handle returns the open database handle, attempting a single lazy open
// when none exists. A failed open leaves the handle nil so the next
// request retries; there is no global retry loop.
func (r *Reader) handle() (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", r.path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		r.log.Warn("telemetry db open failed", zap.String("path", r.path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDBUnavailable, err)
	}

	// gorm opens lazily too; force a round trip so open failures surface
	// here rather than inside the first query.
	if err := db.Raw("SELECT 1").Error; err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		r.log.Warn("telemetry db probe failed", zap.String("path", r.path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDBUnavailable, err)
	}

	r.log.Info("telemetry db opened", zap.String("path", r.path))
	r.db = db
	return r.db, nil
}

// Ping reports whether the database is reachable.
func (r *Reader) Ping() error {
	db, err := r.handle()
	if err != nil {
		return err
	}
	if err := db.Raw("SELECT 1").Error; err != nil {
		return fmt.Errorf("%w: %v", ErrDBUnavailable, err)
	}
	return nil
}

// Close releases the underlying handle.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	r.db = nil
	return sqlDB.Close()
}

// observe records query latency for /metrics.
func observe(query string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
