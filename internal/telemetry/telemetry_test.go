package telemetry

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB creates a temp telemetry database with the ingester's schema
// and returns a Reader plus a writer handle for seeding rows.
func newTestDB(t *testing.T) (*Reader, *gorm.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetry.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open writer db: %v", err)
	}

	stmts := []string{
		`CREATE TABLE telemetry (
			id INTEGER PRIMARY KEY,
			drone_id INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			data TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX idx_telemetry_timestamp ON telemetry(timestamp)`,
		`CREATE INDEX idx_telemetry_drone_id ON telemetry(drone_id)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	r := NewReader(path, nil)
	t.Cleanup(func() { r.Close() })
	return r, db
}

func insertRow(t *testing.T, db *gorm.DB, id, droneID, ts int64, data string, active int) {
	t.Helper()
	err := db.Exec(
		"INSERT INTO telemetry (id, drone_id, timestamp, data, active) VALUES (?, ?, ?, ?, ?)",
		id, droneID, ts, data, active,
	).Error
	if err != nil {
		t.Fatalf("insert row %d: %v", id, err)
	}
}

func battRow(volts float64) string {
	return fmt.Sprintf(`{"type":"batt","voltage":%.1f}`, volts)
}

// --- Tail tests ---

func TestTail_EmptyDB(t *testing.T) {
	r, _ := newTestDB(t)

	records, latest, err := r.Tail(0, 10, nil)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
	if latest != 0 {
		t.Errorf("latest = %d, want unchanged 0", latest)
	}
}

func TestTail_MonotonicDescending(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	for i := int64(1); i <= 5; i++ {
		insertRow(t, db, i, 7, now, battRow(11.1), 0)
	}

	records, latest, err := r.Tail(2, 10, nil)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i, rec := range records {
		if rec.ID <= 2 {
			t.Errorf("record %d has id %d, want > lastId 2", i, rec.ID)
		}
		if i > 0 && records[i-1].ID <= rec.ID {
			t.Errorf("records not strictly descending at %d: %d then %d", i, records[i-1].ID, rec.ID)
		}
	}
	if latest != 5 {
		t.Errorf("latest = %d, want 5", latest)
	}
}

func TestTail_ZeroLastIDReturnsNewest(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	for i := int64(1); i <= 10; i++ {
		insertRow(t, db, i, 7, now, battRow(11.1), 0)
	}

	records, latest, err := r.Tail(0, 3, nil)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if records[0].ID != 10 || records[2].ID != 8 {
		t.Errorf("ids = %d..%d, want 10..8", records[0].ID, records[2].ID)
	}
	if latest != 10 {
		t.Errorf("latest = %d, want 10", latest)
	}
}

func TestTail_DroneFilter(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	insertRow(t, db, 1, 1, now, battRow(11.1), 0)
	insertRow(t, db, 2, 2, now, battRow(11.1), 0)
	insertRow(t, db, 3, 1, now, battRow(11.1), 0)

	droneID := int64(1)
	records, _, err := r.Tail(0, 10, &droneID)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.DroneID != 1 {
			t.Errorf("record %d belongs to drone %d, want 1", rec.ID, rec.DroneID)
		}
	}
}

func TestTail_UnparseablePayloadWrappedAsRaw(t *testing.T) {
	r, db := newTestDB(t)
	insertRow(t, db, 1, 1, time.Now().UnixMilli(), "not json at all", 0)

	records, _, err := r.Tail(0, 10, nil)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	raw, ok := records[0].Payload["raw"].(string)
	if !ok || raw != "not json at all" {
		t.Errorf("payload = %v, want raw wrapper", records[0].Payload)
	}
}

// --- HasTelemetry tests ---

func TestHasTelemetry(t *testing.T) {
	r, db := newTestDB(t)
	insertRow(t, db, 1, 0, time.Now().UnixMilli(), battRow(11.1), 0)

	// Drone id 0 is a valid id, not absence.
	has, err := r.HasTelemetry(0)
	if err != nil {
		t.Fatalf("HasTelemetry(0): %v", err)
	}
	if !has {
		t.Error("HasTelemetry(0) = false, want true")
	}

	has, err = r.HasTelemetry(42)
	if err != nil {
		t.Fatalf("HasTelemetry(42): %v", err)
	}
	if has {
		t.Error("HasTelemetry(42) = true, want false")
	}
}

// --- Active control tests ---

func TestCurrentlyActive_FreshRow(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	insertRow(t, db, 5, 12, now, battRow(11.8), 0)
	insertRow(t, db, 6, 12, now, `{"type":"state"}`, 1)

	id, err := r.CurrentlyActive()
	if err != nil {
		t.Fatalf("CurrentlyActive: %v", err)
	}
	if id == nil || *id != 12 {
		t.Fatalf("active = %v, want 12", id)
	}
}

func TestCurrentlyActive_StaleRow(t *testing.T) {
	r, db := newTestDB(t)
	stale := time.Now().Add(-11 * time.Second).UnixMilli()
	insertRow(t, db, 6, 12, stale, `{"type":"state"}`, 1)

	id, err := r.CurrentlyActive()
	if err != nil {
		t.Fatalf("CurrentlyActive: %v", err)
	}
	if id != nil {
		t.Errorf("active = %d, want nil for 11s-old row", *id)
	}
}

func TestCurrentlyActive_LatestIDWins(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	insertRow(t, db, 1, 3, now, `{"type":"state"}`, 1)
	insertRow(t, db, 2, 9, now, `{"type":"state"}`, 1)

	id, err := r.CurrentlyActive()
	if err != nil {
		t.Fatalf("CurrentlyActive: %v", err)
	}
	if id == nil || *id != 9 {
		t.Fatalf("active = %v, want 9 (highest id)", id)
	}
}

func TestActiveRollup_AtMostOneActive(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	insertRow(t, db, 1, 1, now, battRow(11.1), 0)
	insertRow(t, db, 2, 2, now, battRow(12.2), 0)
	insertRow(t, db, 3, 2, now, `{"type":"state"}`, 1)

	rollup, activeID, err := r.ActiveRollup()
	if err != nil {
		t.Fatalf("ActiveRollup: %v", err)
	}
	if len(rollup) != 2 {
		t.Fatalf("rollup size = %d, want 2", len(rollup))
	}
	activeCount := 0
	for _, entry := range rollup {
		if entry.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Errorf("active entries = %d, want 1", activeCount)
	}
	if activeID == nil || *activeID != 2 {
		t.Fatalf("activeID = %v, want 2", activeID)
	}
	if !rollup[2].Active || rollup[1].Active {
		t.Error("active flag on wrong drone")
	}
}

// --- ActiveDrones tests ---

func TestActiveDrones_WindowAndTypeFilter(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	old := time.Now().Add(-2 * time.Minute).UnixMilli()

	insertRow(t, db, 1, 1, now, battRow(11.1), 0)
	insertRow(t, db, 2, 1, now, battRow(11.0), 0) // latest batt for drone 1
	insertRow(t, db, 3, 2, old, battRow(12.0), 0) // outside window
	insertRow(t, db, 4, 3, now, `{"type":"gps","lat":1.0,"lon":2.0}`, 0) // not batt

	statuses, err := r.ActiveDrones(DefaultActivityWindow)
	if err != nil {
		t.Fatalf("ActiveDrones: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	if statuses[0].DroneID != 1 {
		t.Errorf("drone = %d, want 1", statuses[0].DroneID)
	}
}

func TestActiveDrones_GPSFromPayload(t *testing.T) {
	r, db := newTestDB(t)
	now := time.Now().UnixMilli()
	insertRow(t, db, 1, 1, now, `{"type":"batt","voltage":11.1,"lat":-33.8,"lon":151.2}`, 0)
	insertRow(t, db, 2, 2, now, battRow(12.0), 0)

	statuses, err := r.ActiveDrones(DefaultActivityWindow)
	if err != nil {
		t.Fatalf("ActiveDrones: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}
	if statuses[0].Latitude == nil || *statuses[0].Latitude != -33.8 {
		t.Errorf("drone 1 latitude = %v, want -33.8", statuses[0].Latitude)
	}
	if statuses[1].Latitude != nil {
		t.Errorf("drone 2 latitude = %v, want nil for batt-only payload", *statuses[1].Latitude)
	}
}

// --- Handle tests ---

func TestReader_UnavailableDB(t *testing.T) {
	// A path inside a nonexistent directory cannot be created by sqlite.
	r := NewReader(filepath.Join("/nonexistent-dir-foxground", "t.db"), nil)

	_, _, err := r.Tail(0, 10, nil)
	if !errors.Is(err, ErrDBUnavailable) {
		t.Fatalf("err = %v, want ErrDBUnavailable", err)
	}
}

func TestReader_Ping(t *testing.T) {
	r, _ := newTestDB(t)
	if err := r.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
