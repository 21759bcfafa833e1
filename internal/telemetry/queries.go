package telemetry

import (
	"fmt"
	"time"
)

const (
	// timestampIndex is the ingester-maintained index on telemetry.timestamp.
	// The windowed aggregation below forces it: without the hint the planner
	// may pick the drone_id index and degrade linearly with history.
	timestampIndex = "idx_telemetry_timestamp"

	// ActiveCutoff is how recent an active=1 row must be to win control.
	ActiveCutoff = 10 * time.Second

	// DefaultActivityWindow bounds "recently seen" for the drone list.
	DefaultActivityWindow = 60 * time.Second

	// rollupDepth is how many trailing rows the dashboard rollup groups.
	rollupDepth = 1000

	maxTailLimit     = 1000
	defaultTailLimit = 100
)

// DroneStatus describes one recently seen drone.
type DroneStatus struct {
	DroneID   int64    `json:"droneId"`
	LastSeen  int64    `json:"lastSeen"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// TailRecord is one telemetry row with its payload re-emitted parsed.
type TailRecord struct {
	ID        int64          `json:"id"`
	DroneID   int64          `json:"droneId"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// RollupEntry annotates one drone in the dashboard rollup.
type RollupEntry struct {
	DroneID  int64 `json:"droneId"`
	LastSeen int64 `json:"lastSeen"`
	Active   bool  `json:"active"`
}

// ActiveDrones returns the latest batt-typed row per drone whose timestamp
// falls within the window, with GPS coordinates when the selected row's
// payload carries them. Rows are keyed by drone id order.
func (r *Reader) ActiveDrones(window time.Duration) ([]DroneStatus, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}
	defer observe("active_drones", time.Now())

	cutoff := time.Now().Add(-window).UnixMilli()

	var rows []Record
	q := fmt.Sprintf(`
		SELECT drone_id, MAX(id) AS id, timestamp, data
		FROM telemetry INDEXED BY %s
		WHERE timestamp >= ? AND json_extract(data, '$.type') = 'batt'
		GROUP BY drone_id
		ORDER BY drone_id ASC`, timestampIndex)
	if err := db.Raw(q, cutoff).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("telemetry: active drones: %w", err)
	}

	statuses := make([]DroneStatus, len(rows))
	for i, row := range rows {
		st := DroneStatus{DroneID: row.DroneID, LastSeen: row.Timestamp}
		st.Latitude, st.Longitude = extractGPS(row.Payload())
		statuses[i] = st
	}
	return statuses, nil
}

// extractGPS pulls lat/lon from a payload when present. Batt rows usually
// carry no position, so nils are the common case.
func extractGPS(payload map[string]any) (lat, lon *float64) {
	get := func(keys ...string) *float64 {
		for _, k := range keys {
			if v, ok := payload[k].(float64); ok {
				return &v
			}
		}
		return nil
	}
	return get("lat", "latitude"), get("lon", "lng", "longitude")
}

// Tail returns rows with id strictly greater than lastID, newest first,
// optionally filtered by drone. It also returns the highest id seen so
// callers can resume; when no rows match, that is the input lastID.
func (r *Reader) Tail(lastID int64, limit int, droneID *int64) ([]TailRecord, int64, error) {
	db, err := r.handle()
	if err != nil {
		return nil, lastID, err
	}
	defer observe("tail", time.Now())

	if limit <= 0 {
		limit = defaultTailLimit
	}
	if limit > maxTailLimit {
		limit = maxTailLimit
	}

	q := db.Model(&Record{}).Where("id > ?", lastID)
	if droneID != nil {
		q = q.Where("drone_id = ?", *droneID)
	}

	var rows []Record
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, lastID, fmt.Errorf("telemetry: tail: %w", err)
	}

	records := make([]TailRecord, len(rows))
	latest := lastID
	for i, row := range rows {
		records[i] = TailRecord{
			ID:        row.ID,
			DroneID:   row.DroneID,
			Timestamp: row.Timestamp,
			Payload:   row.Payload(),
		}
		if row.ID > latest {
			latest = row.ID
		}
	}
	return records, latest, nil
}

// HasTelemetry reports whether any row exists for the drone. Drone id 0
// is a valid id, not absence.
func (r *Reader) HasTelemetry(droneID int64) (bool, error) {
	db, err := r.handle()
	if err != nil {
		return false, err
	}
	defer observe("has_telemetry", time.Now())

	var count int64
	if err := db.Model(&Record{}).Where("drone_id = ?", droneID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("telemetry: has telemetry: %w", err)
	}
	return count > 0, nil
}

// CurrentlyActive returns the drone owning control: the one with the most
// recent active=1 row whose timestamp is within ActiveCutoff. The id
// order yields a unique winner; nil means no one is active.
func (r *Reader) CurrentlyActive() (*int64, error) {
	db, err := r.handle()
	if err != nil {
		return nil, err
	}
	defer observe("currently_active", time.Now())

	cutoff := time.Now().Add(-ActiveCutoff).UnixMilli()

	var rows []Record
	err = db.Raw(`
		SELECT id, drone_id, timestamp
		FROM telemetry
		WHERE active = 1 AND timestamp >= ?
		ORDER BY id DESC
		LIMIT 1`, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("telemetry: currently active: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id := rows[0].DroneID
	return &id, nil
}

// ActiveRollup groups the trailing rollupDepth rows by drone and annotates
// each with whether it holds active control. At most one entry is active.
func (r *Reader) ActiveRollup() (map[int64]RollupEntry, *int64, error) {
	db, err := r.handle()
	if err != nil {
		return nil, nil, err
	}
	defer observe("active_rollup", time.Now())

	var rows []Record
	err = db.Raw(`
		SELECT drone_id, MAX(id) AS id, timestamp
		FROM (SELECT id, drone_id, timestamp FROM telemetry ORDER BY id DESC LIMIT ?)
		GROUP BY drone_id`, rollupDepth).Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: rollup: %w", err)
	}

	activeID, err := r.CurrentlyActive()
	if err != nil {
		return nil, nil, err
	}

	rollup := make(map[int64]RollupEntry, len(rows))
	for _, row := range rows {
		rollup[row.DroneID] = RollupEntry{
			DroneID:  row.DroneID,
			LastSeen: row.Timestamp,
			Active:   activeID != nil && *activeID == row.DroneID,
		}
	}
	return rollup, activeID, nil
}
