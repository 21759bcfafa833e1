// Package roster persists the six-slot fleet roster. The store is the
// sole writer of the profiles file; slot position is part of a profile's
// external identity and is never compacted away.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NumSlots is the fixed roster length: six dashboard positions.
const NumSlots = 6

var (
	// ErrNoFreeSlot is returned when an insert finds all six slots occupied.
	ErrNoFreeSlot = errors.New("roster: no free slot")
	// ErrEmptySlot is returned when a reorder names an empty source slot.
	ErrEmptySlot = errors.New("roster: source slot is empty")
)

// Camera holds the credentials and RTSP endpoint of one onboard camera.
type Camera struct {
	IP           string `json:"ip,omitempty"`
	Login        string `json:"login,omitempty"`
	Password     string `json:"password,omitempty"`
	RTSPPort     int    `json:"rtspPort,omitempty"`
	RTSPPath     string `json:"rtspPath,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	HDRTSPPath   string `json:"hdRtspPath,omitempty"`
}

// Profile is the per-vehicle configuration stored in one roster slot.
type Profile struct {
	DroneID     string  `json:"droneId"`
	Name        string  `json:"name,omitempty"`
	DroneType   string  `json:"droneType,omitempty"` // "ground" or "fpv"
	Color       string  `json:"color,omitempty"`
	FrontCamera *Camera `json:"frontCamera,omitempty"`
	RearCamera  *Camera `json:"rearCamera,omitempty"`
	UpdatedAt   int64   `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.FrontCamera != nil {
		fc := *p.FrontCamera
		cp.FrontCamera = &fc
	}
	if p.RearCamera != nil {
		rc := *p.RearCamera
		cp.RearCamera = &rc
	}
	return &cp
}

// Roster is the positional list of exactly NumSlots profiles; nil marks
// an empty slot. Slot i holds dashboard position i+1.
type Roster []*Profile

// document is the persisted file shape.
type document struct {
	Drones Roster `json:"drones"`
}

// Store owns the profiles file.
type Store struct {
	path string
	log  *zap.Logger
	mu   sync.Mutex
}

// NewStore creates a Store over the profiles file at path.
func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Load returns a snapshot of the roster. Legacy file shapes are migrated
// and rewritten once; callers receive deep copies.
func (s *Store) Load() (Roster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Roster, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(Roster, NumSlots), nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", s.path, err)
	}

	roster, migrated, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("roster: parse %s: %w", s.path, err)
	}
	if migrated {
		s.log.Info("migrated legacy roster file", zap.String("path", s.path))
		if err := s.saveLocked(roster); err != nil {
			return nil, err
		}
	}
	return roster.clone(), nil
}

func (r Roster) clone() Roster {
	out := make(Roster, len(r))
	for i, p := range r {
		out[i] = p.Clone()
	}
	return out
}

// saveLocked atomically replaces the profiles file with the given roster.
func (s *Store) saveLocked(r Roster) error {
	data, err := json.MarshalIndent(document{Drones: r}, "", "  ")
	if err != nil {
		return fmt.Errorf("roster: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".profiles-*.json")
	if err != nil {
		return fmt.Errorf("roster: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("roster: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("roster: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("roster: rename: %w", err)
	}
	return nil
}

// Upsert merges patch into the profile with matching drone id, or inserts
// a new profile into the first empty slot. Patch fields overwrite; a nil
// patch value clears the field. Returns the resulting profile and its
// 1-indexed slot.
func (s *Store) Upsert(droneID string, patch map[string]any) (*Profile, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked()
	if err != nil {
		return nil, 0, err
	}

	slot := -1
	for i, p := range roster {
		if p != nil && p.DroneID == droneID {
			slot = i
			break
		}
	}
	if slot == -1 {
		for i, p := range roster {
			if p == nil {
				slot = i
				break
			}
		}
		if slot == -1 {
			return nil, 0, ErrNoFreeSlot
		}
	}

	merged, err := mergeProfile(roster[slot], droneID, patch)
	if err != nil {
		return nil, 0, err
	}
	merged.UpdatedAt = time.Now().UnixMilli()
	roster[slot] = merged

	if err := s.saveLocked(roster); err != nil {
		return nil, 0, err
	}
	return merged.Clone(), slot + 1, nil
}

// mergeProfile overlays patch onto base (may be nil) through a JSON map so
// unknown patch keys are ignored and absent keys are preserved.
func mergeProfile(base *Profile, droneID string, patch map[string]any) (*Profile, error) {
	fields := make(map[string]any)
	if base != nil {
		raw, err := json.Marshal(base)
		if err != nil {
			return nil, fmt.Errorf("roster: marshal base: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("roster: unmarshal base: %w", err)
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}
	fields["droneId"] = droneID

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("roster: marshal merged: %w", err)
	}
	var merged Profile
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("roster: invalid profile fields: %w", err)
	}
	return &merged, nil
}

// Delete empties the slot holding the given drone id. Positions are
// stable: later slots do not shift. Deleting an unknown id is a no-op.
func (s *Store) Delete(droneID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked()
	if err != nil {
		return false, err
	}

	found := false
	for i, p := range roster {
		if p != nil && p.DroneID == droneID {
			roster[i] = nil
			found = true
		}
	}
	if !found {
		return false, nil
	}
	if err := s.saveLocked(roster); err != nil {
		return false, err
	}
	return true, nil
}

// Swap exchanges the contents of two 1-indexed slots. The source must be
// occupied; the target may be empty. Equal slots are a successful no-op.
func (s *Store) Swap(sourceSlot, targetSlot int) error {
	if sourceSlot < 1 || sourceSlot > NumSlots {
		return fmt.Errorf("roster: source slot %d out of range", sourceSlot)
	}
	if targetSlot < 1 || targetSlot > NumSlots {
		return fmt.Errorf("roster: target slot %d out of range", targetSlot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	roster, err := s.loadLocked()
	if err != nil {
		return err
	}
	if roster[sourceSlot-1] == nil {
		return ErrEmptySlot
	}
	if sourceSlot == targetSlot {
		return nil
	}

	roster[sourceSlot-1], roster[targetSlot-1] = roster[targetSlot-1], roster[sourceSlot-1]
	return s.saveLocked(roster)
}

// Get returns the profile with the given drone id, or nil.
func (s *Store) Get(droneID string) (*Profile, error) {
	roster, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, p := range roster {
		if p != nil && p.DroneID == droneID {
			return p, nil
		}
	}
	return nil, nil
}
