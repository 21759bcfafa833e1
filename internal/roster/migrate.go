package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// legacyEntry is a Profile plus the v2-era slot field, which is dropped
// during migration.
type legacyEntry struct {
	Profile
	Slot *int `json:"slot,omitempty"`
}

// decode parses a persisted roster document, handling both legacy shapes:
//
//	v1: {"drones": {"12": {...}, "7": {...}}}   object keyed by drone id
//	v2: {"drones": [{"slot": 3, ...}, ...]}     array with embedded slot
//
// The returned roster is always exactly NumSlots long. migrated reports
// whether the file needs rewriting (legacy shape or wrong length).
func decode(data []byte) (Roster, bool, error) {
	var doc struct {
		Drones json.RawMessage `json:"drones"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, err
	}
	if len(doc.Drones) == 0 {
		return make(Roster, NumSlots), true, nil
	}

	trimmed := bytes.TrimSpace(doc.Drones)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		roster, err := decodeV1(trimmed)
		return roster, true, err
	}
	return decodeArray(trimmed)
}

// decodeV1 converts the object-keyed shape to an array ordered by numeric
// drone id.
func decodeV1(data []byte) (Roster, error) {
	var byID map[string]*legacyEntry
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})

	roster := make(Roster, NumSlots)
	for i, id := range ids {
		if i >= NumSlots {
			break
		}
		entry := byID[id]
		if entry == nil {
			continue
		}
		p := entry.Profile
		if p.DroneID == "" {
			p.DroneID = id
		}
		roster[i] = &p
	}
	return roster, nil
}

// decodeArray handles both the modern positional array and the v2 shape
// with embedded slot fields.
func decodeArray(data []byte) (Roster, bool, error) {
	var entries []*legacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, err
	}

	hasSlots := false
	for _, e := range entries {
		if e != nil && e.Slot != nil {
			hasSlots = true
			break
		}
	}

	roster := make(Roster, NumSlots)
	if hasSlots {
		for _, e := range entries {
			if e == nil || e.Slot == nil {
				continue
			}
			idx := *e.Slot - 1
			if idx < 0 || idx >= NumSlots {
				continue
			}
			p := e.Profile
			roster[idx] = &p
		}
		return roster, true, nil
	}

	for i, e := range entries {
		if i >= NumSlots {
			break
		}
		if e == nil {
			continue
		}
		p := e.Profile
		roster[i] = &p
	}
	// Pad/trim to exactly NumSlots; a wrong-length file is rewritten.
	return roster, len(entries) != NumSlots, nil
}

// Validate checks the roster invariants: fixed length and unique drone
// ids across non-empty slots.
func (r Roster) Validate() error {
	if len(r) != NumSlots {
		return fmt.Errorf("roster: length %d, want %d", len(r), NumSlots)
	}
	seen := make(map[string]int)
	for i, p := range r {
		if p == nil {
			continue
		}
		if prev, ok := seen[p.DroneID]; ok {
			return fmt.Errorf("roster: drone %s in slots %d and %d", p.DroneID, prev+1, i+1)
		}
		seen[p.DroneID] = i
	}
	return nil
}
