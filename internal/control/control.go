// Package control handles the filesystem-mediated control channel: the
// ActiveIntent file read by the external radio-link agent, and the
// radio-link liveness sentinel that agent maintains.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// LivenessWindow is how fresh the sentinel mtime must be for the radio
// link to count as connected.
const LivenessWindow = 5 * time.Second

// Channel wires the intent and liveness files.
type Channel struct {
	intentPath   string
	livenessPath string
	log          *zap.Logger
}

// New creates a Channel over the given well-known paths.
func New(intentPath, livenessPath string, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{intentPath: intentPath, livenessPath: livenessPath, log: log}
}

// SetActiveIntent advertises the operator's chosen active drone by
// overwriting the intent file. The service never deletes this file and
// never writes active flags to the telemetry database itself; the link
// agent picks the intent up out of band.
func (c *Channel) SetActiveIntent(droneID int64) error {
	if err := os.MkdirAll(filepath.Dir(c.intentPath), 0o755); err != nil {
		return fmt.Errorf("control: create intent dir: %w", err)
	}
	if err := os.WriteFile(c.intentPath, []byte(fmt.Sprintf("%d\n", droneID)), 0o644); err != nil {
		return fmt.Errorf("control: write intent: %w", err)
	}
	c.log.Info("active intent written", zap.Int64("droneId", droneID))
	return nil
}

// LinkStatus describes radio-link liveness.
type LinkStatus struct {
	Connected bool  `json:"connected"`
	AgeMs     int64 `json:"ageMs"`
}

// ELRSStatus infers link liveness from the sentinel file's mtime: fresh
// means now-mtime is within LivenessWindow. A missing sentinel simply
// means disconnected, with AgeMs -1.
func (c *Channel) ELRSStatus() LinkStatus {
	info, err := os.Stat(c.livenessPath)
	if err != nil {
		return LinkStatus{Connected: false, AgeMs: -1}
	}
	age := time.Since(info.ModTime())
	return LinkStatus{
		Connected: age <= LivenessWindow,
		AgeMs:     age.Milliseconds(),
	}
}
