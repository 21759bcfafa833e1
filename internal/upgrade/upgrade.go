// Package upgrade starts and observes the system-managed upgrade unit.
// The unit is owned by systemd, not by this process, so an upgrade
// survives restarts of the HTTP service itself — including the restart
// the upgrade performs.
package upgrade

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxLogTail bounds upgrade log reads returned to the browser.
const maxLogTail = 100 * 1024

// systemctl abstracts the host process manager for testability.
type systemctl interface {
	Start(ctx context.Context, unit string) (string, error)
	Show(ctx context.Context, unit string) (map[string]string, error)
}

// realSystemctl shells out to systemctl.
type realSystemctl struct{}

func (realSystemctl) Start(ctx context.Context, unit string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "systemctl", "start", "--no-block", unit).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("systemctl start %s: %s: %w", unit, strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

func (realSystemctl) Show(ctx context.Context, unit string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "systemctl", "show", unit,
		"--property=ActiveState,SubState,ExecMainStatus").Output()
	if err != nil {
		return nil, fmt.Errorf("systemctl show %s: %w", unit, err)
	}
	props := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			props[k] = v
		}
	}
	return props, nil
}

// Status is a snapshot of the upgrade unit.
type Status struct {
	ActiveState string `json:"activeState"`
	SubState    string `json:"subState"`
	ExitCode    int    `json:"exitCode"`
	Running     bool   `json:"running"`
	Log         string `json:"log"`
}

// Manager drives the upgrade unit.
type Manager struct {
	unit    string
	logPath string
	log     *zap.Logger
	sysctl  systemctl
}

// NewManager creates a Manager for the configured unit and log file.
func NewManager(unit, logPath string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{unit: unit, logPath: logPath, log: log, sysctl: realSystemctl{}}
}

// Start kicks off the upgrade unit and returns immediately; progress is
// observed through Status.
func (m *Manager) Start(ctx context.Context) error {
	m.log.Info("starting upgrade unit", zap.String("unit", m.unit))
	if _, err := m.sysctl.Start(ctx, m.unit); err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	return nil
}

// Status polls the unit's active state, exit code, and a bounded tail of
// its log file.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	props, err := m.sysctl.Show(ctx, m.unit)
	if err != nil {
		return Status{}, fmt.Errorf("upgrade: %w", err)
	}

	st := Status{
		ActiveState: props["ActiveState"],
		SubState:    props["SubState"],
	}
	if code, err := strconv.Atoi(props["ExecMainStatus"]); err == nil {
		st.ExitCode = code
	}
	st.Running = st.ActiveState == "activating" || st.ActiveState == "active"

	st.Log, err = m.logTail()
	if err != nil {
		m.log.Warn("upgrade log unreadable", zap.Error(err))
	}
	return st, nil
}

// logTail returns up to maxLogTail trailing bytes of the upgrade log.
func (m *Manager) logTail() (string, error) {
	f, err := os.Open(m.logPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := int64(0)
	if info.Size() > maxLogTail {
		offset = info.Size() - maxLogTail
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", err
	}
	return string(buf), nil
}
