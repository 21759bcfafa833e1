package stream

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkrasnov/foxground/internal/config"
	"github.com/dkrasnov/foxground/internal/roster"
	"github.com/dkrasnov/foxground/internal/tools"
)

const (
	// scriptRebuildConfig merges the paths file into the daemon's full
	// config; exit zero is its only contract.
	scriptRebuildConfig = "rebuild-config"

	rebuildTimeout = 10 * time.Second

	// startupGrace is how long to wait after spawning the daemon before
	// re-resolving its PID.
	startupGrace = time.Second

	defaultRTSPPort = 554

	// maxLogTail bounds daemon log reads.
	maxLogTail = 100 * 1024
)

// Step records one phase of a stream-config operation for the operator's
// per-step manifest.
type Step struct {
	Step    string `json:"step"`
	Command string `json:"command,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
	Note    string `json:"note,omitempty"`
	Success bool   `json:"success"`
}

// Report aggregates all steps of an operation. Success means every
// non-warning step succeeded; individual camera failures stay visible.
type Report struct {
	Success bool   `json:"success"`
	Steps   []Step `json:"steps"`
}

func (r *Report) add(s Step) {
	r.Steps = append(r.Steps, s)
}

// DaemonStatus describes the media daemon process.
type DaemonStatus struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// Manager serializes all operations on the paths file and the daemon.
// Two operators applying profiles concurrently see linearizable outcomes.
type Manager struct {
	cfg    config.MediaMTXConfig
	runner *tools.Runner
	log    *zap.Logger
	proc   procOps

	mu sync.Mutex
}

// NewManager creates a Manager for the configured daemon.
func NewManager(cfg config.MediaMTXConfig, runner *tools.Runner, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{cfg: cfg, runner: runner, log: log, proc: defaultProcOps}
}

// StreamName derives the deterministic path name for a camera serial.
func StreamName(serial string) string {
	return "cam" + serial
}

// CameraURL builds the RTSP source URL from camera fields.
func CameraURL(cam *roster.Camera) string {
	port := cam.RTSPPort
	if port == 0 {
		port = defaultRTSPPort
	}
	path := cam.RTSPPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("rtsp://%s:%s@%s:%d%s", cam.Login, cam.Password, cam.IP, port, path)
}

// redactURL masks the password portion for logging.
func redactURL(cam *roster.Camera) string {
	masked := *cam
	masked.Password = "*****"
	return CameraURL(&masked)
}

// UpsertCamera rewrites the camera's path entry in the paths file. This
// entry is authoritative for its path: pre-existing keys are dropped.
func (m *Manager) UpsertCamera(cam *roster.Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCameraLocked(cam)
}

func (m *Manager) upsertCameraLocked(cam *roster.Camera) error {
	if cam == nil || cam.SerialNumber == "" {
		return fmt.Errorf("stream: camera has no serial number")
	}

	paths, err := m.loadPaths()
	if err != nil {
		return err
	}

	name := StreamName(cam.SerialNumber)
	url := CameraURL(cam)
	m.log.Info("updating stream path",
		zap.String("path", name),
		zap.String("source", redactURL(cam)))

	paths[name] = map[string]string{
		"source":         url,
		"sourceOnDemand": "yes",
		"sourceProtocol": "tcp",
	}
	return m.savePaths(paths)
}

func (m *Manager) loadPaths() (Paths, error) {
	data, err := os.ReadFile(m.cfg.PathsPath)
	if os.IsNotExist(err) {
		return make(Paths), nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream: read paths file: %w", err)
	}
	paths, err := ParsePaths(data)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *Manager) savePaths(p Paths) error {
	if err := os.WriteFile(m.cfg.PathsPath, EmitPaths(p), 0o644); err != nil {
		return fmt.Errorf("stream: write paths file: %w", err)
	}
	return nil
}

// ApplyProfileCameras upserts the profile's cameras into the paths file,
// rebuilds the daemon's combined config, and reloads or (re)starts the
// daemon. Partial failures are reported, not fatal: the operator sees
// which camera failed while others succeeded.
func (m *Manager) ApplyProfileCameras(ctx context.Context, p *roster.Profile) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := Report{Success: true}

	upsert := func(label string, cam *roster.Camera) {
		if cam == nil || cam.SerialNumber == "" {
			return
		}
		step := Step{Step: "upsert-" + label, Success: true}
		if err := m.upsertCameraLocked(cam); err != nil {
			step.Success = false
			step.Note = err.Error()
			report.Success = false
		}
		report.add(step)
	}
	upsert("front-camera", p.FrontCamera)
	upsert("rear-camera", p.RearCamera)

	// Rebuild the combined daemon config. A missing rebuild tool is a
	// warning: path updates and the reload below still proceed.
	res := m.runner.Run(ctx, scriptRebuildConfig, nil, tools.RunOpts{Timeout: rebuildTimeout})
	step := Step{
		Step:    "rebuild-config",
		Command: res.Command,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		Success: res.Success,
	}
	if strings.HasPrefix(res.Error, "Script not found") {
		step.Success = true
		step.Note = "rebuild tool missing, skipped"
		m.log.Warn("rebuild-config tool missing", zap.String("command", res.Command))
	} else if !res.Success {
		step.Note = res.Error
		report.Success = false
	}
	report.add(step)

	m.reloadOrStartLocked(&report)
	return report
}

// reloadOrStartLocked drives the daemon state machine: Running→Reloaded
// via SIGHUP, Running→Restarting→Running when the reload signal fails,
// Absent→Started via spawn. Reload is preferred over restart so viewers
// are not dropped.
func (m *Manager) reloadOrStartLocked(report *Report) {
	pid, running := m.proc.FindPID(m.cfg.Binary)

	if running {
		if err := m.proc.Reload(pid); err == nil {
			report.add(Step{Step: "reload-daemon", Note: fmt.Sprintf("signalled pid %d", pid), Success: true})
			return
		}
		m.log.Warn("reload signal failed, restarting daemon", zap.Int("pid", pid))
		step := Step{Step: "restart-daemon", Success: true}
		if err := m.proc.Kill(pid); err != nil {
			step.Note = fmt.Sprintf("kill pid %d: %v", pid, err)
		}
		report.add(step)
		time.Sleep(startupGrace)
		if err := m.startLocked(report); err != nil {
			report.add(Step{Step: "start-daemon", Note: err.Error(), Success: false})
			report.Success = false
		}
		return
	}

	if err := m.startLocked(report); err != nil {
		report.add(Step{Step: "start-daemon", Note: err.Error(), Success: false})
		report.Success = false
	}
}

// startLocked spawns the daemon detached and verifies it came up by
// re-resolving its PID after a short grace period.
func (m *Manager) startLocked(report *Report) error {
	if err := m.proc.StartDetached(m.cfg.Binary, m.cfg.ConfigPath, m.cfg.LogPath); err != nil {
		return fmt.Errorf("stream: start daemon: %w", err)
	}
	report.add(Step{Step: "start-daemon", Success: true})
	time.Sleep(startupGrace)
	if _, running := m.proc.FindPID(m.cfg.Binary); !running {
		report.add(Step{Step: "verify-daemon", Note: "daemon not running after start", Success: false})
		m.log.Warn("media daemon absent after start", zap.String("binary", m.cfg.Binary))
		return nil
	}
	report.add(Step{Step: "verify-daemon", Success: true})
	return nil
}

// Restart stops the daemon if running and starts a fresh instance.
func (m *Manager) Restart() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := Report{Success: true}
	if pid, running := m.proc.FindPID(m.cfg.Binary); running {
		step := Step{Step: "stop-daemon", Success: true}
		if err := m.proc.Kill(pid); err != nil {
			step.Success = false
			step.Note = err.Error()
			report.Success = false
		}
		report.add(step)
		time.Sleep(startupGrace)
	}
	if err := m.startLocked(&report); err != nil {
		report.add(Step{Step: "start-daemon", Note: err.Error(), Success: false})
		report.Success = false
	}
	return report
}

// Status reports whether the daemon is running, by PID lookup.
func (m *Manager) Status() DaemonStatus {
	pid, running := m.proc.FindPID(m.cfg.Binary)
	return DaemonStatus{Running: running, PID: pid}
}

// PathsContent returns the raw paths file. Missing file reads as empty.
func (m *Manager) PathsContent() (string, error) {
	return readIfExists(m.cfg.PathsPath)
}

// ConfigContent returns the daemon's combined config file.
func (m *Manager) ConfigContent() (string, error) {
	return readIfExists(m.cfg.ConfigPath)
}

// LogTail returns up to maxLogTail trailing bytes of the daemon log.
func (m *Manager) LogTail() (string, error) {
	f, err := os.Open(m.cfg.LogPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stream: open log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stream: stat log: %w", err)
	}
	size := info.Size()
	offset := int64(0)
	if size > maxLogTail {
		offset = size - maxLogTail
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", fmt.Errorf("stream: read log: %w", err)
	}
	return string(buf), nil
}

func readIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stream: read %s: %w", path, err)
	}
	return string(data), nil
}
