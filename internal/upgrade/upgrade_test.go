package upgrade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSystemctl records calls and returns canned unit properties.
type fakeSystemctl struct {
	started  []string
	props    map[string]string
	startErr error
}

func (f *fakeSystemctl) Start(_ context.Context, unit string) (string, error) {
	f.started = append(f.started, unit)
	return "", f.startErr
}

func (f *fakeSystemctl) Show(context.Context, string) (map[string]string, error) {
	return f.props, nil
}

func newTestManager(t *testing.T, fake *fakeSystemctl) *Manager {
	t.Helper()
	m := NewManager("foxground-upgrade.service", filepath.Join(t.TempDir(), "upgrade.log"), nil)
	m.sysctl = fake
	return m
}

func TestStart(t *testing.T) {
	fake := &fakeSystemctl{}
	m := newTestManager(t, fake)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(fake.started) != 1 || fake.started[0] != "foxground-upgrade.service" {
		t.Errorf("started = %v", fake.started)
	}
}

func TestStart_Error(t *testing.T) {
	fake := &fakeSystemctl{startErr: fmt.Errorf("unit not found")}
	m := newTestManager(t, fake)

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStatus_RunningStates(t *testing.T) {
	tests := []struct {
		state   string
		running bool
	}{
		{"activating", true},
		{"active", true},
		{"inactive", false},
		{"failed", false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			fake := &fakeSystemctl{props: map[string]string{
				"ActiveState":    tt.state,
				"SubState":       "running",
				"ExecMainStatus": "0",
			}}
			m := newTestManager(t, fake)

			st, err := m.Status(context.Background())
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if st.Running != tt.running {
				t.Errorf("Running = %v, want %v", st.Running, tt.running)
			}
		})
	}
}

func TestStatus_ExitCodeAndLog(t *testing.T) {
	fake := &fakeSystemctl{props: map[string]string{
		"ActiveState":    "failed",
		"SubState":       "failed",
		"ExecMainStatus": "2",
	}}
	m := newTestManager(t, fake)
	if err := os.WriteFile(m.logPath, []byte("step 1 ok\nstep 2 failed\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", st.ExitCode)
	}
	if !strings.Contains(st.Log, "step 2 failed") {
		t.Errorf("Log = %q", st.Log)
	}
}

func TestStatus_LogTailBounded(t *testing.T) {
	fake := &fakeSystemctl{props: map[string]string{"ActiveState": "active"}}
	m := newTestManager(t, fake)
	big := strings.Repeat("y", maxLogTail+123)
	if err := os.WriteFile(m.logPath, []byte(big), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Log) != maxLogTail {
		t.Errorf("log length = %d, want %d", len(st.Log), maxLogTail)
	}
}
