package stream

// procOps abstracts daemon process operations for testability.
type procOps interface {
	// FindPID resolves the daemon's PID via a name-based lookup on its
	// binary path. The second return is false when the daemon is absent.
	FindPID(binary string) (int, bool)
	// Reload delivers the config-reload signal (SIGHUP).
	Reload(pid int) error
	// Kill terminates the process.
	Kill(pid int) error
	// StartDetached spawns the daemon in its own session with stdout and
	// stderr redirected to logPath.
	StartDetached(binary, configPath, logPath string) error
}

// defaultProcOps is the production implementation.
// Set to realProc{} in proc_real.go.
var defaultProcOps procOps = realProc{}
