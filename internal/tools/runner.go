// Package tools runs the external shell tools (discovery, pairing,
// camera scan, drone configuration) with hard timeouts and captured
// output. All invocations go through one typed Runner; per-tool wrappers
// only set names, arguments and timeouts.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dkrasnov/foxground/internal/metrics"
)

// Result is the structured outcome of one tool invocation. Captured
// streams are always populated, including on timeout, so operator UIs
// can show partial output.
type Result struct {
	Success    bool   `json:"success"`
	Command    string `json:"command"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exitCode"`
	Error      string `json:"error,omitempty"`
	Parsed     any    `json:"parsed,omitempty"`
	ParseError string `json:"parseError,omitempty"`
}

// RunOpts configures one invocation.
type RunOpts struct {
	Timeout time.Duration
	// ExtractJSON scans stdout for the first balanced JSON array or
	// object and parses it into Result.Parsed. Best effort: failures
	// land in ParseError, never in Error.
	ExtractJSON bool
}

// DefaultTimeout applies when RunOpts.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Runner invokes named scripts from a fixed tools directory.
type Runner struct {
	dir string
	log *zap.Logger
}

// NewRunner creates a Runner over the tools directory.
func NewRunner(dir string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{dir: dir, log: log}
}

// Run executes the named script with positional arguments. A missing
// script fails fast without forking. On timeout the child receives
// SIGTERM and the result carries whatever output accumulated.
func (r *Runner) Run(ctx context.Context, script string, args []string, opts RunOpts) Result {
	path := filepath.Join(r.dir, script)
	res := Result{Command: strings.Join(append([]string{path}, args...), " ")}

	if _, err := os.Stat(path); err != nil {
		res.Error = fmt.Sprintf("Script not found: %s", script)
		metrics.ToolRuns.WithLabelValues(script, "missing").Inc()
		return res
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Stderr = strings.TrimRight(res.Stderr+fmt.Sprintf("\ntimed out after %s", timeout), "\n") + "\n"
		res.Error = fmt.Sprintf("%s timed out after %s", script, timeout)
		res.ExitCode = -1
		metrics.ToolRuns.WithLabelValues(script, "timeout").Inc()
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Error = fmt.Sprintf("%s exited with code %d", script, res.ExitCode)
		} else {
			res.ExitCode = -1
			res.Error = runErr.Error()
		}
		metrics.ToolRuns.WithLabelValues(script, "failed").Inc()
	default:
		res.Success = true
		metrics.ToolRuns.WithLabelValues(script, "ok").Inc()
	}

	r.log.Debug("tool finished",
		zap.String("tool", script),
		zap.Bool("success", res.Success),
		zap.Int("exitCode", res.ExitCode),
		zap.Duration("elapsed", elapsed))

	if opts.ExtractJSON {
		res.Parsed, res.ParseError = extractJSON(res.Stdout)
	}
	return res
}

// extractJSON finds the first balanced JSON array or object in s and
// parses it. Empty input parses as an empty array.
func extractJSON(s string) (any, string) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return []any{}, ""
	}

	frag, ok := firstBalanced(s)
	if !ok {
		return nil, "no JSON array or object found in output"
	}
	var v any
	if err := json.Unmarshal([]byte(frag), &v); err != nil {
		return nil, fmt.Sprintf("invalid JSON in output: %v", err)
	}
	return v, ""
}

// firstBalanced returns the first balanced [...] or {...} fragment,
// tracking string literals so brackets inside strings don't count.
func firstBalanced(s string) (string, bool) {
	start := -1
	var open, close byte
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start == -1 {
			if c == '[' || c == '{' {
				start = i
				open = c
				if c == '[' {
					close = ']'
				} else {
					close = '}'
				}
				depth = 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
