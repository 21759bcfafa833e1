// Package stream owns the media daemon's paths file and the daemon
// process itself. The paths file is a restricted two-level indented
// config (2 spaces for a path name, 4 spaces for its properties); the
// codec here is a deterministic line scanner whose emit and parse are
// exact inverses on that subset, not a general YAML implementation.
package stream

import (
	"fmt"
	"sort"
	"strings"
)

// Paths maps stream path names to their property sets.
type Paths map[string]map[string]string

// leading property keys are emitted first, in this order; remaining keys
// follow sorted. Keeps files stable under repeated rewrites.
var leadingKeys = []string{"source", "sourceOnDemand", "sourceProtocol"}

// ParsePaths parses the paths file. Accepted lines: blank, "  name:" and
// "    key: value". Anything else is an error.
func ParsePaths(data []byte) (Paths, error) {
	paths := make(Paths)
	var current string

	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "    "):
			if current == "" {
				return nil, fmt.Errorf("stream: line %d: property before any path name", i+1)
			}
			key, value, ok := strings.Cut(strings.TrimPrefix(line, "    "), ":")
			if !ok {
				return nil, fmt.Errorf("stream: line %d: malformed property", i+1)
			}
			paths[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
		case strings.HasPrefix(line, "  "):
			name := strings.TrimPrefix(line, "  ")
			if !strings.HasSuffix(name, ":") || strings.ContainsAny(strings.TrimSuffix(name, ":"), " :") {
				return nil, fmt.Errorf("stream: line %d: malformed path name %q", i+1, name)
			}
			current = strings.TrimSuffix(name, ":")
			if _, ok := paths[current]; !ok {
				paths[current] = make(map[string]string)
			}
		default:
			return nil, fmt.Errorf("stream: line %d: unexpected indentation", i+1)
		}
	}
	return paths, nil
}

// EmitPaths serializes the paths dictionary deterministically: path names
// sorted, the canonical stream keys first, remaining keys sorted.
func EmitPaths(p Paths) []byte {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %s:\n", name)
		props := p[name]

		emitted := make(map[string]bool, len(props))
		for _, k := range leadingKeys {
			if v, ok := props[k]; ok {
				fmt.Fprintf(&b, "    %s: %s\n", k, v)
				emitted[k] = true
			}
		}

		rest := make([]string, 0, len(props))
		for k := range props {
			if !emitted[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			fmt.Fprintf(&b, "    %s: %s\n", k, props[k])
		}
	}
	return []byte(b.String())
}
