package stream

import (
	"reflect"
	"strings"
	"testing"
)

func TestParsePaths_Basic(t *testing.T) {
	input := "  camAAA:\n    source: rtsp://u:p@10.0.0.2:554/s0\n    sourceOnDemand: yes\n\n  camBBB:\n    source: rtsp://u:p@10.0.0.3:554/s1\n"

	paths, err := ParsePaths([]byte(input))
	if err != nil {
		t.Fatalf("ParsePaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(paths))
	}
	if paths["camAAA"]["source"] != "rtsp://u:p@10.0.0.2:554/s0" {
		t.Errorf("camAAA source = %q", paths["camAAA"]["source"])
	}
	if paths["camAAA"]["sourceOnDemand"] != "yes" {
		t.Errorf("camAAA sourceOnDemand = %q", paths["camAAA"]["sourceOnDemand"])
	}
}

func TestParsePaths_Empty(t *testing.T) {
	paths, err := ParsePaths(nil)
	if err != nil {
		t.Fatalf("ParsePaths: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("paths = %d, want 0", len(paths))
	}
}

func TestParsePaths_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"top-level key", "paths:\n"},
		{"property before name", "    source: x\n"},
		{"bad name line", "  noColonHere\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePaths([]byte(tt.input)); err == nil {
				t.Errorf("ParsePaths(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestPaths_RoundTrip(t *testing.T) {
	original := Paths{
		"camAAA": {
			"source":         "rtsp://u:p@10.0.0.2:554/s0",
			"sourceOnDemand": "yes",
			"sourceProtocol": "tcp",
		},
		"camZZZ": {
			"source":      "rtsp://a:b@10.0.0.9:8554/hd",
			"runOnDemand": "ffmpeg -i x",
		},
	}

	parsed, err := ParsePaths(EmitPaths(original))
	if err != nil {
		t.Fatalf("ParsePaths(EmitPaths): %v", err)
	}
	if !reflect.DeepEqual(parsed, original) {
		t.Errorf("round trip mismatch:\ngot  %v\nwant %v", parsed, original)
	}
}

func TestEmitPaths_Deterministic(t *testing.T) {
	p := Paths{
		"camB": {"source": "rtsp://x", "sourceProtocol": "tcp"},
		"camA": {"source": "rtsp://y"},
	}
	first := string(EmitPaths(p))
	second := string(EmitPaths(p))
	if first != second {
		t.Error("emission not deterministic")
	}
	if strings.Index(first, "camA") > strings.Index(first, "camB") {
		t.Error("path names not sorted")
	}
	// Canonical key order: source before sourceProtocol.
	if strings.Index(first, "source:") > strings.Index(first, "sourceProtocol:") {
		t.Error("source not emitted before sourceProtocol")
	}
}
