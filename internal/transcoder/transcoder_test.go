package transcoder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLadderOrder(t *testing.T) {
	if len(DefaultLadder) != 4 {
		t.Fatalf("expected 4 rungs, got %d", len(DefaultLadder))
	}

	// Lowest rung first, strictly ascending.
	for i := 1; i < len(DefaultLadder); i++ {
		if DefaultLadder[i].Height <= DefaultLadder[i-1].Height {
			t.Errorf("ladder not ascending at index %d: %d <= %d",
				i, DefaultLadder[i].Height, DefaultLadder[i-1].Height)
		}
	}

	want := []string{"360p", "480p", "720p", "1080p"}
	got := Labels(DefaultLadder)
	for i, label := range want {
		if got[i] != label {
			t.Errorf("label %d: got %s, want %s", i, got[i], label)
		}
	}
}

func TestRungByLabel(t *testing.T) {
	tests := []struct {
		label string
		found bool
	}{
		{"360p", true},
		{"1080p", true},
		{"240p", false},
		{"720", false},
		{"", false},
		{"../720p", false},
	}

	for _, tt := range tests {
		rung := RungByLabel(DefaultLadder, tt.label)
		if (rung != nil) != tt.found {
			t.Errorf("RungByLabel(%q): found=%v, want %v", tt.label, rung != nil, tt.found)
		}
		if rung != nil && rung.Label != tt.label {
			t.Errorf("RungByLabel(%q) returned rung %q", tt.label, rung.Label)
		}
	}
}

func TestBuildEncodeArgs(t *testing.T) {
	rung := DefaultLadder[2] // 720p
	args := buildEncodeArgs("/in/src.mp4", "/out/.720p.tmp", rung, 6)

	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /in/src.mp4",
		"scale=-2:720",
		"-c:v libx264",
		"-b:v 2800k",
		"-maxrate 2996k",
		"-bufsize 4200k",
		"-c:a aac",
		"-b:a 128k",
		"-hls_time 6",
		"-hls_list_size 0",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("encode args missing %q: %s", want, joined)
		}
	}

	if args[len(args)-1] != filepath.Join("/out/.720p.tmp", ManifestName) {
		t.Errorf("last arg should be the manifest path, got %s", args[len(args)-1])
	}
	if !strings.Contains(joined, filepath.Join("/out/.720p.tmp", SegmentPattern)) {
		t.Error("segment filename template not pointed at the output directory")
	}
}

func TestGenerateMasterPlaylist(t *testing.T) {
	dir := t.TempDir()

	if err := GenerateMasterPlaylist(dir, DefaultLadder); err != nil {
		t.Fatalf("GenerateMasterPlaylist failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "master.m3u8"))
	if err != nil {
		t.Fatalf("master playlist not written: %v", err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "#EXTM3U\n") {
		t.Error("master playlist missing #EXTM3U header")
	}
	for _, rung := range DefaultLadder {
		if !strings.Contains(content, rung.Label+"/"+ManifestName+"\n") {
			t.Errorf("missing rendition entry for %s", rung.Label)
		}
	}
	if !strings.Contains(content, "BANDWIDTH=5350000,RESOLUTION=1920x1080") {
		t.Error("missing stream info for the 1080p rung")
	}

	// Variants listed lowest-bandwidth first.
	idx360 := strings.Index(content, "360p/")
	idx1080 := strings.Index(content, "1080p/")
	if idx360 == -1 || idx1080 == -1 || idx360 > idx1080 {
		t.Error("variants not ordered lowest rung first")
	}
}
