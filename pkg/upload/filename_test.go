package upload

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean name unchanged", "movie.mp4", "movie.mp4"},
		{"spaces collapse", "my cool movie.mp4", "my_cool_movie.mp4"},
		{"run of bad chars collapses once", "a///b???c.mp4", "a_b_c.mp4"},
		{"path traversal stripped", "../../etc/passwd", "etc_passwd"},
		{"leading dots stripped", "...hidden.mp4", "hidden.mp4"},
		{"trailing dots stripped", "movie.mp4...", "movie.mp4"},
		{"unicode replaced", "vidéo.mp4", "vid_o.mp4"},
		{"empty defaults", "", "upload"},
		{"only bad chars defaults", "///...   ", "upload"},
		{"dashes and underscores kept", "a-b_c.mp4", "a-b_c.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 300) + ".mp4"
	got := SanitizeFilename(long)
	if len(got) != 255 {
		t.Errorf("len = %d, want 255", len(got))
	}
}
