package platform

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"", true},
		{"   ", true},
		{"fw\x00old", true},
		{"rootfs", false},
		{"/tmp/fw/old", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			var perr *PathError
			if err != nil && !errors.As(err, &perr) {
				t.Errorf("ValidatePath(%q) error type = %T, want *PathError", tt.path, err)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	dir := t.TempDir()

	got, err := NormalizePath(filepath.Join(dir, "a", "..", "b") + string(filepath.Separator))
	if err != nil {
		t.Fatalf("NormalizePath() error = %v", err)
	}
	if want := filepath.Join(dir, "b"); got != want {
		t.Errorf("NormalizePath() = %s, want %s", got, want)
	}

	if _, err := NormalizePath(""); err == nil {
		t.Error("NormalizePath(\"\") should fail")
	}
}

func TestNested(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"/fw/old", "/fw/old", true},
		{"/fw", "/fw/old", true},
		{"/fw/old/rootfs", "/fw/old", true},
		{"/fw/old", "/fw/old2", false},
		{"/fw/old", "/fw/new", false},
		{"/", "/fw", true},
	}

	for _, tt := range tests {
		if got := Nested(tt.a, tt.b); got != tt.want {
			t.Errorf("Nested(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
