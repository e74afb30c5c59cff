package camera

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"", ModeVideo, false},
		{"video", ModeVideo, false},
		{"cv", ModeCV, false},
		{"photo", ModePhoto, false},
		{"burst", "", true},
		{"VIDEO", "", true},
	}
	for _, tt := range tests {
		t.Run("input="+tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMode(%q) expected error", tt.input)
				}
				if !errors.Is(err, ErrMisuse) {
					t.Errorf("ParseMode(%q) error = %v, want ErrMisuse", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
