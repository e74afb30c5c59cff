package libav

import "testing"

func TestCaptureAPIForOS(t *testing.T) {
	tests := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{"linux", "v4l2", false},
		{"darwin", "avfoundation", false},
		{"windows", "dshow", false},
		{"plan9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := captureAPIForOS(tt.goos)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAudioAPIForOS(t *testing.T) {
	api, def, err := audioAPIForOS("linux")
	if err != nil {
		t.Fatalf("linux: %v", err)
	}
	if api != "alsa" || def != "default" {
		t.Errorf("linux: got %q/%q", api, def)
	}

	if _, _, err := audioAPIForOS("js"); err == nil {
		t.Error("expected error for unsupported OS")
	}
}

func TestDeviceURL(t *testing.T) {
	tests := []struct {
		api    string
		device string
		want   string
	}{
		{"v4l2", "/dev/video0", "/dev/video0"},
		{"avfoundation", "0", "0"},
		{"dshow", "Integrated Camera", "video=Integrated Camera"},
	}

	for _, tt := range tests {
		if got := deviceURL(tt.api, tt.device); got != tt.want {
			t.Errorf("deviceURL(%q, %q) = %q, want %q", tt.api, tt.device, got, tt.want)
		}
	}
}
