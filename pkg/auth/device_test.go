package auth

import (
	"testing"

	"github.com/agrocrm/identity/pkg/domain"
)

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      domain.DeviceInfo
	}{
		{
			name:      "android chrome phone",
			userAgent: "Mozilla/5.0 (Linux; Android 11; Pixel 4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.91 Mobile Safari/537.36",
			want:      domain.DeviceInfo{Type: "Mobile", Browser: "Chrome", OS: "Android"},
		},
		{
			name:      "windows firefox desktop",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
			want:      domain.DeviceInfo{Type: "Desktop", Browser: "Firefox", OS: "Windows"},
		},
		{
			name:      "iphone safari",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1",
			want:      domain.DeviceInfo{Type: "Mobile", Browser: "Safari", OS: "macOS"},
		},
		{
			name:      "linux chrome desktop",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want:      domain.DeviceInfo{Type: "Desktop", Browser: "Chrome", OS: "Linux"},
		},
		{
			name:      "empty user agent",
			userAgent: "",
			want:      domain.DeviceInfo{Type: "Unknown", Browser: "Unknown", OS: "Unknown"},
		},
		{
			name:      "unrecognized user agent",
			userAgent: "curl/8.0.1",
			want:      domain.DeviceInfo{Type: "Desktop", Browser: "Other", OS: "Other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDevice(tt.userAgent)
			if got != tt.want {
				t.Errorf("ClassifyDevice(%q) = %+v, want %+v", tt.userAgent, got, tt.want)
			}
		})
	}
}
