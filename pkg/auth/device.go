package auth

import (
	"strings"

	"github.com/agrocrm/identity/pkg/domain"
)

// ClassifyDevice derives a coarse device classification from the raw
// User-Agent string. Substring heuristics only; anything unrecognized lands
// in an Other/Unknown bucket, never an error.
func ClassifyDevice(userAgent string) domain.DeviceInfo {
	if userAgent == "" {
		return domain.DeviceInfo{Type: "Unknown", Browser: "Unknown", OS: "Unknown"}
	}

	ua := strings.ToLower(userAgent)
	info := domain.DeviceInfo{}

	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"),
		strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		info.Type = "Mobile"
	case strings.Contains(ua, "tablet"):
		info.Type = "Tablet"
	default:
		info.Type = "Desktop"
	}

	switch {
	case strings.Contains(ua, "chrome"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "safari"):
		info.Browser = "Safari"
	case strings.Contains(ua, "edge"):
		info.Browser = "Edge"
	default:
		info.Browser = "Other"
	}

	switch {
	case strings.Contains(ua, "windows"):
		info.OS = "Windows"
	// Android user agents also contain "linux"; check the more specific
	// platform first.
	case strings.Contains(ua, "android"):
		info.OS = "Android"
	case strings.Contains(ua, "ios"):
		info.OS = "iOS"
	case strings.Contains(ua, "mac"):
		info.OS = "macOS"
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	default:
		info.OS = "Other"
	}

	return info
}
