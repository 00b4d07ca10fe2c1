package analytics

import "strings"

// parseUserAgent extracts the operating system and device class from a
// User-Agent string.
func parseUserAgent(ua string) (os, deviceType string) {
	if ua == "" {
		return "", ""
	}
	ua = strings.ToLower(ua)

	// Detect OS
	switch {
	case strings.Contains(ua, "android"):
		os = "android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		os = "ios"
	case strings.Contains(ua, "windows"):
		os = "windows"
	case strings.Contains(ua, "cros "):
		os = "chromeos"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macintosh"):
		os = "macos"
	case strings.Contains(ua, "linux"):
		os = "linux"
	default:
		os = "unknown"
	}

	// Detect device type
	switch {
	case strings.Contains(ua, "bot"), strings.Contains(ua, "spider"), strings.Contains(ua, "crawler"):
		deviceType = "bot"
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		deviceType = "tablet"
	case strings.Contains(ua, "android"):
		// Android tablets omit the "mobile" token
		if strings.Contains(ua, "mobile") {
			deviceType = "phone"
		} else {
			deviceType = "tablet"
		}
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"), strings.Contains(ua, "ipod"):
		deviceType = "phone"
	default:
		deviceType = "desktop"
	}

	return os, deviceType
}
