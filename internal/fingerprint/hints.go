package fingerprint

import (
	"regexp"
	"strings"
)

var chromeVersionRe = regexp.MustCompile(`Chrome/((\d+)\.[\d.]+)`)

// Brand is one entry of the Sec-CH-UA brand lists.
type Brand struct {
	Name    string
	Version string
}

// ClientHints is the user-agent client hints metadata matching a UA string.
type ClientHints struct {
	Brands          []Brand
	FullVersionList []Brand
	Platform        string
	PlatformVersion string
	Architecture    string
	Bitness         string
}

// NavigatorPlatform maps a UA string to the navigator.platform value a real
// browser with that UA reports.
func NavigatorPlatform(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return windowsPlatform
	}
}

// HintsFor derives client hints from a Chrome UA string. A UA without a
// Chrome token yields hints with empty brand lists.
func HintsFor(ua string) ClientHints {
	h := ClientHints{Architecture: "x86", Bitness: "64"}

	switch NavigatorPlatform(ua) {
	case "MacIntel":
		h.Platform, h.PlatformVersion = "macOS", "14.5.0"
	case "Linux x86_64":
		h.Platform, h.PlatformVersion = "Linux", "6.5.0"
	default:
		h.Platform, h.PlatformVersion = "Windows", "10.0.0"
	}

	m := chromeVersionRe.FindStringSubmatch(ua)
	if m == nil {
		return h
	}
	full, major := m[1], m[2]

	h.Brands = []Brand{
		{"Not A(Brand", "8"},
		{"Chromium", major},
		{"Google Chrome", major},
	}
	h.FullVersionList = []Brand{
		{"Not A(Brand", "8.0.0.0"},
		{"Chromium", full},
		{"Google Chrome", full},
	}
	return h
}
