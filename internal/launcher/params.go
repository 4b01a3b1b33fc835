package launcher

import (
	"fmt"
	"slices"

	"github.com/stupside/facet/internal/fingerprint"
	"github.com/stupside/facet/internal/proxy"
	"github.com/stupside/facet/internal/store"
)

// Geolocation is the position reported to navigator.geolocation.
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// ProxyConfig is the proxy a browser process is launched behind.
type ProxyConfig struct {
	Server   string
	Username string
	Password string
}

// Params are the effective values of one launch.
type Params struct {
	Family      Family
	UserDataDir string
	URL         string

	UserAgent      string
	Hints          fingerprint.ClientHints
	Platform       string
	Languages      []string
	AcceptLanguage string
	TimezoneID     string
	Geolocation    *Geolocation

	// Screen is both the rendering viewport and the value the hook pins
	// screen.* to.
	Screen              fingerprint.Screen
	Hardware            fingerprint.HardwareClass
	DeviceMemory        int
	HardwareConcurrency int

	Proxy *ProxyConfig
}

// Locale is the primary language tag.
func (p Params) Locale() string {
	if len(p.Languages) == 0 {
		return ""
	}
	return p.Languages[0]
}

// Resolve merges a profile's baseline with its proxy geo data and custom
// settings. Precedence is custom > proxy > baseline. binding may be nil.
// The proxy's geo data applies only when the launch goes through the proxy.
// Problems that only degrade the launch are returned as warnings.
func Resolve(p *store.Profile, binding *proxy.Binding) (Params, []string, error) {
	if err := fingerprint.Validate(p.Fingerprint); err != nil {
		return Params{}, nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	base := p.Fingerprint
	custom := p.CustomSettings
	var warnings []string

	family, err := ParseFamily(custom.Browser)
	if err != nil {
		return Params{}, nil, err
	}

	params := Params{
		Family:              family,
		UserAgent:           base.UserAgent,
		Platform:            base.Platform,
		Languages:           slices.Clone(base.Languages),
		TimezoneID:          base.TimezoneID,
		Screen:              base.Screen,
		Hardware:            base.Hardware,
		DeviceMemory:        fingerprint.DeviceMemoryBucket(base.DeviceMemory),
		HardwareConcurrency: base.HardwareConcurrency,
	}

	if binding != nil {
		if err := proxy.Check(binding.Server); err != nil {
			warnings = append(warnings, fmt.Sprintf("proxy %s ignored, launching without proxy: %v", binding.Name, err))
		} else {
			params.Proxy = &ProxyConfig{
				Server:   binding.Server,
				Username: binding.Username,
				Password: binding.Password,
			}
		}

		if info := binding.Geo(); info != nil && params.Proxy != nil {
			if info.TimezoneID != "" {
				params.TimezoneID = info.TimezoneID
			}
			if info.HasLocation {
				params.Geolocation = &Geolocation{Latitude: info.Latitude, Longitude: info.Longitude}
			}
			if info.Locale != "" {
				if langs, err := fingerprint.LanguagesFor(info.Locale); err == nil {
					params.Languages = langs
				}
			}
		}
	}

	if !fingerprint.IsAuto(custom.Language) {
		langs, err := fingerprint.LanguagesFor(custom.Language)
		if err != nil {
			return Params{}, nil, err
		}
		params.Languages = langs
	}
	if !fingerprint.IsAuto(custom.TimezoneID) {
		params.TimezoneID = custom.TimezoneID
	}
	if !fingerprint.IsAuto(custom.UserAgent) {
		params.UserAgent = custom.UserAgent
		params.Platform = fingerprint.NavigatorPlatform(custom.UserAgent)
	}
	if !fingerprint.IsAuto(custom.Hardware) {
		hw, err := fingerprint.LookupHardware(custom.Hardware)
		if err != nil {
			return Params{}, nil, err
		}
		params.Hardware = hw
	}
	if !fingerprint.IsAuto(custom.ScreenResolution) {
		s, err := fingerprint.ParseResolution(custom.ScreenResolution)
		if err != nil {
			return Params{}, nil, err
		}
		params.Screen = s
	}

	params.Hints = fingerprint.HintsFor(params.UserAgent)
	params.AcceptLanguage = fingerprint.AcceptLanguage(params.Languages)
	return params, warnings, nil
}
