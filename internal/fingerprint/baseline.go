package fingerprint

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/language"
)

// Baseline is the durable identity of a profile. It is generated once at
// profile creation and presented unchanged on every launch.
type Baseline struct {
	UserAgent           string        `json:"userAgent" validate:"required"`
	Languages           []string      `json:"languages" validate:"required,min=1,dive,required"`
	TimezoneID          string        `json:"timezoneId" validate:"required"`
	Platform            string        `json:"platform" validate:"required"`
	Screen              Screen        `json:"screen"`
	Hardware            HardwareClass `json:"hardwareClass"`
	DeviceMemory        int           `json:"deviceMemory" validate:"gt=0"`
	HardwareConcurrency int           `json:"hardwareConcurrency" validate:"gt=0"`
}

// Constraints pin parts of a generated baseline. Empty or "auto" fields are
// sampled.
type Constraints struct {
	Hardware         string
	ScreenResolution string
	Language         string
	UserAgent        string
	TimezoneID       string
}

// IsAuto reports whether a constraint or override value means "unset".
func IsAuto(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "auto")
}

// Generate samples a baseline using a freshly seeded generator.
func Generate(c Constraints) (*Baseline, error) {
	return GenerateWith(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), c)
}

// GenerateWith samples a baseline from r, then applies the constraints.
func GenerateWith(r *rand.Rand, c Constraints) (*Baseline, error) {
	hw, err := LookupHardware(pick(r, hardwarePool))
	if err != nil {
		return nil, err
	}
	size := pick(r, screenPool)
	loc := pick(r, localePool)

	b := &Baseline{
		UserAgent:           chromeUserAgent(pick(r, chromeVersionPool)),
		Languages:           append([]string(nil), loc.languages...),
		TimezoneID:          loc.timezoneID,
		Platform:            windowsPlatform,
		Screen:              ScreenFor(size[0], size[1]),
		Hardware:            hw,
		DeviceMemory:        pick(r, deviceMemoryPool),
		HardwareConcurrency: pick(r, concurrencyPool),
	}

	if err := b.apply(c); err != nil {
		return nil, err
	}
	return b, nil
}

// apply overwrites sampled values with every non-auto constraint.
func (b *Baseline) apply(c Constraints) error {
	if !IsAuto(c.Hardware) {
		hw, err := LookupHardware(c.Hardware)
		if err != nil {
			return err
		}
		b.Hardware = hw
	}
	if !IsAuto(c.ScreenResolution) {
		s, err := ParseResolution(c.ScreenResolution)
		if err != nil {
			return err
		}
		b.Screen = s
	}
	if !IsAuto(c.Language) {
		langs, err := LanguagesFor(c.Language)
		if err != nil {
			return err
		}
		b.Languages = langs
	}
	if !IsAuto(c.UserAgent) {
		b.UserAgent = strings.TrimSpace(c.UserAgent)
		b.Platform = NavigatorPlatform(b.UserAgent)
	}
	if !IsAuto(c.TimezoneID) {
		b.TimezoneID = strings.TrimSpace(c.TimezoneID)
	}
	return nil
}

func chromeUserAgent(version string) string {
	return fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36",
		version,
	)
}

// LanguagesFor expands a locale tag into the navigator.languages list:
// "fr-FR" becomes ["fr-FR", "fr"], "de" stays ["de"].
func LanguagesFor(tag string) ([]string, error) {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return nil, fmt.Errorf("%w: language %q: %w", ErrInvalid, tag, err)
	}
	full := t.String()
	base, _ := t.Base()
	if base.String() == full {
		return []string{full}, nil
	}
	return []string{full, base.String()}, nil
}

// AcceptLanguage builds an Accept-Language header with descending weights,
// e.g. ["en-US", "en"] becomes "en-US,en;q=0.9".
func AcceptLanguage(langs []string) string {
	var sb strings.Builder
	for i, l := range langs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l)
		if i > 0 {
			q := max(10-i, 1)
			fmt.Fprintf(&sb, ";q=0.%d", q)
		}
	}
	return sb.String()
}
