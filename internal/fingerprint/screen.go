package fingerprint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// chromeAllowance is subtracted from both dimensions to get the
	// available area (taskbar, window decorations).
	chromeAllowance = 100
	colorDepth      = 24
)

// Screen is the display geometry exposed through window.screen.
type Screen struct {
	Width       int `json:"width" validate:"gt=0"`
	Height      int `json:"height" validate:"gt=0"`
	AvailWidth  int `json:"availWidth" validate:"gt=0,ltefield=Width"`
	AvailHeight int `json:"availHeight" validate:"gt=0,ltefield=Height"`
	ColorDepth  int `json:"colorDepth" validate:"gt=0"`
	PixelDepth  int `json:"pixelDepth" validate:"gt=0"`
}

// ScreenFor derives the full screen geometry from a width and height.
func ScreenFor(width, height int) Screen {
	return Screen{
		Width:       width,
		Height:      height,
		AvailWidth:  width - chromeAllowance,
		AvailHeight: height - chromeAllowance,
		ColorDepth:  colorDepth,
		PixelDepth:  colorDepth,
	}
}

// Resolution formats the screen as "WIDTHxHEIGHT".
func (s Screen) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseResolution parses "1366x768" style strings. Fractional values are
// rounded half-up so the result is always whole pixels.
func ParseResolution(s string) (Screen, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == 'x' || r == 'X' || r == '*' || r == ','
	})
	if len(parts) != 2 {
		return Screen{}, fmt.Errorf("%w: resolution %q is not WIDTHxHEIGHT", ErrInvalid, s)
	}

	var dims [2]int
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return Screen{}, fmt.Errorf("%w: resolution %q has a non-numeric dimension", ErrInvalid, s)
		}
		px := int(math.Floor(v + 0.5))
		if px <= chromeAllowance {
			return Screen{}, fmt.Errorf("%w: resolution %q is too small", ErrInvalid, s)
		}
		dims[i] = px
	}

	return ScreenFor(dims[0], dims[1]), nil
}
