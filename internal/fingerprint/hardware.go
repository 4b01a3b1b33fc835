package fingerprint

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	webGL1Version = "WebGL 1.0 (OpenGL ES 2.0 Chromium)"
	webGL2Version = "WebGL 2.0 (OpenGL ES 3.0 Chromium)"
)

// WebGL2Version is the VERSION string reported by WebGL2 contexts.
func WebGL2Version() string { return webGL2Version }

// HardwareClass is the GPU claim presented through WebGL.
type HardwareClass struct {
	ID           string `json:"id,omitempty"`
	Vendor       string `json:"vendor" validate:"required"`
	Renderer     string `json:"renderer" validate:"required"`
	WebGLVersion string `json:"webglVersion" validate:"required"`
}

func angle(vendor, gpu string) HardwareClass {
	return HardwareClass{
		Vendor:       "Google Inc. (" + vendor + ")",
		Renderer:     "ANGLE (" + vendor + ", " + gpu + " Direct3D11 vs_5_0 ps_5_0, D3D11)",
		WebGLVersion: webGL1Version,
	}
}

// hardwareTable is the canonical identifier to GPU claim mapping. Entries
// must never change once shipped: profiles persist the identifier.
var hardwareTable = map[string]HardwareClass{
	"gtx1050ti":  angle("NVIDIA", "NVIDIA GeForce GTX 1050 Ti"),
	"gtx1060":    angle("NVIDIA", "NVIDIA GeForce GTX 1060 6GB"),
	"gtx1650":    angle("NVIDIA", "NVIDIA GeForce GTX 1650"),
	"gtx1660":    angle("NVIDIA", "NVIDIA GeForce GTX 1660 SUPER"),
	"rtx2060":    angle("NVIDIA", "NVIDIA GeForce RTX 2060"),
	"rtx3060":    angle("NVIDIA", "NVIDIA GeForce RTX 3060"),
	"rtx3070":    angle("NVIDIA", "NVIDIA GeForce RTX 3070"),
	"rtx3080":    angle("NVIDIA", "NVIDIA GeForce RTX 3080"),
	"rtx4060":    angle("NVIDIA", "NVIDIA GeForce RTX 4060"),
	"rtx4070":    angle("NVIDIA", "NVIDIA GeForce RTX 4070"),
	"rtx4090":    angle("NVIDIA", "NVIDIA GeForce RTX 4090"),
	"rx580":      angle("AMD", "Radeon RX 580 Series"),
	"rx6600":     angle("AMD", "AMD Radeon RX 6600"),
	"rx6700xt":   angle("AMD", "AMD Radeon RX 6700 XT"),
	"rx7900xtx":  angle("AMD", "AMD Radeon RX 7900 XTX"),
	"radeonvega": angle("AMD", "AMD Radeon(TM) Graphics"),
	"uhd620":     angle("Intel", "Intel(R) UHD Graphics 620"),
	"uhd630":     angle("Intel", "Intel(R) UHD Graphics 630"),
	"uhd770":     angle("Intel", "Intel(R) UHD Graphics 770"),
	"irisxe":     angle("Intel", "Intel(R) Iris(R) Xe Graphics"),
	"arca770":    angle("Intel", "Intel(R) Arc(TM) A770 Graphics"),
}

// NormalizeHardwareID folds case and drops spaces, dashes and underscores, so
// "RTX 3080" and "rtx-3080" both become "rtx3080".
func NormalizeHardwareID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(id)))
}

// LookupHardware resolves a hardware identifier against the canonical table.
func LookupHardware(id string) (HardwareClass, error) {
	key := NormalizeHardwareID(id)
	hw, ok := hardwareTable[key]
	if !ok {
		return HardwareClass{}, fmt.Errorf("%w: unknown hardware class %q", ErrInvalid, id)
	}
	hw.ID = key
	return hw, nil
}

// HardwareIDs lists the known hardware identifiers in sorted order.
func HardwareIDs() []string {
	return slices.Sorted(maps.Keys(hardwareTable))
}
