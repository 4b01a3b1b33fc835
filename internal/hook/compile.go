package hook

import (
	"fmt"
	"hash/fnv"
	"maps"
	"slices"
	"strings"

	"github.com/stupside/facet/internal/fingerprint"
	"github.com/stupside/facet/internal/session"
)

// Input is everything the compiled script depends on: the effective
// baseline values of a launch plus its perturbation.
type Input struct {
	Languages           []string
	Platform            string
	DeviceMemory        int
	HardwareConcurrency int
	Screen              fingerprint.Screen
	Hardware            fingerprint.HardwareClass
	Perturbation        session.Perturbation
}

var defaultLanguages = []string{"en-US", "en"}

// highEndMarkers select TierHigh when found in the renderer string.
var highEndMarkers = []string{"RTX", "RX 6", "RX 7", "Radeon Pro", "Arc A", "Arc(TM) A"}

var tierLimits = map[Tier]map[int]int{
	TierStandard: {
		glMaxTextureSize:              16384,
		glMaxRenderbufferSize:         16384,
		glMaxCubeMapTextureSize:       16384,
		glMaxVertexTextureImageUnits:  16,
		glMaxTextureImageUnits:        16,
		glMaxCombinedTextureImageUnit: 32,
		glMaxVertexAttribs:            16,
		glMaxVertexUniformVectors:     4096,
		glMaxFragmentUniformVectors:   1024,
		glMaxVaryingVectors:           30,
	},
	TierHigh: {
		glMaxTextureSize:              32768,
		glMaxRenderbufferSize:         32768,
		glMaxCubeMapTextureSize:       32768,
		glMaxVertexTextureImageUnits:  32,
		glMaxTextureImageUnits:        32,
		glMaxCombinedTextureImageUnit: 64,
		glMaxVertexAttribs:            16,
		glMaxVertexUniformVectors:     4096,
		glMaxFragmentUniformVectors:   4096,
		glMaxVaryingVectors:           31,
	},
}

var tierViewport = map[Tier][2]int{
	TierStandard: {16384, 16384},
	TierHigh:     {32767, 32767},
}

// debugExtensions reveal the real GPU or allow probing the driver.
var debugExtensions = []string{
	"WEBGL_debug_renderer_info",
	"WEBGL_debug_shaders",
	"WEBGL_lose_context",
}

var extensionPool = []string{
	"WEBGL_compressed_texture_etc",
	"WEBGL_compressed_texture_astc",
	"WEBGL_compressed_texture_s3tc",
	"WEBGL_depth_texture",
	"WEBGL_draw_buffers",
	"OES_texture_float",
	"OES_texture_half_float",
	"OES_standard_derivatives",
	"EXT_texture_filter_anisotropic",
}

const canvasStride = 20

// TierFor picks the hardware-limit tier for a renderer string.
func TierFor(renderer string) Tier {
	for _, m := range highEndMarkers {
		if strings.Contains(renderer, m) {
			return TierHigh
		}
	}
	return TierStandard
}

// Compile builds the hook specification for one launch.
func Compile(in Input) (*Spec, error) {
	if in.Hardware.Vendor == "" || in.Hardware.Renderer == "" {
		return nil, fmt.Errorf("compiling hook: hardware class has no vendor or renderer")
	}
	if in.Screen.Width <= 0 || in.Screen.Height <= 0 {
		return nil, fmt.Errorf("compiling hook: screen %dx%d is not positive", in.Screen.Width, in.Screen.Height)
	}
	if in.Perturbation.SessionID == "" {
		return nil, fmt.Errorf("compiling hook: perturbation has no session id")
	}

	langs := in.Languages
	if len(langs) == 0 || fingerprint.IsAuto(langs[0]) {
		langs = defaultLanguages
	}

	version := in.Hardware.WebGLVersion
	if version == "" {
		version = "WebGL 1.0 (OpenGL ES 2.0 Chromium)"
	}

	p := in.Perturbation
	tier := TierFor(in.Hardware.Renderer)

	return &Spec{
		Marker: "facet:" + p.SessionID,
		Navigator: Navigator{
			Language:            langs[0],
			Languages:           slices.Clone(langs),
			DeviceMemory:        in.DeviceMemory,
			HardwareConcurrency: in.HardwareConcurrency,
			Platform:            in.Platform,
		},
		Screen: Screen{
			Width:            in.Screen.Width,
			Height:           in.Screen.Height,
			AvailWidth:       in.Screen.AvailWidth,
			AvailHeight:      in.Screen.AvailHeight,
			ColorDepth:       in.Screen.ColorDepth,
			PixelDepth:       in.Screen.PixelDepth,
			DevicePixelRatio: 1,
		},
		WebGL: WebGL{
			Vendor:   in.Hardware.Vendor,
			Renderer: in.Hardware.Renderer,
			Version:  version,
			Version2: fingerprint.WebGL2Version(),
			Tier:     tier,
			Strings: map[int]string{
				glVendor:           in.Hardware.Vendor,
				glRenderer:         in.Hardware.Renderer,
				glVersion:          version,
				glUnmaskedVendor:   in.Hardware.Vendor,
				glUnmaskedRenderer: in.Hardware.Renderer,
			},
			Limits:           maps.Clone(tierLimits[tier]),
			ViewportDims:     tierViewport[tier],
			Seed:             p.WebGLSeed,
			Salt:             salt(p.WebGLHash),
			RemoveExtensions: slices.Clone(debugExtensions),
			AddExtensions:    addedExtensions(p.WebGLSeed),
		},
		Canvas: Canvas{
			Seed:   p.CanvasSeed,
			Salt:   salt(p.CanvasHash),
			Stride: canvasStride,
		},
		Audio: Audio{
			Seed:                     p.AudioSeed,
			Salt:                     salt(p.AudioHash),
			SampleRateOffset:         p.AudioSeed % 100,
			RealtimeSampleRateOffset: p.AudioSeed % 50,
			LengthOffset:             p.AudioSeed % 512,
			TimeOffset:               float64(p.AudioSeed%10000) / 100000,
			NoiseMask:                3,
		},
	}, nil
}

// salt folds a session hash into 32 bits.
func salt(h string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(h))
	return int(f.Sum32())
}

// addedExtensions selects pool entries for a seed, in sorted order.
func addedExtensions(seed int) []string {
	out := []string{}
	for _, ext := range extensionPool {
		if (seed+len(ext))%3 == 0 {
			out = append(out, ext)
		}
	}
	slices.Sort(out)
	return out
}
