package hook

// Tier selects the hardware-limit table reported through WebGL.
type Tier string

const (
	TierStandard Tier = "standard"
	TierHigh     Tier = "high"
)

// WebGL parameter codes.
const (
	glVendor                      = 7936
	glRenderer                    = 7937
	glVersion                     = 7938
	glMaxTextureSize              = 3379
	glMaxViewportDims             = 3386
	glMaxVertexAttribs            = 34921
	glMaxTextureImageUnits        = 34930
	glMaxRenderbufferSize         = 34024
	glMaxCubeMapTextureSize       = 34076
	glMaxVertexUniformVectors     = 36347
	glMaxVaryingVectors           = 36348
	glMaxFragmentUniformVectors   = 36349
	glMaxVertexTextureImageUnits  = 35660
	glMaxCombinedTextureImageUnit = 35661
	glUnmaskedVendor              = 37445
	glUnmaskedRenderer            = 37446
)

// Spec is the typed description of every override the installed script
// performs. It is serialized verbatim into the script.
type Spec struct {
	Marker    string    `json:"marker"`
	Navigator Navigator `json:"navigator"`
	Screen    Screen    `json:"screen"`
	WebGL     WebGL     `json:"webgl"`
	Canvas    Canvas    `json:"canvas"`
	Audio     Audio     `json:"audio"`
}

type Navigator struct {
	Language            string   `json:"language"`
	Languages           []string `json:"languages"`
	DeviceMemory        int      `json:"deviceMemory"`
	HardwareConcurrency int      `json:"hardwareConcurrency"`
	Platform            string   `json:"platform"`
}

type Screen struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	AvailWidth       int     `json:"availWidth"`
	AvailHeight      int     `json:"availHeight"`
	ColorDepth       int     `json:"colorDepth"`
	PixelDepth       int     `json:"pixelDepth"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// WebGL holds the getParameter tables and the read-back noise inputs.
// Strings and Limits are keyed by parameter code; Version2 replaces the
// VERSION string on WebGL2 contexts.
type WebGL struct {
	Vendor           string         `json:"vendor"`
	Renderer         string         `json:"renderer"`
	Version          string         `json:"version"`
	Version2         string         `json:"version2"`
	Tier             Tier           `json:"tier"`
	Strings          map[int]string `json:"strings"`
	Limits           map[int]int    `json:"limits"`
	ViewportDims     [2]int         `json:"viewportDims"`
	Seed             int            `json:"seed"`
	Salt             int            `json:"salt"`
	RemoveExtensions []string       `json:"removeExtensions"`
	AddExtensions    []string       `json:"addExtensions"`
}

type Canvas struct {
	Seed   int `json:"seed"`
	Salt   int `json:"salt"`
	Stride int `json:"stride"`
}

type Audio struct {
	Seed                     int     `json:"seed"`
	Salt                     int     `json:"salt"`
	SampleRateOffset         int     `json:"sampleRateOffset"`
	RealtimeSampleRateOffset int     `json:"realtimeSampleRateOffset"`
	LengthOffset             int     `json:"lengthOffset"`
	TimeOffset               float64 `json:"timeOffset"`
	NoiseMask                int     `json:"noiseMask"`
}

// Perturb returns the value getParameter reports for a numeric result that
// is not covered by the fixed tables.
func (w WebGL) Perturb(code int, result float64) float64 {
	return result + float64((w.Seed+code)%1000)*1e-6
}

// Noise is the per-position value the read-back overrides derive from a
// session seed and salt.
func Noise(seed, salt, i int) uint32 {
	t := uint32(seed) ^ uint32(salt)*0x9E3779B1 ^ uint32(i)*0x85EBCA6B
	t = (t ^ t>>16) * 0x7FEB352D
	t = (t ^ t>>15) * 0x846CA68B
	return t ^ t>>16
}
