package hook

import (
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/facet/internal/fingerprint"
	"github.com/stupside/facet/internal/session"
)

// stubJS provides the slice of the browser global scope the hook touches.
// Properties are created by assignment so they stay configurable, like the
// real window bindings.
const stubJS = `
var window = this;

window.Navigator = function Navigator() {};
['language', 'platform'].forEach(function (k) {
  Object.defineProperty(Navigator.prototype, k, { get: function () { return 'native-' + k; }, enumerable: true, configurable: true });
});
Object.defineProperty(Navigator.prototype, 'languages', { get: function () { return ['zz']; }, enumerable: true, configurable: true });
Object.defineProperty(Navigator.prototype, 'deviceMemory', { get: function () { return 2; }, enumerable: true, configurable: true });
Object.defineProperty(Navigator.prototype, 'hardwareConcurrency', { get: function () { return 2; }, enumerable: true, configurable: true });
window.navigator = Object.create(Navigator.prototype);

window.Screen = function Screen() {};
['width', 'height', 'availWidth', 'availHeight', 'colorDepth', 'pixelDepth'].forEach(function (k) {
  Object.defineProperty(Screen.prototype, k, { get: function () { return 1; }, enumerable: true, configurable: true });
});
window.screen = Object.create(Screen.prototype);
Object.defineProperty(window, 'devicePixelRatio', { get: function () { return 2; }, enumerable: true, configurable: true });

function glStub(name) {
  var Ctx = function () {};
  Object.defineProperty(Ctx, 'name', { value: name });
  Ctx.prototype.getParameter = function getParameter(p) {
    if (p === 7936) return 'WebKit';
    if (p === 7937) return 'WebKit WebGL';
    if (p === 3410) return 8;
    return null;
  };
  Ctx.prototype.readPixels = function readPixels(x, y, width, height, format, type, pixels) {
    for (var i = 0; i < pixels.length; i++) pixels[i] = 128;
  };
  Ctx.prototype.getSupportedExtensions = function getSupportedExtensions() {
    return ['WEBGL_lose_context', 'OES_vertex_array_object', 'WEBGL_debug_renderer_info', 'ANGLE_instanced_arrays'];
  };
  return Ctx;
}
window.WebGLRenderingContext = glStub('WebGLRenderingContext');
window.WebGL2RenderingContext = glStub('WebGL2RenderingContext');

window.CanvasRenderingContext2D = function CanvasRenderingContext2D() {};
CanvasRenderingContext2D.prototype.getImageData = function getImageData(sx, sy, sw, sh) {
  var d = new Uint8ClampedArray(sw * sh * 4);
  for (var i = 0; i < d.length; i++) d[i] = (i % 4 === 3) ? 255 : 128;
  return { data: d, width: sw, height: sh };
};

window.BaseAudioContext = function BaseAudioContext() {};
Object.defineProperty(BaseAudioContext.prototype, 'sampleRate', { get: function () { return 48000; }, configurable: true });
Object.defineProperty(BaseAudioContext.prototype, 'currentTime', { get: function () { return 2; }, configurable: true });
window.AudioContext = function AudioContext() {};
AudioContext.prototype = Object.create(BaseAudioContext.prototype);

window.OfflineAudioContext = function OfflineAudioContext(channels, length, sampleRate) {
  if (channels && typeof channels === 'object') {
    this.length = channels.length;
    this.sampleRate = channels.sampleRate;
    return;
  }
  this.length = length;
  this.sampleRate = sampleRate;
};

window.AnalyserNode = function AnalyserNode() {};
AnalyserNode.prototype.getByteFrequencyData = function getByteFrequencyData(arr) {
  for (var i = 0; i < arr.length; i++) arr[i] = 100;
};
AnalyserNode.prototype.getFloatFrequencyData = function getFloatFrequencyData(arr) {
  for (var i = 0; i < arr.length; i++) arr[i] = -50;
};
`

func testPerturbation() session.Perturbation {
	return session.Perturbation{
		SessionID:  "session-1700000000000-abcdefghijkl",
		CreatedAt:  time.UnixMilli(1_700_000_000_000),
		CanvasSeed: 4242,
		WebGLSeed:  123457,
		AudioSeed:  98765,
		CanvasHash: "0123456789abcdef0123456789abcdef",
		WebGLHash:  "fedcba9876543210fedcba9876543210",
		AudioHash:  "00112233445566778899aabbccddeeff",
	}
}

func testInput(t *testing.T) Input {
	t.Helper()
	hw, err := fingerprint.LookupHardware("rtx3080")
	require.NoError(t, err)
	return Input{
		Languages:           []string{"en-US", "en"},
		Platform:            "Win32",
		DeviceMemory:        8,
		HardwareConcurrency: 12,
		Screen:              fingerprint.ScreenFor(1920, 1080),
		Hardware:            hw,
		Perturbation:        testPerturbation(),
	}
}

type page struct {
	t  *testing.T
	vm *goja.Runtime
}

func newPage(t *testing.T) *page {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(stubJS)
	require.NoError(t, err)
	return &page{t: t, vm: vm}
}

func (p *page) run(src string) goja.Value {
	p.t.Helper()
	v, err := p.vm.RunString(src)
	require.NoError(p.t, err, src)
	return v
}

func installed(t *testing.T, in Input) (*Spec, *page) {
	t.Helper()
	spec, script, err := Build(in)
	require.NoError(t, err)
	p := newPage(t)
	p.run(script)
	return spec, p
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		renderer string
		want     Tier
	}{
		{"ANGLE (NVIDIA, NVIDIA GeForce RTX 3080 Direct3D11 vs_5_0 ps_5_0, D3D11)", TierHigh},
		{"ANGLE (AMD, AMD Radeon RX 6700 XT Direct3D11 vs_5_0 ps_5_0, D3D11)", TierHigh},
		{"ANGLE (AMD, AMD Radeon RX 7900 XTX Direct3D11 vs_5_0 ps_5_0, D3D11)", TierHigh},
		{"ANGLE (Intel, Intel(R) Arc(TM) A770 Graphics Direct3D11 vs_5_0 ps_5_0, D3D11)", TierHigh},
		{"ANGLE (Intel, Intel(R) UHD Graphics 630 Direct3D11 vs_5_0 ps_5_0, D3D11)", TierStandard},
		{"ANGLE (AMD, Radeon RX 580 Series Direct3D11 vs_5_0 ps_5_0, D3D11)", TierStandard},
		{"ANGLE (NVIDIA, NVIDIA GeForce GTX 1650 Direct3D11 vs_5_0 ps_5_0, D3D11)", TierStandard},
	}
	for _, tt := range tests {
		t.Run(tt.renderer, func(t *testing.T) {
			assert.Equal(t, tt.want, TierFor(tt.renderer))
		})
	}
}

func TestCompile(t *testing.T) {
	spec, err := Compile(testInput(t))
	require.NoError(t, err)

	assert.Equal(t, "en-US", spec.Navigator.Language)
	assert.Equal(t, 1920, spec.Screen.Width)
	assert.Equal(t, 1820, spec.Screen.AvailWidth)
	assert.Equal(t, 1.0, spec.Screen.DevicePixelRatio)
	assert.Equal(t, TierHigh, spec.WebGL.Tier)
	assert.Equal(t, spec.WebGL.Renderer, spec.WebGL.Strings[glUnmaskedRenderer])
	assert.Equal(t, spec.WebGL.Vendor, spec.WebGL.Strings[glUnmaskedVendor])
	assert.Equal(t, 32768, spec.WebGL.Limits[glMaxTextureSize])
	assert.Equal(t, 98765%100, spec.Audio.SampleRateOffset)
	assert.Equal(t, 98765%512, spec.Audio.LengthOffset)
	assert.InDelta(t, 0.08765, spec.Audio.TimeOffset, 1e-12)
	assert.True(t, strings.HasSuffix(spec.Marker, testPerturbation().SessionID))
}

func TestCompileDefaultsLanguages(t *testing.T) {
	for _, langs := range [][]string{nil, {"auto"}} {
		in := testInput(t)
		in.Languages = langs
		spec, err := Compile(in)
		require.NoError(t, err)
		assert.Equal(t, "en-US", spec.Navigator.Language)
		assert.Equal(t, []string{"en-US", "en"}, spec.Navigator.Languages)
	}
}

func TestCompileRejectsIncompleteInput(t *testing.T) {
	in := testInput(t)
	in.Hardware.Renderer = ""
	_, err := Compile(in)
	assert.Error(t, err)

	in = testInput(t)
	in.Screen.Width = 0
	_, err = Compile(in)
	assert.Error(t, err)

	in = testInput(t)
	in.Perturbation.SessionID = ""
	_, err = Compile(in)
	assert.Error(t, err)
}

func TestCompileEntropyComesFromPerturbationOnly(t *testing.T) {
	a := testInput(t)
	b := testInput(t)
	hw, err := fingerprint.LookupHardware("uhd630")
	require.NoError(t, err)
	b.Hardware = hw
	b.Screen = fingerprint.ScreenFor(1366, 768)

	sa, err := Compile(a)
	require.NoError(t, err)
	sb, err := Compile(b)
	require.NoError(t, err)

	assert.Equal(t, sa.WebGL.Seed, sb.WebGL.Seed)
	assert.Equal(t, sa.WebGL.Salt, sb.WebGL.Salt)
	assert.Equal(t, sa.WebGL.AddExtensions, sb.WebGL.AddExtensions)
	assert.Equal(t, sa.Canvas, sb.Canvas)
	assert.Equal(t, sa.Audio, sb.Audio)

	c := testInput(t)
	c.Perturbation = session.Derive()
	sc, err := Compile(c)
	require.NoError(t, err)
	assert.NotEqual(t, sa.WebGL.Salt, sc.WebGL.Salt)
}

func TestAddedExtensions(t *testing.T) {
	for seed := range 6 {
		got := addedExtensions(seed)
		assert.IsIncreasing(t, got)
		for _, ext := range got {
			assert.Zero(t, (seed+len(ext))%3, ext)
		}
		for _, ext := range extensionPool {
			if (seed+len(ext))%3 == 0 {
				assert.Contains(t, got, ext)
			}
		}
	}
}

func TestCheck(t *testing.T) {
	spec, err := Compile(testInput(t))
	require.NoError(t, err)
	script, err := Render(spec)
	require.NoError(t, err)

	assert.NoError(t, Check(script))
	assert.Error(t, Check(script[:len(script)/2]))
	assert.Error(t, Check("function ("))
}

func TestRenderEscapesSpec(t *testing.T) {
	in := testInput(t)
	in.Hardware.Renderer = `</script><script>alert("x")</script>`
	_, script, err := Build(in)
	require.NoError(t, err)
	assert.NotContains(t, script, "</script>")
}

func TestNavigatorAndScreen(t *testing.T) {
	_, p := installed(t, testInput(t))

	assert.Equal(t, "en-US", p.run(`navigator.language`).String())
	assert.Equal(t, "en-US,en", p.run(`navigator.languages.join(',')`).String())
	assert.True(t, p.run(`navigator.languages === navigator.languages`).ToBoolean())
	assert.True(t, p.run(`Object.isFrozen(navigator.languages)`).ToBoolean())
	assert.Equal(t, "Win32", p.run(`navigator.platform`).String())
	assert.EqualValues(t, 8, p.run(`navigator.deviceMemory`).ToInteger())
	assert.EqualValues(t, 12, p.run(`navigator.hardwareConcurrency`).ToInteger())

	assert.EqualValues(t, 1920, p.run(`screen.width`).ToInteger())
	assert.EqualValues(t, 1080, p.run(`screen.height`).ToInteger())
	assert.EqualValues(t, 1820, p.run(`screen.availWidth`).ToInteger())
	assert.EqualValues(t, 980, p.run(`screen.availHeight`).ToInteger())
	assert.EqualValues(t, 24, p.run(`screen.colorDepth`).ToInteger())
	assert.EqualValues(t, 24, p.run(`screen.pixelDepth`).ToInteger())
	assert.EqualValues(t, 1, p.run(`window.devicePixelRatio`).ToInteger())
}

func TestWebGLGetParameter(t *testing.T) {
	spec, p := installed(t, testInput(t))
	p.run(`var gl = new WebGLRenderingContext(); var gl2 = new WebGL2RenderingContext();`)

	renderer := "ANGLE (NVIDIA, NVIDIA GeForce RTX 3080 Direct3D11 vs_5_0 ps_5_0, D3D11)"
	assert.Equal(t, renderer, p.run(`gl.getParameter(37446)`).String())
	assert.Equal(t, renderer, p.run(`gl.getParameter(7937)`).String())
	assert.Equal(t, "Google Inc. (NVIDIA)", p.run(`gl.getParameter(37445)`).String())
	assert.True(t, p.run(`gl.getParameter(37445) === gl.getParameter(37445)`).ToBoolean())
	assert.Equal(t, renderer, p.run(`gl2.getParameter(37446)`).String())

	assert.Equal(t, "WebGL 1.0 (OpenGL ES 2.0 Chromium)", p.run(`gl.getParameter(7938)`).String())
	assert.Equal(t, "WebGL 2.0 (OpenGL ES 3.0 Chromium)", p.run(`gl2.getParameter(7938)`).String())

	assert.EqualValues(t, 32768, p.run(`gl.getParameter(3379)`).ToInteger())
	assert.EqualValues(t, 32, p.run(`gl.getParameter(34930)`).ToInteger())
	assert.Equal(t, "32767,32767", p.run(`Array.prototype.join.call(gl.getParameter(3386), ',')`).String())

	want := spec.WebGL.Perturb(3410, 8)
	assert.InDelta(t, want, p.run(`gl.getParameter(3410)`).ToFloat(), 1e-12)
	assert.NotEqual(t, 8.0, p.run(`gl.getParameter(3410)`).ToFloat())
	assert.True(t, p.run(`gl.getParameter(3410) === gl.getParameter(3410)`).ToBoolean())

	assert.True(t, goja.IsNull(p.run(`gl.getParameter(1234)`)))
}

func TestWebGLStandardTier(t *testing.T) {
	in := testInput(t)
	hw, err := fingerprint.LookupHardware("uhd630")
	require.NoError(t, err)
	in.Hardware = hw

	_, p := installed(t, in)
	p.run(`var gl = new WebGLRenderingContext();`)
	assert.EqualValues(t, 16384, p.run(`gl.getParameter(3379)`).ToInteger())
	assert.Equal(t, "16384,16384", p.run(`Array.prototype.join.call(gl.getParameter(3386), ',')`).String())
}

func TestWebGLReadPixels(t *testing.T) {
	spec, p := installed(t, testInput(t))

	v := p.run(`
		var gl = new WebGLRenderingContext();
		var px = new Uint8Array(4 * 3 * 2);
		gl.readPixels(0, 0, 3, 2, 0, 0, px);
		Array.prototype.slice.call(px);
	`)
	var got []int
	require.NoError(t, p.vm.ExportTo(v, &got))
	require.Len(t, got, 24)

	changed := false
	for i := 0; i < len(got); i += 4 {
		idx := i / 4
		n := int(Noise(spec.WebGL.Seed, spec.WebGL.Salt, i) % 5)
		for c := range 3 {
			assert.Equal(t, 128+n, got[i+c], "pixel %d channel %d", idx, c)
		}
		assert.Equal(t, 128, got[i+3], "alpha untouched")
		changed = changed || n != 0
	}
	assert.True(t, changed)

	// Float buffers are passed through untouched.
	assert.Equal(t, "128,128,128,128", p.run(`
		var f = new Float32Array(4);
		gl.readPixels(0, 0, 1, 1, 0, 0, f);
		Array.prototype.join.call(f, ',');
	`).String())
}

func TestWebGLSupportedExtensions(t *testing.T) {
	spec, p := installed(t, testInput(t))

	var got []string
	require.NoError(t, p.vm.ExportTo(p.run(`new WebGLRenderingContext().getSupportedExtensions()`), &got))

	assert.IsIncreasing(t, got)
	for _, ext := range debugExtensions {
		assert.NotContains(t, got, ext)
	}
	assert.Contains(t, got, "ANGLE_instanced_arrays")
	assert.Contains(t, got, "OES_vertex_array_object")
	for _, ext := range spec.WebGL.AddExtensions {
		assert.Contains(t, got, ext)
	}
}

func TestCanvasGetImageData(t *testing.T) {
	spec, p := installed(t, testInput(t))

	var got []int
	require.NoError(t, p.vm.ExportTo(p.run(`
		var ctx = new CanvasRenderingContext2D();
		Array.prototype.slice.call(ctx.getImageData(0, 0, 10, 2).data);
	`), &got))
	require.Len(t, got, 80)

	for i := 0; i < len(got); i += 4 {
		want := 128
		if i%spec.Canvas.Stride == 0 {
			n := 1 + int(Noise(spec.Canvas.Seed, spec.Canvas.Salt, i)%3)
			want += n
			assert.NotEqual(t, 128, got[i], "sampled offset %d left untouched", i)
		}
		for c := range 3 {
			assert.Equal(t, want, got[i+c], "offset %d channel %d", i, c)
		}
		assert.Equal(t, 255, got[i+3])
	}
}

func TestAudio(t *testing.T) {
	spec, p := installed(t, testInput(t))
	a := spec.Audio

	assert.EqualValues(t, 44100+a.LengthOffset, p.run(`new OfflineAudioContext(1, 44100, 44100).length`).ToInteger())
	assert.EqualValues(t, 44100+a.SampleRateOffset, p.run(`new OfflineAudioContext(1, 44100, 44100).sampleRate`).ToInteger())
	assert.EqualValues(t, 5000+a.LengthOffset, p.run(`new OfflineAudioContext({ numberOfChannels: 1, length: 5000, sampleRate: 44100 }).length`).ToInteger())
	assert.True(t, p.run(`new OfflineAudioContext(1, 10, 44100) instanceof OfflineAudioContext`).ToBoolean())
	assert.True(t, p.run(`new OfflineAudioContext(1, 10, 44100).constructor === OfflineAudioContext`).ToBoolean())

	assert.EqualValues(t, 48000+a.RealtimeSampleRateOffset, p.run(`new AudioContext().sampleRate`).ToInteger())
	assert.InDelta(t, 2+a.TimeOffset, p.run(`new AudioContext().currentTime`).ToFloat(), 1e-12)

	var bytes []int
	require.NoError(t, p.vm.ExportTo(p.run(`
		var arr = new Uint8Array(16);
		new AnalyserNode().getByteFrequencyData(arr);
		Array.prototype.slice.call(arr);
	`), &bytes))
	for i, b := range bytes {
		n := int(Noise(a.Seed, a.Salt, i)) & a.NoiseMask
		assert.Equal(t, 100+n, b, "bin %d", i)
	}
}

func TestOverridesLookNative(t *testing.T) {
	_, p := installed(t, testInput(t))

	assert.Equal(t, "function getParameter() { [native code] }",
		p.run(`WebGLRenderingContext.prototype.getParameter.toString()`).String())
	assert.Equal(t, "function getImageData() { [native code] }",
		p.run(`Function.prototype.toString.call(CanvasRenderingContext2D.prototype.getImageData)`).String())
	assert.Equal(t, "function toString() { [native code] }",
		p.run(`Function.prototype.toString.toString()`).String())
	assert.Equal(t, "function get width() { [native code] }",
		p.run(`Object.getOwnPropertyDescriptor(Screen.prototype, 'width').get.toString()`).String())
	assert.Contains(t, p.run(`(function mine() { return 1; }).toString()`).String(), "return 1")
}

func TestInstallIsIdempotent(t *testing.T) {
	spec, script, err := Build(testInput(t))
	require.NoError(t, err)

	p := newPage(t)
	p.run(script)
	p.run(`var first = WebGLRenderingContext.prototype.getParameter;`)
	p.run(script)

	assert.True(t, p.run(`WebGLRenderingContext.prototype.getParameter === first`).ToBoolean())
	assert.InDelta(t, spec.WebGL.Perturb(3410, 8), p.run(`new WebGLRenderingContext().getParameter(3410)`).ToFloat(), 1e-12)

	var got []int
	require.NoError(t, p.vm.ExportTo(p.run(`
		var px = new Uint8Array(4);
		new WebGLRenderingContext().readPixels(0, 0, 1, 1, 0, 0, px);
		Array.prototype.slice.call(px);
	`), &got))
	n := int(Noise(spec.WebGL.Seed, spec.WebGL.Salt, 0) % 5)
	assert.Equal(t, 128+n, got[0])

	assert.False(t, p.run(`Object.keys(window).some(function (k) { return k.indexOf('facet') >= 0; })`).ToBoolean())
}

func TestSessionsDiffer(t *testing.T) {
	a := testInput(t)
	b := testInput(t)
	b.Perturbation.WebGLSeed = a.Perturbation.WebGLSeed + 1
	b.Perturbation.SessionID = "session-2-bbbbbbbbbbbb"

	_, pa := installed(t, a)
	_, pb := installed(t, b)

	q := `new WebGLRenderingContext().getParameter(3410)`
	assert.NotEqual(t, pa.run(q).ToFloat(), pb.run(q).ToFloat())
	assert.Equal(t,
		pa.run(`new WebGLRenderingContext().getParameter(37446)`).String(),
		pb.run(`new WebGLRenderingContext().getParameter(37446)`).String())
}

func TestReadBacksDifferAcrossSessions(t *testing.T) {
	const sessions = 40

	unmodified := newPage(t)
	readBacks := `
		var out = {};
		out.canvas = Array.prototype.join.call(new CanvasRenderingContext2D().getImageData(0, 0, 50, 50).data, ',');
		var px = new Uint8Array(16 * 16 * 4);
		new WebGLRenderingContext().readPixels(0, 0, 16, 16, 0, 0, px);
		out.pixels = Array.prototype.join.call(px, ',');
		var bins = new Uint8Array(64);
		new AnalyserNode().getByteFrequencyData(bins);
		out.audio = Array.prototype.join.call(bins, ',');
		out;
	`
	var native map[string]string
	require.NoError(t, unmodified.vm.ExportTo(unmodified.run(readBacks), &native))

	seen := map[string]map[string]bool{"canvas": {}, "pixels": {}, "audio": {}}
	for range sessions {
		in := testInput(t)
		in.Perturbation = session.Derive()
		_, p := installed(t, in)

		var got map[string]string
		require.NoError(t, p.vm.ExportTo(p.run(readBacks), &got))
		for kind, out := range got {
			assert.NotEqual(t, native[kind], out, "%s matches an unmodified browser", kind)
			seen[kind][out] = true
		}
	}

	for kind, outs := range seen {
		assert.Len(t, outs, sessions, "%s outputs repeat across sessions", kind)
	}
}

func TestNoise(t *testing.T) {
	assert.Equal(t, Noise(1, 2, 3), Noise(1, 2, 3))
	assert.NotEqual(t, Noise(1, 2, 3), Noise(1, 2, 4))
	assert.NotEqual(t, Noise(1, 2, 3), Noise(2, 2, 3))
	assert.NotEqual(t, Noise(1, 2, 3), Noise(1, 3, 3))
}
