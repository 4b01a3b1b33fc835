package hook

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed js/wrapper.js
var wrapperJS string

//go:embed js/runtime.js
var runtimeJS string

//go:embed js/navigator.js
var navigatorJS string

//go:embed js/screen.js
var screenJS string

//go:embed js/webgl.js
var webglJS string

//go:embed js/canvas.js
var canvasJS string

//go:embed js/audio.js
var audioJS string

// Render serializes s into a single self-contained script. The
// runtime snippet must come first: it holds the install guard and the
// helpers the override snippets use.
func Render(s *Spec) (string, error) {
	if s == nil {
		return "", fmt.Errorf("rendering hook: nil spec")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshaling hook spec: %w", err)
	}

	body := strings.Join([]string{
		runtimeJS,
		navigatorJS,
		screenJS,
		webglJS,
		canvasJS,
		audioJS,
	}, "\n")

	r := strings.NewReplacer(
		"__BODY__", body,
		"__SPEC__", string(data),
	)
	return r.Replace(wrapperJS), nil
}
