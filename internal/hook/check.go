package hook

import (
	"fmt"

	"github.com/dop251/goja"
)

// Check parses the script without running it. A script that fails here
// would fail in every page it is attached to.
func Check(script string) error {
	if _, err := goja.Compile("hook.js", script, true); err != nil {
		return fmt.Errorf("hook script does not parse: %w", err)
	}
	return nil
}

// Build compiles, renders and checks the hook for one launch.
func Build(in Input) (*Spec, string, error) {
	spec, err := Compile(in)
	if err != nil {
		return nil, "", err
	}
	script, err := Render(spec)
	if err != nil {
		return nil, "", err
	}
	if err := Check(script); err != nil {
		return nil, "", err
	}
	return spec, script, nil
}
