package cmd

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/stupside/facet/internal/launcher"
)

var (
	success = color.New(color.FgHiGreen)
	failure = color.New(color.FgHiRed)
	warning = color.New(color.FgHiYellow)
	label   = color.New(color.FgHiWhite, color.Bold)
	muted   = color.New(color.FgHiBlack)
)

func printResult(r launcher.OpenResult) {
	if !r.Success {
		fmt.Printf("%s %s: %s\n", failure.Sprint("✗"), label.Sprint(r.Profile), r.Message)
		return
	}
	fmt.Printf("%s %s\n", success.Sprint("✓"), r.Message)
	if fp := r.Fingerprints; fp != nil {
		fmt.Printf("  %s %s\n", muted.Sprint("session   "), fp.SessionID)
		fmt.Printf("  %s %s\n", muted.Sprint("resolution"), fp.Resolution)
		fmt.Printf("  %s %s\n", muted.Sprint("canvas    "), fp.CanvasHash)
		fmt.Printf("  %s %s\n", muted.Sprint("webgl     "), fp.WebGLHash)
		fmt.Printf("  %s %s\n", muted.Sprint("audio     "), fp.AudioHash)
		fmt.Printf("  %s %s\n", muted.Sprint("renderer  "), fp.WebGLRenderer)
	}
	for _, w := range r.Warnings {
		fmt.Printf("  %s %s\n", warning.Sprint("!"), w)
	}
}
