//go:build windows

package main

import "github.com/darkepoch/mubot/internal/utils/winproc"

// setDPIAware makes window geometry and captures use physical pixels.
func setDPIAware() {
	winproc.SetProcessDpiAware.Call()
}
