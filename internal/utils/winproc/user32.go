//go:build windows

package winproc

import "golang.org/x/sys/windows"

var (
	USER32              = windows.NewLazySystemDLL("user32.dll")
	IsIconic            = USER32.NewProc("IsIconic")
	SetProcessDpiAware  = USER32.NewProc("SetProcessDPIAware")
	GetWindowRect       = USER32.NewProc("GetWindowRect")
	GetWindowText       = USER32.NewProc("GetWindowTextW")
	GetWindowTextLength = USER32.NewProc("GetWindowTextLengthW")
	AllowSetForeground  = USER32.NewProc("AllowSetForegroundWindow")
)
