//go:build windows

package client

import (
	"errors"
	"sync"
	"syscall"
	"unsafe"

	"github.com/darkepoch/mubot/internal/utils/winproc"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

type windowsEnumerator struct{}

// NewEnumerator returns the native enumerator for the running platform.
func NewEnumerator() WindowEnumerator {
	return windowsEnumerator{}
}

// The runtime caps the number of callbacks a process may create, so the
// enumeration callback is built once and collects into a package buffer.
var (
	enumMu       sync.Mutex
	enumFound    []WindowInfo
	enumCallback = syscall.NewCallback(enumWindowProc)
)

func enumWindowProc(h win.HWND, _ uintptr) uintptr {
	if !win.IsWindowVisible(h) {
		return 1 // continue enumeration
	}
	title := windowText(h)
	if title == "" {
		return 1
	}
	var r win.RECT
	if !win.GetWindowRect(h, &r) {
		return 1
	}
	var pid uint32
	_ = win.GetWindowThreadProcessId(h, &pid)

	enumFound = append(enumFound, WindowInfo{
		ID:    ID(h),
		PID:   int(pid),
		Title: title,
		Rect:  fromRECT(r),
	})
	return 1
}

func (windowsEnumerator) Windows() ([]WindowInfo, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumFound = nil
	err := windows.EnumWindows(enumCallback, nil)
	found := enumFound
	enumFound = nil
	if err != nil {
		return nil, err
	}

	return found, nil
}

func (windowsEnumerator) Focus(id ID) error {
	h := win.HWND(id)
	if !win.IsWindow(h) {
		return errors.New("window no longer exists")
	}
	if minimized, _, _ := winproc.IsIconic.Call(uintptr(h)); minimized != 0 {
		win.ShowWindow(h, win.SW_RESTORE)
	}
	winproc.AllowSetForeground.Call(uintptr(windows.GetCurrentProcessId()))
	if !win.SetForegroundWindow(h) {
		return errors.New("SetForegroundWindow refused")
	}
	return nil
}

func (windowsEnumerator) Rect(id ID) (Rect, error) {
	var r win.RECT
	ret, _, err := winproc.GetWindowRect.Call(uintptr(id), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return DefaultRect, err
	}
	return fromRECT(r), nil
}

func (windowsEnumerator) Move(id ID, r Rect) error {
	if !win.SetWindowPos(win.HWND(id), win.HWND_TOP, int32(r.Left), int32(r.Top), int32(r.Width()), int32(r.Height()), win.SWP_SHOWWINDOW) {
		return errors.New("SetWindowPos failed")
	}
	return nil
}

func (windowsEnumerator) ScreenSize() (int, int, error) {
	w := win.GetSystemMetrics(win.SM_CXSCREEN)
	h := win.GetSystemMetrics(win.SM_CYSCREEN)
	if w == 0 || h == 0 {
		return 0, 0, errors.New("could not read screen size")
	}
	return int(w), int(h), nil
}

func windowText(h win.HWND) string {
	length, _, _ := winproc.GetWindowTextLength.Call(uintptr(h))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	_, _, _ = winproc.GetWindowText.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	return syscall.UTF16ToString(buf)
}

func fromRECT(r win.RECT) Rect {
	return Rect{Left: int(r.Left), Top: int(r.Top), Right: int(r.Right), Bottom: int(r.Bottom)}
}
