// Package winproc exposes the raw user32 procedures the client registry needs
// that are not wrapped by lxn/win.
package winproc
