//go:build !windows

package client

// NewEnumerator returns the native enumerator for the running platform. Window
// management is only implemented on Windows.
func NewEnumerator() WindowEnumerator {
	return NullEnumerator{}
}
