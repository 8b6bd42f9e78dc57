//go:build windows

package client

import "testing"

// Each enumeration must reuse the same callback: the runtime aborts the
// process once too many distinct callbacks have been created.
func TestWindowsEnumerationReusesCallback(t *testing.T) {
	enum := NewEnumerator()
	for i := 0; i < 2500; i++ {
		if _, err := enum.Windows(); err != nil {
			t.Fatalf("enumeration %d failed: %v", i, err)
		}
	}
}
