//go:build !windows

package utils

import (
	"fmt"
	"os"
)

func HasAdminPermission() bool {
	return os.Geteuid() == 0
}

// ShowDialog has no native dialog outside Windows, the message goes to stderr.
func ShowDialog(title, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}
