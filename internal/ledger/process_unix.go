//go:build !windows

package ledger

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processExists reports whether a process with the given pid is running.
// A process we may not signal still exists.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
