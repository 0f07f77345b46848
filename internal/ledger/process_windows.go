//go:build windows

package ledger

import (
	"errors"

	"golang.org/x/sys/windows"
)

// STILL_ACTIVE, as returned by GetExitCodeProcess.
const stillActive = 259

// processExists reports whether a process with the given pid is running.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Protected processes cannot be opened but are still running.
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	defer windows.CloseHandle(h) //nolint:errcheck

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return true
	}
	return code == stillActive
}
