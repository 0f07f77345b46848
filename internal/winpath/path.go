// Package winpath provides lexical helpers for Windows-style paths.
//
// The virtualization core reasons about paths intercepted from a Windows
// guest, so these helpers always use Windows semantics (backslash separator,
// drive letters, UNC and device prefixes, case-insensitive comparison)
// regardless of the OS the code is built for. Nothing in this package
// touches the file system.
package winpath

import (
	"path"
	"strings"
)

const (
	// Separator is the canonical path separator.
	Separator = '\\'

	// DevicePrefix opens the Win32 device namespace (`\\.\`).
	DevicePrefix = `\\.\`
	// LongPathPrefix disables Win32 path normalization (`\\?\`).
	LongPathPrefix = `\\?\`
)

// IsSeparator reports whether c is a Windows path separator.
func IsSeparator(c byte) bool {
	return c == '\\' || c == '/'
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// IsDriveVolumeDevice reports whether p opens the file system of a drive
// letter through the device or long-path namespace, e.g. `\\.\C:\` or
// `\\?\C:\`.
func IsDriveVolumeDevice(p string) bool {
	return len(p) >= 7 &&
		(strings.HasPrefix(p, DevicePrefix) || strings.HasPrefix(p, LongPathPrefix)) &&
		isLetter(p[4]) && p[5] == ':' && IsSeparator(p[6])
}

// VolumeName returns the leading volume designator of p: `C:` for a drive
// letter, `\\.\C:` or `\\?\C:` for a device-qualified drive, or
// `\\server\share` for a UNC path. Relative and root-relative paths have no
// volume.
func VolumeName(p string) string {
	return p[:volumeNameLen(p)]
}

func volumeNameLen(p string) int {
	switch {
	case len(p) >= 2 && isLetter(p[0]) && p[1] == ':':
		return 2
	case len(p) >= 6 && IsSeparator(p[0]) && IsSeparator(p[1]) &&
		(p[2] == '.' || p[2] == '?') && IsSeparator(p[3]) && isLetter(p[4]) && p[5] == ':':
		return 6
	case len(p) >= 3 && IsSeparator(p[0]) && IsSeparator(p[1]) && !IsSeparator(p[2]) && p[2] != '.' && p[2] != '?':
		// \\server\share
		n := 3
		for n < len(p) && !IsSeparator(p[n]) {
			n++
		}
		if n == len(p) {
			return n
		}
		n++
		for n < len(p) && !IsSeparator(p[n]) {
			n++
		}
		return n
	}
	return 0
}

// IsUNC reports whether p is a `\\server\share` path.
func IsUNC(p string) bool {
	return volumeNameLen(p) > 2 && p[2] != '.' && p[2] != '?'
}

// IsAbs reports whether p is fully qualified: a drive letter followed by a
// separator, a device-qualified drive, or a UNC path.
func IsAbs(p string) bool {
	n := volumeNameLen(p)
	switch {
	case n == 0:
		return false
	case n == 2:
		return len(p) > 2 && IsSeparator(p[2])
	default:
		return true
	}
}

// Clean returns the shortest equivalent of p using backslash separators,
// resolving `.` and `..` lexically. The volume designator is preserved as
// written, and a trailing separator is kept only for a volume root.
func Clean(p string) string {
	if p == "" {
		return ""
	}
	vol := VolumeName(p)
	rest := strings.ReplaceAll(p[len(vol):], `\`, `/`)
	if rest != "" {
		rest = path.Clean(rest)
		if rest == "." {
			rest = ""
		}
	}
	if vol != "" && len(vol) > 2 && rest == "" {
		// \\server\share and \\.\C: are roots in their own right.
		return vol
	}
	return vol + strings.ReplaceAll(rest, `/`, `\`)
}

// Join joins any number of path elements with the Windows separator and
// cleans the result. Empty elements are ignored.
func Join(elem ...string) string {
	var parts []string
	for _, e := range elem {
		if e != "" {
			parts = append(parts, e)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return Clean(strings.Join(parts, `\`))
}

// Abs makes p fully qualified against the working directory wd, following
// the Win32 rules: a root-relative path takes wd's volume, anything else
// relative is joined to wd.
func Abs(p, wd string) string {
	switch {
	case IsAbs(p):
		return Clean(p)
	case p != "" && IsSeparator(p[0]):
		return Clean(VolumeName(wd) + p)
	case volumeNameLen(p) == 2:
		// Drive-relative (`C:foo`); resolve against the drive root.
		return Clean(p[:2] + `\` + p[2:])
	default:
		return Join(wd, p)
	}
}

// Canonical cleans p and drops a `\\?\` or `\\.\` prefix in front of a drive
// letter, so that `\\?\C:\Windows` and `C:\Windows` compare equal.
func Canonical(p string) string {
	if IsDriveVolumeDevice(p) {
		p = p[4:]
	}
	return Clean(p)
}

// HasPrefixFold reports whether p lies at or below prefix, comparing
// case-insensitively and only on path-component boundaries.
func HasPrefixFold(p, prefix string) bool {
	if prefix == "" || len(p) < len(prefix) {
		return false
	}
	if !strings.EqualFold(p[:len(prefix)], prefix) {
		return false
	}
	return len(p) == len(prefix) ||
		IsSeparator(prefix[len(prefix)-1]) ||
		IsSeparator(p[len(prefix)])
}

// TrimPrefixFold removes prefix from p when HasPrefixFold holds and returns
// the remainder without leading separators.
func TrimPrefixFold(p, prefix string) (string, bool) {
	if !HasPrefixFold(p, prefix) {
		return p, false
	}
	return strings.TrimLeft(p[len(prefix):], `\/`), true
}

// Relative turns a path into one relative to "its" root so it can be
// re-rooted elsewhere. Drive and device volumes are dropped, UNC shares are
// kept below a `unc` directory, and relative paths are cleaned as if rooted,
// so the result never starts with `..`.
func Relative(p string) string {
	p = Canonical(p)
	vol := VolumeName(p)
	rest := path.Clean("/" + strings.ReplaceAll(p[len(vol):], `\`, `/`))
	rest = strings.ReplaceAll(strings.TrimLeft(rest, "/"), `/`, `\`)
	if IsUNC(vol) {
		return Join("unc", strings.TrimLeft(vol, `\/`), rest)
	}
	return rest
}
