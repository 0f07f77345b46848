package vfs

import "fmt"

// ResourceKind tells what the intercepted operation is going to do with the
// target.
type ResourceKind int

const (
	// ResourceFile is an ordinary file or directory access.
	ResourceFile ResourceKind = iota
	// ResourceLibrary is a shared-library load.
	ResourceLibrary
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceFile:
		return "file"
	case ResourceLibrary:
		return "library"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

// Disposition is the creation disposition of the intercepted call. The
// values match the Win32 CreateFile constants; zero means the caller never
// set one.
type Disposition uint32

const (
	DispositionUnspecified Disposition = 0
	CreateNew              Disposition = 1
	CreateAlways           Disposition = 2
	OpenExisting           Disposition = 3
	OpenAlways             Disposition = 4
	TruncateExisting       Disposition = 5
)

func (d Disposition) String() string {
	switch d {
	case DispositionUnspecified:
		return "unspecified"
	case CreateNew:
		return "create-new"
	case CreateAlways:
		return "create-always"
	case OpenExisting:
		return "open-existing"
	case OpenAlways:
		return "open-always"
	case TruncateExisting:
		return "truncate-existing"
	default:
		return fmt.Sprintf("Disposition(%d)", uint32(d))
	}
}

// ParseDisposition accepts the names returned by [Disposition.String].
func ParseDisposition(s string) (Disposition, error) {
	for d := DispositionUnspecified; d <= TruncateExisting; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return DispositionUnspecified, fmt.Errorf("unknown creation disposition %q", s)
}

// FileRequest is a single file-system operation handed over by the
// interception layer.
type FileRequest struct {
	Path        string
	Kind        ResourceKind
	Disposition Disposition
}
