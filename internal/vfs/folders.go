package vfs

import (
	"fmt"
	"strings"

	"github.com/appstract/appstract/internal/winpath"
)

// VirtualFolder is one of the well-known system folders that must exist
// under every virtual root.
type VirtualFolder int

const (
	FolderWindows VirtualFolder = iota
	FolderSystem
	FolderSystemX86
	FolderProgramFiles
	FolderProgramFilesX86
	FolderCommonProgramFiles
	FolderProgramData
	FolderUserAppData
	FolderUserLocalAppData
	FolderTemporary
)

// AllFolders lists every VirtualFolder in bootstrap order; parents come
// before their children.
var AllFolders = []VirtualFolder{
	FolderWindows,
	FolderSystem,
	FolderSystemX86,
	FolderProgramFiles,
	FolderProgramFilesX86,
	FolderCommonProgramFiles,
	FolderProgramData,
	FolderUserAppData,
	FolderUserLocalAppData,
	FolderTemporary,
}

var folderInfo = map[VirtualFolder]struct {
	name    string
	virtual string
}{
	FolderWindows:            {"windows", `windows`},
	FolderSystem:             {"system", `windows\system32`},
	FolderSystemX86:          {"system-x86", `windows\syswow64`},
	FolderProgramFiles:       {"program-files", `programfiles`},
	FolderProgramFilesX86:    {"program-files-x86", `programfilesx86`},
	FolderCommonProgramFiles: {"common-program-files", `programfiles\common files`},
	FolderProgramData:        {"program-data", `programdata`},
	FolderUserAppData:        {"user-appdata", `userdata\appdata\roaming`},
	FolderUserLocalAppData:   {"user-local-appdata", `userdata\appdata\local`},
	FolderTemporary:          {"temp", `temp`},
}

func (f VirtualFolder) String() string {
	if i, ok := folderInfo[f]; ok {
		return i.name
	}
	return fmt.Sprintf("VirtualFolder(%d)", int(f))
}

// Path returns the folder's location relative to the virtual root.
func (f VirtualFolder) Path() string {
	return folderInfo[f].virtual
}

// ParseFolder maps a folder name, as returned by String, back to its value.
func ParseFolder(name string) (VirtualFolder, error) {
	for _, f := range AllFolders {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown virtual folder %q", name)
}

// HostFolders maps each virtual folder to its location on the host.
type HostFolders map[VirtualFolder]string

// DefaultHostFolders resolves the host locations from the environment, using
// the stock Windows locations where a machine-wide variable is unset.
// Per-user folders are only mapped when their variable is set.
func DefaultHostFolders(getenv func(string) string) HostFolders {
	or := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	windows := or("SystemRoot", or("windir", `C:\Windows`))
	programFiles := or("ProgramFiles", `C:\Program Files`)
	hf := HostFolders{
		FolderWindows:            windows,
		FolderSystem:             winpath.Join(windows, "System32"),
		FolderSystemX86:          winpath.Join(windows, "SysWOW64"),
		FolderProgramFiles:       programFiles,
		FolderProgramFilesX86:    or("ProgramFiles(x86)", `C:\Program Files (x86)`),
		FolderCommonProgramFiles: or("CommonProgramFiles", winpath.Join(programFiles, "Common Files")),
		FolderProgramData:        or("ProgramData", `C:\ProgramData`),
	}
	for f, key := range map[VirtualFolder]string{
		FolderUserAppData:      "APPDATA",
		FolderUserLocalAppData: "LOCALAPPDATA",
		FolderTemporary:        "TEMP",
	} {
		if v := getenv(key); v != "" {
			hf[f] = v
		}
	}
	return hf
}
