package vfs

import "os"

// FileSystem is the part of the host file system the virtualization core
// touches: a read-only existence probe and directory creation.
type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
}

// HostFileSystem is the FileSystem backed by the os package.
type HostFileSystem struct{}

var _ FileSystem = HostFileSystem{}

func (HostFileSystem) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (HostFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

// exists reports whether p names a file. Directories do not count.
func exists(fs FileSystem, p string) bool {
	fi, err := fs.Stat(p)
	return err == nil && !fi.IsDir()
}
