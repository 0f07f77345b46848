package vfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"
)

// memFS is an in-memory FileSystem keyed by lower-cased Windows paths.
// Paths passed to newMemFS are files; MkdirAll creates directories.
type memFS struct {
	entries map[string]bool // path -> is directory
	fail    map[string]error
	mkdirs  []string
}

func newMemFS(paths ...string) *memFS {
	m := &memFS{entries: map[string]bool{}, fail: map[string]error{}}
	for _, p := range paths {
		m.entries[strings.ToLower(p)] = false
	}
	return m
}

type memInfo struct {
	name string
	dir  bool
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return 0 }
func (i memInfo) Mode() fs.FileMode  { return 0o644 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return i.dir }
func (i memInfo) Sys() interface{}   { return nil }

func (m *memFS) Stat(name string) (os.FileInfo, error) {
	if dir, ok := m.entries[strings.ToLower(name)]; ok {
		return memInfo{name: name, dir: dir}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *memFS) MkdirAll(path string, perm os.FileMode) error {
	m.mkdirs = append(m.mkdirs, path)
	if err, ok := m.fail[strings.ToLower(path)]; ok {
		return err
	}
	m.entries[strings.ToLower(path)] = true
	return nil
}

func noEnv(string) string { return "" }

func newTestEnvironment(t *testing.T, fsys *memFS, opts ...Option) *Environment {
	t.Helper()
	opts = append([]Option{
		WithFileSystem(fsys),
		WithRules(NewRuleTable(DefaultHostFolders(noEnv))),
	}, opts...)
	env, err := New(`C:\Sandbox\App1`, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func assertPath(t *testing.T, expected, actual string) {
	t.Helper()
	if !strings.EqualFold(expected, actual) {
		t.Fatalf("expected %s, got %s", expected, actual)
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrNoRoot) {
		t.Fatalf("expected ErrNoRoot, got %v", err)
	}
}

func TestNewNormalizesRoot(t *testing.T) {
	tests := []struct {
		root, wd, expected string
	}{
		{`C:\Sandbox\App1`, "", `c:\sandbox\app1`},
		{`C:\Sandbox\App1\`, "", `c:\sandbox\app1`},
		{`Sandbox\App1`, `D:\Work`, `d:\work\sandbox\app1`},
		{`\Sandbox`, `D:\Work`, `d:\sandbox`},
	}
	for _, tt := range tests {
		env, err := New(tt.root, WithWorkingDir(tt.wd), WithFileSystem(newMemFS()))
		if err != nil {
			t.Fatal(err)
		}
		if env.Root() != tt.expected {
			t.Errorf("New(%q).Root() = %q, want %q", tt.root, env.Root(), tt.expected)
		}
	}
}

func TestIsVirtualizable(t *testing.T) {
	env := newTestEnvironment(t, newMemFS())
	tests := map[string]bool{
		`C:\Users\Me\doc.txt`:           true,
		`relative.txt`:                  true,
		`\\.\C:\`:                       true,
		`\\.\D:\data`:                   true,
		`\\.\C:`:                        false,
		`\\.\PhysicalDrive0`:            false,
		`\\.\pipe\foo`:                  false,
		`\\.\COM1`:                      false,
		`\\\\.\\Tape0`:                  false,
		`CONIN$`:                        false,
		`conout$`:                       false,
		`C:\Sandbox\App1`:               false,
		`c:\SANDBOX\app1\windows\x.dll`: false,
		`\\?\C:\Sandbox\App1\x`:         false,
		`C:\Sandbox\App10\x`:            false,
		``:                              false,
	}
	for p, expected := range tests {
		if actual := env.IsVirtualizable(p); actual != expected {
			t.Errorf("IsVirtualizable(%q) = %v, want %v", p, actual, expected)
		}
	}
}

func TestRedirectLibraryMissingFallsBackToHost(t *testing.T) {
	env := newTestEnvironment(t, newMemFS())
	req := FileRequest{Path: `C:\Windows\System32\foo.dll`, Kind: ResourceLibrary}
	assertPath(t, `C:\Windows\System32\foo.dll`, env.RedirectRequest(req))
}

func TestRedirectCreateNewIgnoresExistence(t *testing.T) {
	env := newTestEnvironment(t, newMemFS())
	req := FileRequest{Path: `C:\Users\Me\doc.txt`, Kind: ResourceFile, Disposition: CreateNew}
	assertPath(t, `C:\Sandbox\App1\Users\Me\doc.txt`, env.RedirectRequest(req))
}

func TestRedirectExistingTarget(t *testing.T) {
	fsys := newMemFS(`c:\sandbox\app1\windows\system32\foo.dll`)
	env := newTestEnvironment(t, fsys)
	for _, req := range []FileRequest{
		{Path: `C:\Windows\System32\foo.dll`, Kind: ResourceLibrary},
		{Path: `C:\Windows\System32\foo.dll`, Kind: ResourceFile, Disposition: OpenExisting},
		{Path: `c:\windows\system32\FOO.dll`, Kind: ResourceFile},
	} {
		assertPath(t, `C:\Sandbox\App1\windows\system32\foo.dll`, env.RedirectRequest(req))
	}
}

func TestRedirectExistingDirectoryFallsBackToHost(t *testing.T) {
	ctx := context.Background()
	fsys := newMemFS()
	env := newTestEnvironment(t, fsys)
	if err := env.CreateSystemFolders(ctx); err != nil {
		t.Fatal(err)
	}
	req := FileRequest{Path: `C:\Windows\System32`, Kind: ResourceFile, Disposition: OpenExisting}
	assertPath(t, `C:\Windows\System32`, env.RedirectRequest(req))
}

func TestRedirectRules(t *testing.T) {
	fsys := newMemFS()
	env := newTestEnvironment(t, fsys)
	tests := []struct {
		path, expected string
	}{
		{`C:\Windows\System32\drivers\etc\hosts`, `c:\sandbox\app1\windows\system32\drivers\etc\hosts`},
		{`C:\Windows\win.ini`, `c:\sandbox\app1\windows\win.ini`},
		{`C:\Program Files (x86)\App\app.exe`, `c:\sandbox\app1\programfilesx86\App\app.exe`},
		{`C:\Program Files\Common Files\x.dll`, `c:\sandbox\app1\programfiles\common files\x.dll`},
		{`C:\WindowsApps\x`, `c:\sandbox\app1\WindowsApps\x`},
		{`\\?\C:\Windows\x`, `c:\sandbox\app1\windows\x`},
		{`\\srv\share\x.txt`, `c:\sandbox\app1\unc\srv\share\x.txt`},
		{`D:\data\x.txt`, `c:\sandbox\app1\data\x.txt`},
	}
	for _, tt := range tests {
		actual := env.RedirectRequest(FileRequest{Path: tt.path, Disposition: CreateAlways})
		if !strings.EqualFold(tt.expected, actual) {
			t.Errorf("redirect %q: expected %q, got %q", tt.path, tt.expected, actual)
		}
	}
}

func TestRedirectIdempotent(t *testing.T) {
	env := newTestEnvironment(t, newMemFS())
	for _, p := range []string{`C:\Users\Me\doc.txt`, `C:\Windows\System32\x.dll`, `\\.\pipe\p`} {
		req := FileRequest{Path: p, Disposition: CreateNew}
		once := env.RedirectRequest(req)
		req.Path = once
		if twice := env.RedirectRequest(req); twice != once {
			t.Errorf("redirecting %q twice: %q then %q", p, once, twice)
		}
	}
}

func TestRedirectNotVirtualizablePassesThrough(t *testing.T) {
	env := newTestEnvironment(t, newMemFS())
	for _, p := range []string{`CONOUT$`, `\\.\PhysicalDrive1`, `C:\Sandbox\App1\x`, `C:\Sandbox\App10\x`} {
		if actual := env.RedirectRequest(FileRequest{Path: p, Disposition: CreateAlways}); actual != p {
			t.Errorf("expected %q to pass through, got %q", p, actual)
		}
	}
}

func TestRedirectUnspecifiedDisposition(t *testing.T) {
	req := FileRequest{Path: `C:\Users\Me\new.txt`}

	env := newTestEnvironment(t, newMemFS())
	assertPath(t, `C:\Users\Me\new.txt`, env.RedirectRequest(req))

	strict := newTestEnvironment(t, newMemFS(), WithFallbackPolicy(StrictFallbackPolicy))
	assertPath(t, `C:\Sandbox\App1\Users\Me\new.txt`, strict.RedirectRequest(req))
}

func TestFallbackPolicies(t *testing.T) {
	tests := []struct {
		req    FileRequest
		def    bool
		strict bool
	}{
		{FileRequest{Kind: ResourceLibrary, Disposition: CreateNew}, false, false},
		{FileRequest{Kind: ResourceLibrary}, false, false},
		{FileRequest{Disposition: OpenExisting}, false, false},
		{FileRequest{Disposition: DispositionUnspecified}, false, true},
		{FileRequest{Disposition: CreateNew}, true, true},
		{FileRequest{Disposition: CreateAlways}, true, true},
		{FileRequest{Disposition: OpenAlways}, true, true},
		{FileRequest{Disposition: TruncateExisting}, true, true},
	}
	for _, tt := range tests {
		if got := DefaultFallbackPolicy(tt.req); got != tt.def {
			t.Errorf("DefaultFallbackPolicy(%s, %s) = %v", tt.req.Kind, tt.req.Disposition, got)
		}
		if got := StrictFallbackPolicy(tt.req); got != tt.strict {
			t.Errorf("StrictFallbackPolicy(%s, %s) = %v", tt.req.Kind, tt.req.Disposition, got)
		}
	}
}

func TestCreateSystemFolders(t *testing.T) {
	fsys := newMemFS()
	env := newTestEnvironment(t, fsys)
	if err := env.CreateSystemFolders(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, f := range AllFolders {
		if _, err := fsys.Stat(env.FullPath(f.Path())); err != nil {
			t.Errorf("folder %s was not created", f)
		}
	}
}

func TestCreateSystemFoldersContinuesAfterFailure(t *testing.T) {
	fsys := newMemFS()
	denied := errors.New("access denied")
	fsys.fail[`c:\sandbox\app1\programdata`] = denied
	env := newTestEnvironment(t, fsys)

	err := env.CreateSystemFolders(context.Background())
	var folderErr *FolderError
	if !errors.As(err, &folderErr) {
		t.Fatalf("expected *FolderError, got %v", err)
	}
	if len(folderErr.Failures) != 1 || folderErr.Failures[0].Folder != FolderProgramData {
		t.Fatalf("unexpected failures: %+v", folderErr.Failures)
	}
	if !errors.Is(err, denied) {
		t.Fatalf("expected error to wrap %v", denied)
	}
	if len(fsys.mkdirs) != len(AllFolders) {
		t.Fatalf("expected %d folder attempts, got %d", len(AllFolders), len(fsys.mkdirs))
	}
}

func TestRuleTableLongestPrefix(t *testing.T) {
	table := NewRuleTableFromRules(
		Rule{Host: `C:\Windows`, Virtual: `windows`},
		Rule{Host: `C:\Windows\System32`, Virtual: `sys`},
		Rule{Host: `relative`, Virtual: `ignored`},
	)
	if n := len(table.Rules()); n != 2 {
		t.Fatalf("expected 2 rules, got %d", n)
	}
	if got := table.Rewrite(`c:\windows\system32\x.dll`); got != `sys\x.dll` {
		t.Fatalf("expected sys\\x.dll, got %s", got)
	}
	if got := table.Rewrite(`C:\Windows\System\x.dll`); got != `windows\System\x.dll` {
		t.Fatalf("expected windows\\System\\x.dll, got %s", got)
	}
	if got := table.Rewrite(`C:\Windows`); got != `windows` {
		t.Fatalf("expected windows, got %s", got)
	}
}

func TestDefaultHostFolders(t *testing.T) {
	env := map[string]string{
		"SystemRoot": `D:\WINNT`,
		"APPDATA":    `C:\Users\Me\AppData\Roaming`,
	}
	hf := DefaultHostFolders(func(k string) string { return env[k] })
	if hf[FolderSystem] != `D:\WINNT\System32` {
		t.Errorf("unexpected system folder %q", hf[FolderSystem])
	}
	if hf[FolderUserAppData] != env["APPDATA"] {
		t.Errorf("unexpected appdata folder %q", hf[FolderUserAppData])
	}
	if _, ok := hf[FolderTemporary]; ok {
		t.Error("expected temp folder to be unmapped without TEMP")
	}
	for _, f := range AllFolders {
		if parsed, err := ParseFolder(f.String()); err != nil || parsed != f {
			t.Errorf("ParseFolder(%q) = %v, %v", f.String(), parsed, err)
		}
	}
}
