// Package vfs implements the file-system half of application virtualization:
// deciding, for every file operation a guest attempts, whether and where it
// is redirected inside an isolated virtual root.
package vfs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/oc"
	"github.com/appstract/appstract/internal/winpath"
)

// ErrNoRoot is returned when an Environment is constructed without a root.
var ErrNoRoot = errors.New("virtual environment requires a root directory")

// FolderFailure records a system folder that could not be created.
type FolderFailure struct {
	Folder VirtualFolder
	Path   string
	Err    error
}

// FolderError is returned by CreateSystemFolders when one or more folders
// could not be created. The remaining folders were still attempted.
type FolderError struct {
	Failures []FolderFailure
}

func (e *FolderError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Folder.String())
	}
	return fmt.Sprintf("failed to create %d virtual system folder(s): %s", len(e.Failures), strings.Join(names, ", "))
}

func (e *FolderError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

type options struct {
	rules  *RuleTable
	policy FallbackPolicy
	fs     FileSystem
	wd     string
}

// Option configures an Environment.
type Option func(*options)

// WithRules replaces the redirection rules derived from the host
// environment variables.
func WithRules(rules *RuleTable) Option {
	return func(o *options) { o.rules = rules }
}

// WithFallbackPolicy replaces DefaultFallbackPolicy.
func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithFileSystem replaces the host file system used for probing and for
// creating folders.
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithWorkingDir sets the directory a relative root is resolved against.
func WithWorkingDir(wd string) Option {
	return func(o *options) { o.wd = wd }
}

// Environment owns a virtual root and the Virtualizer redirecting into it.
// The root is normalized once, at construction, and never re-derived.
type Environment struct {
	root string
	fs   FileSystem
	v    *Virtualizer
}

// New returns an Environment rooted at root. A relative root is resolved
// against the working directory; the result is lower-cased.
func New(root string, opts ...Option) (*Environment, error) {
	if root == "" {
		return nil, ErrNoRoot
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = HostFileSystem{}
	}
	if o.rules == nil {
		o.rules = NewRuleTable(DefaultHostFolders(os.Getenv))
	}
	if !winpath.IsAbs(root) && o.wd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve relative virtual root")
		}
		o.wd = wd
	}
	root = strings.ToLower(winpath.Abs(root, o.wd))
	return &Environment{
		root: root,
		fs:   o.fs,
		v:    NewVirtualizer(root, o.rules, o.policy, o.fs),
	}, nil
}

// Root returns the normalized virtual root.
func (e *Environment) Root() string {
	return e.root
}

// FullPath joins a path relative to the virtual root to the root.
func (e *Environment) FullPath(relative string) string {
	return winpath.Join(e.root, relative)
}

// IsVirtualizable reports whether p may be redirected into this environment.
func (e *Environment) IsVirtualizable(p string) bool {
	return e.v.Classify(p) == Virtualizable
}

// RedirectRequest resolves the path an intercepted file operation must use.
func (e *Environment) RedirectRequest(req FileRequest) string {
	return e.v.Redirect(req)
}

// CreateSystemFolders makes sure every VirtualFolder exists below the root.
// A failure is logged and the remaining folders are still attempted; the
// returned error is a *FolderError listing every folder that failed, or nil
// when all of them exist.
func (e *Environment) CreateSystemFolders(ctx context.Context) (err error) {
	ctx, span := oc.StartSpan(ctx, "vfs::CreateSystemFolders")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(trace.StringAttribute(logfields.Root, e.root))

	log.G(ctx).WithField(logfields.Root, e.root).Debug("creating virtual system folders")

	var failures []FolderFailure
	for _, f := range AllFolders {
		p := e.FullPath(f.Path())
		if mkErr := e.fs.MkdirAll(p, 0o755); mkErr != nil {
			log.G(ctx).WithFields(logrus.Fields{
				logfields.Folder: f.String(),
				logfields.Path:   p,
				logrus.ErrorKey:  mkErr,
			}).Error("failed to create virtual system folder")
			failures = append(failures, FolderFailure{Folder: f, Path: p, Err: mkErr})
		}
	}
	if len(failures) > 0 {
		return &FolderError{Failures: failures}
	}
	return nil
}
