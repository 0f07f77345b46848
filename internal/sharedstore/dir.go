// Package sharedstore implements the host-wide store that shared components
// are installed into.
package sharedstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/oc"
)

// Dir is a shared store laid out like the assembly cache:
//
//	<root>/<name>/<version>_<culture>_<token>/<file>
//
// Dir performs no locking of its own; callers coordinate through the
// insurance ledger.
type Dir struct {
	root string
}

// NewDir returns a store rooted at root. The directory is created on first
// install.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the store directory.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the directory holding component id.
func (d *Dir) Path(id component.ID) string {
	culture := id.Culture
	if culture == "" {
		culture = "neutral"
	}
	return filepath.Join(d.root, id.Name, id.Version+"_"+culture+"_"+id.PublicKeyToken)
}

// Install copies source into the component's directory. The copy is written
// to a temporary file and renamed into place, so a concurrent reader never
// sees a partial file.
func (d *Dir) Install(ctx context.Context, id component.ID, source string) (err error) {
	ctx, span := oc.StartSpan(ctx, "sharedstore::Install")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(
		trace.StringAttribute(logfields.Component, id.String()),
		trace.StringAttribute(logfields.File, source))

	if err := id.Validate(); err != nil {
		return err
	}
	dir := d.Path(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create store directory for %s", id)
	}

	src, err := os.Open(source)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", source)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".install-*")
	if err != nil {
		return errors.Wrapf(err, "failed to stage %s", id)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, src); err != nil {
		return errors.Wrapf(err, "failed to copy %s into the store", source)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to flush %s", tmp.Name())
	}
	target := filepath.Join(dir, filepath.Base(source))
	if err = os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrapf(err, "failed to install %s", target)
	}

	log.G(ctx).WithFields(logrus.Fields{
		logfields.Component: id,
		logfields.Path:      target,
	}).Debug("installed shared component")
	return nil
}

// Remove deletes component id from the store. Removing a component that is
// not installed succeeds.
func (d *Dir) Remove(ctx context.Context, id component.ID) (err error) {
	ctx, span := oc.StartSpan(ctx, "sharedstore::Remove")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(trace.StringAttribute(logfields.Component, id.String()))

	if err := id.Validate(); err != nil {
		return err
	}
	dir := d.Path(id)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "failed to remove %s", id)
	}
	// The name directory is shared between versions; drop it once empty.
	if err := os.Remove(filepath.Dir(dir)); err != nil && !os.IsNotExist(err) {
		log.G(ctx).WithError(err).WithField(logfields.Path, filepath.Dir(dir)).Trace("keeping component name directory")
	}

	log.G(ctx).WithField(logfields.Component, id).Debug("removed shared component")
	return nil
}

// Has reports whether component id is installed.
func (d *Dir) Has(id component.ID) bool {
	fi, err := os.Stat(d.Path(id))
	return err == nil && fi.IsDir()
}

// List returns the directories of every installed component, relative to
// the store root.
func (d *Dir) List() ([]string, error) {
	names, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shared store")
	}
	var out []string
	for _, n := range names {
		if !n.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(d.root, n.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", n.Name())
		}
		for _, v := range versions {
			if v.IsDir() {
				out = append(out, filepath.Join(n.Name(), v.Name()))
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
