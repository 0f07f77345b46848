// Package instance assembles the per-sandbox state of a running
// application: its virtual environment and its share of the insurance
// ledger.
package instance

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/config"
	"github.com/appstract/appstract/internal/insurance"
	"github.com/appstract/appstract/internal/ledger"
	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/oc"
	"github.com/appstract/appstract/internal/sharedstore"
	"github.com/appstract/appstract/internal/vfs"
)

type options struct {
	envOpts    []vfs.Option
	ledgerOpts []ledger.Option
	store      ledger.SharedStore
	getenv     func(string) string
}

// Option configures Start.
type Option func(*options)

// WithEnvironmentOptions passes opts to vfs.New after the options derived
// from the configuration.
func WithEnvironmentOptions(opts ...vfs.Option) Option {
	return func(o *options) { o.envOpts = append(o.envOpts, opts...) }
}

// WithLedgerOptions passes opts to ledger.Open after the options derived
// from the configuration.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(o *options) { o.ledgerOpts = append(o.ledgerOpts, opts...) }
}

// WithSharedStore replaces the directory store named by ledger.store.
func WithSharedStore(s ledger.SharedStore) Option {
	return func(o *options) { o.store = s }
}

// WithGetenv replaces os.Getenv for resolving host folders.
func WithGetenv(getenv func(string) string) Option {
	return func(o *options) { o.getenv = getenv }
}

// Instance is one running sandbox.
type Instance struct {
	claim  ledger.Claim
	env    *vfs.Environment
	ledger *ledger.Ledger
}

// Start builds the virtual environment described by cfg and joins the
// insurance ledger as claim. Missing system folders are created and the
// ledger is swept; failures of either are logged and do not stop the
// instance.
func Start(ctx context.Context, cfg *config.Config, claim ledger.Claim, opts ...Option) (_ *Instance, err error) {
	ctx, span := oc.StartSpan(ctx, "instance::Start")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(
		trace.StringAttribute(logfields.Root, cfg.Environment.Root),
		trace.Int64Attribute(logfields.ProcessID, int64(claim.PID)))

	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hf, err := cfg.HostFolders(o.getenv)
	if err != nil {
		return nil, err
	}
	envOpts := append([]vfs.Option{
		vfs.WithRules(vfs.NewRuleTable(hf)),
		vfs.WithFallbackPolicy(cfg.FallbackPolicy()),
	}, o.envOpts...)
	env, err := vfs.New(cfg.Environment.Root, envOpts...)
	if err != nil {
		return nil, err
	}

	machineID, err := cfg.MachineID()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.LockTimeout()
	if err != nil {
		return nil, err
	}
	store := o.store
	if store == nil {
		store = sharedstore.NewDir(cfg.Ledger.Store)
	}
	ledgerOpts := append([]ledger.Option{ledger.WithLockTimeout(timeout)}, o.ledgerOpts...)
	l, err := ledger.Open(ctx, cfg.Ledger.Path, machineID, store, ledgerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open insurance ledger")
	}

	ctx, entry := log.SetEntry(ctx, logrus.Fields{
		logfields.Root:      env.Root(),
		logfields.MachineID: machineID,
		logfields.ProcessID: claim.PID,
	})

	if err := env.CreateSystemFolders(ctx); err != nil {
		entry.WithError(err).Warning("virtual environment is missing system folders")
	}
	if report, err := l.Sweep(ctx); err != nil {
		entry.WithError(err).Warning("failed to sweep insurance ledger")
	} else if len(report.Removed) > 0 || len(report.Failed) > 0 {
		entry.WithFields(logrus.Fields{
			logfields.Count:  len(report.Removed),
			logfields.Failed: len(report.Failed),
		}).Info("swept insurance ledger")
	}

	entry.Info("sandbox instance started")
	return &Instance{
		claim:  claim,
		env:    env,
		ledger: l,
	}, nil
}

// Environment returns the instance's virtual environment.
func (i *Instance) Environment() *vfs.Environment {
	return i.env
}

// Ledger returns the insurance ledger the instance takes part in.
func (i *Instance) Ledger() *ledger.Ledger {
	return i.ledger
}

// Claim returns the instance's claim on the ledger.
func (i *Instance) Claim() ledger.Claim {
	return i.claim
}

// IsVirtualizable reports whether p may be redirected into the sandbox.
func (i *Instance) IsVirtualizable(p string) bool {
	return i.env.IsVirtualizable(p)
}

// RedirectRequest resolves the path an intercepted file operation must use.
func (i *Instance) RedirectRequest(req vfs.FileRequest) string {
	return i.env.RedirectRequest(req)
}

// InstallShared insures and installs shared components for the instance's
// install transaction.
func (i *Instance) InstallShared(ctx context.Context, installs ...ledger.Installation) error {
	return i.ledger.Install(ctx, i.claim, installs...)
}

// Records returns the ledger's persisted records.
func (i *Instance) Records(ctx context.Context) ([]*insurance.Record, error) {
	return i.ledger.Records(ctx)
}

// Shutdown withdraws the instance from its install transaction, removing
// shared components nobody else insures. Shutting down an instance that
// never installed anything succeeds.
func (i *Instance) Shutdown(ctx context.Context) (_ *ledger.Report, err error) {
	ctx, span := oc.StartSpan(ctx, "instance::Shutdown")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()

	report, err := i.ledger.Retire(ctx, i.claim)
	if errors.Is(err, ledger.ErrRecordNotFound) {
		log.G(ctx).WithField(logfields.ProcessID, i.claim.PID).Debug("instance held no insurance")
		return &ledger.Report{}, nil
	}
	if err != nil {
		return nil, err
	}
	log.G(ctx).WithFields(logrus.Fields{
		logfields.ProcessID: i.claim.PID,
		logfields.Count:     len(report.Removed),
	}).Info("sandbox instance shut down")
	return report, nil
}
