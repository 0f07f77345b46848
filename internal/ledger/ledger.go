package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/insurance"
	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/oc"
)

var (
	// ErrRecordNotFound is returned when no record exists for a claim.
	ErrRecordNotFound = errors.New("insurance record not found")

	errNoMachineID = errors.New("ledger requires a machine id")
	errNoStore     = errors.New("ledger requires a shared store")
)

const (
	// DefaultLockTimeout bounds how long an operation waits for another
	// process to release the ledger.
	DefaultLockTimeout = 10 * time.Second

	// lockAttemptTimeout is how long a single open waits on the file lock
	// before backing off.
	lockAttemptTimeout = 100 * time.Millisecond
)

// Claim identifies one sandbox instance taking part in an install
// transaction: the transaction's creation time and the instance's process.
type Claim struct {
	CreatedAt time.Time
	PID       int
}

// Holder is a sandbox instance registered on a record.
type Holder struct {
	PID          int       `json:"pid"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ProcessProbe reports whether a process is still running.
type ProcessProbe func(pid int) bool

type options struct {
	lockTimeout time.Duration
	probe       ProcessProbe
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*options)

// WithLockTimeout bounds how long operations wait for the ledger lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// WithProcessProbe replaces the probe used by Sweep to find holders whose
// process has exited.
func WithProcessProbe(p ProcessProbe) Option {
	return func(o *options) { o.probe = p }
}

// WithClock replaces time.Now for holder registration times.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Ledger coordinates shared component installs of every sandbox instance on
// one machine. It holds no open database handle between operations.
type Ledger struct {
	path        string
	machineID   string
	store       SharedStore
	lockTimeout time.Duration
	probe       ProcessProbe
	now         func() time.Time

	// mu serializes goroutines of this process; the file lock taken by bbolt
	// serializes processes.
	mu sync.Mutex
}

// Open prepares the ledger database at path for machineID, creating it if
// needed.
func Open(ctx context.Context, path, machineID string, store SharedStore, opts ...Option) (*Ledger, error) {
	if machineID == "" {
		return nil, errNoMachineID
	}
	if store == nil {
		return nil, errNoStore
	}
	o := options{
		lockTimeout: DefaultLockTimeout,
		probe:       processExists,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create ledger directory")
	}
	l := &Ledger{
		path:        path,
		machineID:   machineID,
		store:       store,
		lockTimeout: o.lockTimeout,
		probe:       o.probe,
		now:         o.now,
	}
	if err := l.update(ctx, func(tx *bolt.Tx) error {
		_, err := recordsBucket(machineID).create(tx)
		return err
	}); err != nil {
		return nil, err
	}
	return l, nil
}

// MachineID returns the machine the ledger keeps records for.
func (l *Ledger) MachineID() string {
	return l.machineID
}

// newBackOff returns the retry policy for a busy ledger. The first retry
// comes after 50-150ms; retries stop once the lock timeout has elapsed.
func newBackOff(timeout time.Duration) backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Second,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
}

// open takes the ledger's file lock, retrying while another process holds it.
func (l *Ledger) open(ctx context.Context) (*bolt.DB, error) {
	var db *bolt.DB
	attempt := 0
	op := func() error {
		attempt++
		var err error
		db, err = bolt.Open(l.path, 0o600, &bolt.Options{Timeout: lockAttemptTimeout})
		if err == nil {
			return nil
		}
		if errors.Is(err, bolt.ErrTimeout) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, d time.Duration) {
		log.G(ctx).WithFields(logrus.Fields{
			logfields.Path:    l.path,
			logfields.Attempt: attempt,
			logfields.Timeout: l.lockTimeout,
			logrus.ErrorKey:   err,
		}).Debugf("ledger is busy, retrying in %s", d)
	}
	bo := backoff.WithContext(newBackOff(l.lockTimeout), ctx)
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, errors.Wrapf(err, "failed to open insurance ledger %s", l.path)
	}
	return db, nil
}

func (l *Ledger) update(ctx context.Context, fn func(*bolt.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (l *Ledger) view(ctx context.Context, fn func(*bolt.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// Insure adds components to the record of claim's transaction, creating the
// record if this is the transaction's first install, and registers the
// claiming process as a holder. The record is persisted before Insure
// returns.
func (l *Ledger) Insure(ctx context.Context, claim Claim, components ...component.ID) (_ *insurance.Record, err error) {
	ctx, span := oc.StartSpan(ctx, "ledger::Insure")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(
		trace.StringAttribute(logfields.CreatedAt, claim.CreatedAt.Format(insurance.TimeFormat)),
		trace.Int64Attribute(logfields.ProcessID, int64(claim.PID)),
		trace.Int64Attribute(logfields.Count, int64(len(components))))

	for _, c := range components {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	var result *insurance.Record
	err = l.update(ctx, func(tx *bolt.Tx) error {
		rec, err := l.findRecord(tx, claim.CreatedAt)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = insurance.New(uuid.NewString(), l.machineID, claim.CreatedAt, components...)
		} else if err := rec.Join(insurance.New(rec.ID(), l.machineID, claim.CreatedAt, components...)); err != nil {
			return err
		}
		if err := l.putRecord(tx, rec); err != nil {
			return err
		}
		if err := l.putHolder(tx, rec.ID(), Holder{PID: claim.PID, RegisteredAt: l.now().UTC()}); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.G(ctx).WithFields(logrus.Fields{
		logfields.InsuranceID: result.ID(),
		logfields.ProcessID:   claim.PID,
		logfields.Components:  components,
	}).Info("insured shared components")
	return result, nil
}

// ComponentError lists the components an operation failed for.
type ComponentError struct {
	Op     string
	Failed map[component.ID]error
}

func (e *ComponentError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id, err := range e.Failed {
		ids = append(ids, fmt.Sprintf("%s: %v", id, err))
	}
	sort.Strings(ids)
	return fmt.Sprintf("failed to %s %d component(s): %s", e.Op, len(e.Failed), strings.Join(ids, "; "))
}

func (e *ComponentError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Install insures the components for claim and then installs them into the
// shared store. Insuring first means a crash halfway leaves the components
// covered by a persisted record that a later sweep cleans up. A failed
// install does not stop the remaining ones; failures are returned as a
// *ComponentError and the components stay insured.
func (l *Ledger) Install(ctx context.Context, claim Claim, installs ...Installation) (err error) {
	ctx, span := oc.StartSpan(ctx, "ledger::Install")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()

	ids := make([]component.ID, 0, len(installs))
	for _, in := range installs {
		ids = append(ids, in.Component)
	}
	if _, err := l.Insure(ctx, claim, ids...); err != nil {
		return err
	}

	failed := map[component.ID]error{}
	for _, in := range installs {
		if err := l.store.Install(ctx, in.Component, in.Source); err != nil {
			log.G(ctx).WithFields(logrus.Fields{
				logfields.Component: in.Component,
				logrus.ErrorKey:     err,
			}).Error("failed to install shared component")
			failed[in.Component] = err
		}
	}
	if len(failed) > 0 {
		return &ComponentError{Op: "install", Failed: failed}
	}
	return nil
}

// Retire unregisters the claiming process from its transaction's record. If
// no holder is left the record is retired: each of its components is removed
// from the shared store unless another record with holders still lists it.
// A record is deleted once all of its removals succeeded; otherwise it stays
// persisted and a later Sweep retries.
func (l *Ledger) Retire(ctx context.Context, claim Claim) (_ *Report, err error) {
	ctx, span := oc.StartSpan(ctx, "ledger::Retire")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()
	span.AddAttributes(
		trace.StringAttribute(logfields.CreatedAt, claim.CreatedAt.Format(insurance.TimeFormat)),
		trace.Int64Attribute(logfields.ProcessID, int64(claim.PID)))

	report := newReport()
	err = l.update(ctx, func(tx *bolt.Tx) error {
		rec, err := l.findRecord(tx, claim.CreatedAt)
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.Wrapf(ErrRecordNotFound, "machine %q at %s",
				l.machineID, insurance.NormalizeTime(claim.CreatedAt).Format(insurance.TimeFormat))
		}
		if err := l.deleteHolder(tx, rec.ID(), claim.PID); err != nil {
			return err
		}
		holders, err := l.holders(tx, rec.ID())
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			log.G(ctx).WithFields(logrus.Fields{
				logfields.InsuranceID: rec.ID(),
				logfields.Holders:     len(holders),
			}).Debug("insurance record still has holders")
			report.Retained = append(report.Retained, rec.Components()...)
			return nil
		}
		return l.cleanup(ctx, tx, rec, report)
	})
	if err != nil {
		return nil, err
	}
	report.sort()
	return report, nil
}

// Sweep drops holders whose process no longer exists and cleans up every
// retired record, including records left behind by instances that crashed
// or whose earlier removals failed.
func (l *Ledger) Sweep(ctx context.Context) (_ *Report, err error) {
	ctx, span := oc.StartSpan(ctx, "ledger::Sweep")
	defer span.End()
	defer func() { oc.SetSpanStatus(span, err) }()

	report := newReport()
	err = l.update(ctx, func(tx *bolt.Tx) error {
		records, err := l.records(tx)
		if err != nil {
			return err
		}
		var retired []*insurance.Record
		for _, rec := range records {
			holders, err := l.holders(tx, rec.ID())
			if err != nil {
				return err
			}
			remaining := 0
			for _, h := range holders {
				if l.probe(h.PID) {
					remaining++
					continue
				}
				log.G(ctx).WithFields(logrus.Fields{
					logfields.InsuranceID: rec.ID(),
					logfields.ProcessID:   h.PID,
				}).Info("dropping holder of exited process")
				if err := l.deleteHolder(tx, rec.ID(), h.PID); err != nil {
					return err
				}
				report.Orphaned = append(report.Orphaned, h.PID)
			}
			if remaining == 0 {
				retired = append(retired, rec)
			}
		}
		for _, rec := range retired {
			if err := l.cleanup(ctx, tx, rec, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.sort()
	span.AddAttributes(
		trace.Int64Attribute("removed", int64(len(report.Removed))),
		trace.Int64Attribute("pending", int64(len(report.Pending))))
	return report, nil
}

// cleanup removes the components of the retired record rec that no live
// record insures, and deletes rec if nothing failed.
func (l *Ledger) cleanup(ctx context.Context, tx *bolt.Tx, rec *insurance.Record, report *Report) error {
	records, err := l.records(tx)
	if err != nil {
		return err
	}
	var live []*insurance.Record
	for _, other := range records {
		if other.ID() == rec.ID() {
			continue
		}
		holders, err := l.holders(tx, other.ID())
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			live = append(live, other)
		}
	}

	var failed []component.ID
	for _, c := range rec.Components() {
		if insuredBy(live, c) {
			report.Retained = append(report.Retained, c)
			continue
		}
		// Removal happens under the ledger lock so no other instance can insure
		// c between the check above and the delete. If the transaction later
		// rolls back, the record survives and a retry removes an absent
		// component, which succeeds.
		if err := l.store.Remove(ctx, c); err != nil {
			log.G(ctx).WithFields(logrus.Fields{
				logfields.InsuranceID: rec.ID(),
				logfields.Component:   c,
				logrus.ErrorKey:       err,
			}).Warning("failed to remove shared component, keeping it insured")
			report.Failed[c] = err
			failed = append(failed, c)
			continue
		}
		report.Removed = append(report.Removed, c)
	}

	entry := log.G(ctx).WithFields(logrus.Fields{
		logfields.InsuranceID: rec.ID(),
		logfields.CreatedAt:   rec.CreatedAt(),
	})
	if len(failed) > 0 {
		// Keep only what is still in the store, for a later sweep to retry.
		pending := insurance.New(rec.ID(), rec.MachineID(), rec.CreatedAt(), failed...)
		if err := l.putRecord(tx, pending); err != nil {
			return err
		}
		report.Pending = append(report.Pending, rec.ID())
		entry.WithField(logfields.Count, len(failed)).Info("insurance record retired, cleanup pending")
		return nil
	}
	if err := l.deleteRecord(tx, rec.ID()); err != nil {
		return err
	}
	report.Retired = append(report.Retired, rec.ID())
	entry.Info("insurance record retired")
	return nil
}

func insuredBy(records []*insurance.Record, c component.ID) bool {
	for _, r := range records {
		if r.Contains(c) {
			return true
		}
	}
	return false
}

// Records returns every persisted record of this machine, oldest first.
func (l *Ledger) Records(ctx context.Context) ([]*insurance.Record, error) {
	var out []*insurance.Record
	err := l.view(ctx, func(tx *bolt.Tx) (err error) {
		out, err = l.records(tx)
		return err
	})
	return out, err
}

// Holders returns the processes registered on record insuranceID.
func (l *Ledger) Holders(ctx context.Context, insuranceID string) ([]Holder, error) {
	var out []Holder
	err := l.view(ctx, func(tx *bolt.Tx) (err error) {
		out, err = l.holders(tx, insuranceID)
		return err
	})
	return out, err
}

func (l *Ledger) records(tx *bolt.Tx) ([]*insurance.Record, error) {
	bkt := recordsBucket(l.machineID).get(tx)
	if bkt == nil {
		return nil, nil
	}
	var out []*insurance.Record
	if err := bkt.ForEach(func(k, v []byte) error {
		rec := &insurance.Record{}
		if err := json.Unmarshal(v, rec); err != nil {
			return errors.Wrapf(err, "failed to decode insurance record %s", k)
		}
		out = append(out, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out, nil
}

func (l *Ledger) findRecord(tx *bolt.Tx, createdAt time.Time) (*insurance.Record, error) {
	records, err := l.records(tx)
	if err != nil {
		return nil, err
	}
	probe := insurance.New("", l.machineID, createdAt)
	for _, r := range records {
		if r.Joinable(probe) {
			return r, nil
		}
	}
	return nil, nil
}

func (l *Ledger) putRecord(tx *bolt.Tx, rec *insurance.Record) error {
	bkt, err := recordsBucket(l.machineID).create(tx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return bkt.Put([]byte(rec.ID()), data)
}

func (l *Ledger) deleteRecord(tx *bolt.Tx, insuranceID string) error {
	if bkt := recordsBucket(l.machineID).get(tx); bkt != nil {
		if err := bkt.Delete([]byte(insuranceID)); err != nil {
			return err
		}
	}
	if root := holdersBucket(l.machineID).get(tx); root != nil && root.Bucket([]byte(insuranceID)) != nil {
		return root.DeleteBucket([]byte(insuranceID))
	}
	return nil
}

func (l *Ledger) holders(tx *bolt.Tx, insuranceID string) ([]Holder, error) {
	bkt := recordHoldersBucket(l.machineID, insuranceID).get(tx)
	if bkt == nil {
		return nil, nil
	}
	var out []Holder
	if err := bkt.ForEach(func(k, v []byte) error {
		var h Holder
		if err := json.Unmarshal(v, &h); err != nil {
			return errors.Wrapf(err, "failed to decode holder %s of %s", k, insuranceID)
		}
		out = append(out, h)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) putHolder(tx *bolt.Tx, insuranceID string, h Holder) error {
	bkt, err := recordHoldersBucket(l.machineID, insuranceID).create(tx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return bkt.Put([]byte(strconv.Itoa(h.PID)), data)
}

func (l *Ledger) deleteHolder(tx *bolt.Tx, insuranceID string, pid int) error {
	bkt := recordHoldersBucket(l.machineID, insuranceID).get(tx)
	if bkt == nil {
		return nil
	}
	return bkt.Delete([]byte(strconv.Itoa(pid)))
}
