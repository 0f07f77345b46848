// Package insurance models the claims sandbox instances hold on components
// they placed in the host-wide shared store.
//
// A Record ties a set of components to one shared-install transaction,
// identified by the machine it ran on and the moment it started. Instances
// launched from the same transaction join their components into the same
// record; the record only ever grows until it is retired by the ledger.
package insurance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/appstract/appstract/internal/component"
)

// TimeFormat is the fixed textual format of a record's creation time
// (dd/mm/yyyy hh:mm:ss, UTC).
const TimeFormat = "02/01/2006 15:04:05"

// ErrIdentityMismatch is returned when joining records of different
// transactions. It always indicates a caller bug.
var ErrIdentityMismatch = errors.New("insurance records belong to different transactions")

// Record is one transaction's claim on a set of shared components.
// The zero value is not usable; construct records with New.
type Record struct {
	id         string
	machineID  string
	createdAt  time.Time
	components []component.ID
}

// New returns a record. createdAt is truncated to whole seconds and converted
// to UTC so that it survives a round trip through TimeFormat unchanged.
// Duplicate components are collapsed.
func New(id, machineID string, createdAt time.Time, components ...component.ID) *Record {
	return &Record{
		id:         id,
		machineID:  machineID,
		createdAt:  NormalizeTime(createdAt),
		components: lo.Uniq(components),
	}
}

// NormalizeTime returns t the way a Record stores it.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (r *Record) ID() string           { return r.id }
func (r *Record) MachineID() string    { return r.machineID }
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// Components returns a copy of the insured components.
func (r *Record) Components() []component.ID {
	return append([]component.ID(nil), r.components...)
}

// Contains reports whether c is insured by r.
func (r *Record) Contains(c component.ID) bool {
	return lo.Contains(r.components, c)
}

// Joinable reports whether other belongs to the same transaction as r.
func (r *Record) Joinable(other *Record) bool {
	return other != nil && r.machineID == other.machineID && r.createdAt.Equal(other.createdAt)
}

// Join adds the components of other to r. Both records must belong to the
// same transaction.
func (r *Record) Join(other *Record) error {
	if other == nil {
		return errors.Wrap(ErrIdentityMismatch, "cannot join a nil record")
	}
	if !r.Joinable(other) {
		return errors.Wrapf(ErrIdentityMismatch, "machine %q at %s with machine %q at %s",
			r.machineID, r.createdAt.Format(TimeFormat), other.machineID, other.createdAt.Format(TimeFormat))
	}
	r.Add(other.components...)
	return nil
}

// Add inserts components that r does not insure yet.
func (r *Record) Add(components ...component.ID) {
	for _, c := range components {
		if !r.Contains(c) {
			r.components = append(r.components, c)
		}
	}
}

// Matches reports whether r and other describe the same installation event:
// same id, machine and creation time and, if includeComponents is set,
// exactly the same set of components.
func (r *Record) Matches(other *Record, includeComponents bool) bool {
	if other == nil ||
		r.id != other.id ||
		r.machineID != other.machineID ||
		!r.createdAt.Equal(other.createdAt) {
		return false
	}
	if !includeComponents {
		return true
	}
	return len(r.components) == len(other.components) &&
		lo.Every(r.components, other.components) &&
		lo.Every(other.components, r.components)
}

func (r *Record) String() string {
	return fmt.Sprintf("Insurance [%s] %d components", r.createdAt.Format(TimeFormat), len(r.components))
}

type recordJSON struct {
	ID         string         `json:"insurance_id"`
	MachineID  string         `json:"machine_id"`
	CreatedAt  string         `json:"created_at"`
	Components []component.ID `json:"components"`
}

func (r *Record) MarshalJSON() ([]byte, error) {
	components := r.components
	if components == nil {
		components = []component.ID{}
	}
	return json.Marshal(recordJSON{
		ID:         r.id,
		MachineID:  r.machineID,
		CreatedAt:  r.createdAt.Format(TimeFormat),
		Components: components,
	})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var v recordJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	createdAt, err := time.ParseInLocation(TimeFormat, v.CreatedAt, time.UTC)
	if err != nil {
		return errors.Wrapf(err, "invalid created_at in insurance record %q", v.ID)
	}
	// Records may have been written by another tool; compare on normalized ids.
	components := lo.Map(v.Components, func(c component.ID, _ int) component.ID {
		return component.New(c.Name, c.Version, c.Culture, c.PublicKeyToken)
	})
	*r = *New(v.ID, v.MachineID, createdAt, components...)
	return nil
}
