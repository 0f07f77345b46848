package insurance

import (
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/appstract/appstract/internal/component"
)

var (
	created = time.Date(2026, 10, 17, 9, 30, 15, 250, time.UTC)
	foo     = component.New("Foo.dll", "1.0", "", "")
	bar     = component.New("Bar.dll", "2.0.0.0", "en-US", "b77a5c561934e089")
)

func sorted(ids []component.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

func TestNewCollapsesDuplicates(t *testing.T) {
	r := New("id", "m1", created, foo, foo, bar)
	if n := len(r.Components()); n != 2 {
		t.Fatalf("expected 2 components, got %d", n)
	}
	if !r.CreatedAt().Equal(created.Truncate(time.Second)) {
		t.Fatalf("expected creation time truncated to seconds, got %v", r.CreatedAt())
	}
}

func TestJoin(t *testing.T) {
	a := New("a", "m1", created, foo)
	b := New("b", "m1", created, bar, foo)
	if err := a.Join(b); err != nil {
		t.Fatal(err)
	}
	want := New("a", "m1", created, foo, bar)
	if !a.Matches(want, true) {
		t.Fatalf("expected %v to match %v", sorted(a.Components()), sorted(want.Components()))
	}
	// b is left untouched.
	if diff := cmp.Diff(sorted([]component.ID{bar, foo}), sorted(b.Components())); diff != "" {
		t.Fatalf("joined record changed (-want +got):\n%s", diff)
	}
}

func TestJoinMismatch(t *testing.T) {
	a := New("a", "m1", created, foo)
	for name, other := range map[string]*Record{
		"machine": New("a", "m2", created, bar),
		"time":    New("a", "m1", created.Add(time.Second), bar),
		"nil":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			if err := a.Join(other); !errors.Is(err, ErrIdentityMismatch) {
				t.Fatalf("expected ErrIdentityMismatch, got %v", err)
			}
			if a.Contains(bar) {
				t.Fatal("failed join must not add components")
			}
		})
	}
}

func TestJoinWithinSameSecond(t *testing.T) {
	a := New("a", "m1", created, foo)
	b := New("b", "m1", created.Add(300*time.Millisecond), bar)
	if err := a.Join(b); err != nil {
		t.Fatalf("records created within the same second must be joinable: %v", err)
	}
}

func TestMatches(t *testing.T) {
	a := New("a", "m1", created, foo, bar)
	tests := []struct {
		name        string
		other       *Record
		identity    bool
		withEntries bool
	}{
		{"same", New("a", "m1", created, bar, foo), true, true},
		{"subset", New("a", "m1", created, foo), true, false},
		{"superset", New("a", "m1", created, foo, bar, component.New("Baz", "1", "", "")), true, false},
		{"intersecting", New("a", "m1", created, foo, component.New("Baz", "1", "", "")), true, false},
		{"other id", New("b", "m1", created, foo, bar), false, false},
		{"other machine", New("a", "m2", created, foo, bar), false, false},
		{"other time", New("a", "m1", created.Add(time.Hour), foo, bar), false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Matches(tt.other, false); got != tt.identity {
				t.Errorf("Matches(identity) = %v, want %v", got, tt.identity)
			}
			if got := a.Matches(tt.other, true); got != tt.withEntries {
				t.Errorf("Matches(components) = %v, want %v", got, tt.withEntries)
			}
			if tt.other != nil {
				if a.Matches(tt.other, true) != tt.other.Matches(a, true) {
					t.Error("Matches is not symmetric")
				}
			}
		})
	}
}

func TestString(t *testing.T) {
	r := New("a", "m1", created, foo, bar)
	if got, want := r.String(), "Insurance [17/10/2026 09:30:15] 2 components"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestJSON(t *testing.T) {
	r := New("a", "m1", created, foo, bar)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["created_at"] != "17/10/2026 09:30:15" {
		t.Fatalf("unexpected created_at %v", raw["created_at"])
	}
	for _, key := range []string{"insurance_id", "machine_id", "components"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}

	var decoded Record
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.Matches(r, true) {
		t.Fatalf("decoded record %v does not match %v", &decoded, r)
	}
}

func TestUnmarshalCollapsesDuplicates(t *testing.T) {
	doc := `{"insurance_id":"x","machine_id":"m","created_at":"01/02/2026 03:04:05",
		"components":[{"name":"Foo.dll","version":"1.0","culture":"","token":""},
		              {"name":"Foo.dll","version":"1.0","culture":"","token":""}]}`
	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatal(err)
	}
	if n := len(r.Components()); n != 1 {
		t.Fatalf("expected 1 component, got %d", n)
	}
	if want := time.Date(2026, 2, 1, 3, 4, 5, 0, time.UTC); !r.CreatedAt().Equal(want) {
		t.Fatalf("expected %v, got %v", want, r.CreatedAt())
	}
}

func TestUnmarshalNormalizesComponents(t *testing.T) {
	doc := `{"insurance_id":"x","machine_id":"m","created_at":"01/02/2026 03:04:05",
		"components":[{"name":"Foo","version":"1.0.0.0","culture":"Neutral","token":"B77A5C561934E089"},
		              {"name":"Foo","version":"1.0.0.0","culture":"","token":"b77a5c561934e089"}]}`
	var r Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatal(err)
	}
	want := component.New("Foo", "1.0.0.0", "", "b77a5c561934e089")
	if diff := cmp.Diff([]component.ID{want}, r.Components()); diff != "" {
		t.Fatalf("unexpected components (-want +got):\n%s", diff)
	}
	if !r.Contains(want) {
		t.Fatalf("expected record to contain %s", want)
	}
}

func TestUnmarshalBadTime(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"insurance_id":"x","created_at":"2026-01-01"}`), &r); err == nil {
		t.Fatal("expected an error for a malformed created_at")
	}
}
