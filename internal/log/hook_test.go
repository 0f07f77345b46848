package log

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/logfields"
)

type named struct{ name string }

func (n *named) String() string { return n.name }

type pair struct {
	Host    string `json:"host"`
	Virtual string `json:"virtual"`
}

func TestHookFire(t *testing.T) {
	created := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	var nilNamed *named
	err := errors.New("boom")
	e := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{
		"time":     created,
		"timeout":  1500 * time.Millisecond,
		"stringer": &named{name: "Foo, Version=1.0"},
		"nil":      nilNamed,
		"rule":     pair{Host: `C:\Windows`, Virtual: "windows"},
		"rules":    []pair{{Host: "a", Virtual: "<b>"}},
		"count":    3,
		"buffer":   bytes.NewBufferString("raw"),
	}).WithError(err)

	if err := NewHook().Fire(e); err != nil {
		t.Fatal(err)
	}

	for k, want := range map[string]interface{}{
		"time":          "2026-10-17T08:00:00Z",
		"timeout":       1.5,
		"stringer":      "Foo, Version=1.0",
		"nil":           nullString,
		"rule":          `{"host":"C:\\Windows","virtual":"windows"}`,
		"rules":         `[{"host":"a","virtual":"<b>"}]`,
		"count":         3,
		"buffer":        "raw",
		logrus.ErrorKey: err,
	} {
		if got := e.Data[k]; got != want {
			t.Errorf("field %q: expected %v (%T), got %v (%T)", k, want, want, got, got)
		}
	}
}

func TestHookSpanContext(t *testing.T) {
	ctx, span := trace.StartSpan(context.Background(), "test", trace.WithSampler(trace.AlwaysSample()))
	defer span.End()

	e := logrus.NewEntry(logrus.New()).WithContext(ctx)
	if err := NewHook().Fire(e); err != nil {
		t.Fatal(err)
	}
	sc := span.SpanContext()
	if e.Data[logfields.TraceID] != sc.TraceID.String() || e.Data[logfields.SpanID] != sc.SpanID.String() {
		t.Fatalf("expected span ids in %v", e.Data)
	}
}

func TestSetEntry(t *testing.T) {
	ctx, entry := SetEntry(context.Background(), logrus.Fields{logfields.Root: `c:\sandbox`})
	if G(ctx) != entry {
		t.Fatal("expected the context to hold the new entry")
	}
	if entry.Data[logfields.Root] != `c:\sandbox` {
		t.Fatalf("unexpected fields %v", entry.Data)
	}
	if err := SetLevel("bogus"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
