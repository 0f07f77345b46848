package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseClaim(t *testing.T) {
	claim, rest, err := parseClaim([]string{"42", "17/10/2026", "08:00:00", "Foo, Version=1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if claim.PID != 42 {
		t.Fatalf("expected pid 42, got %d", claim.PID)
	}
	if want := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC); !claim.CreatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, claim.CreatedAt)
	}
	if diff := cmp.Diff([]string{"Foo, Version=1.0"}, rest); diff != "" {
		t.Fatalf("unexpected remaining arguments (-want +got):\n%s", diff)
	}

	if _, _, err := parseClaim([]string{"42", "tomorrow"}); err == nil {
		t.Fatal("expected an error for a malformed time")
	}
}
