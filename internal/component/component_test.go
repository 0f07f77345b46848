package component

import (
	"errors"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	id, err := Parse("Foo, Version=1.0.0.0, Culture=neutral, PublicKeyToken=B77A5C561934E089")
	if err != nil {
		t.Fatal(err)
	}
	want := ID{Name: "Foo", Version: "1.0.0.0", PublicKeyToken: "b77a5c561934e089"}
	if id != want {
		t.Fatalf("expected %+v, got %+v", want, id)
	}
	again, err := Parse(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatalf("display name did not round trip: %q", id.String())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{
		"",
		", Version=1.0",
		"Foo, Version",
		"Foo, Version=1.0.0.0.0",
		"Foo, Version=one",
		"Foo, Version=1.0, PublicKeyToken=abc",
	} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidComponent) {
			t.Errorf("Parse(%q): expected ErrInvalidComponent, got %v", s, err)
		}
	}
}

func TestEquality(t *testing.T) {
	a := New("Foo.dll", "1.0", "Neutral", "NULL")
	b := New("Foo.dll", "1.0", "", "")
	if a != b {
		t.Fatalf("expected %v and %v to be equal", a, b)
	}
	if a == New("Foo.dll", "1.1", "", "") {
		t.Fatal("expected different versions to differ")
	}
}

func TestString(t *testing.T) {
	id := New("Bar", "2.1", "en-US", "")
	if got, want := id.String(), "Bar, Version=2.1, Culture=en-US, PublicKeyToken=null"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
