package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/sharedstore"
)

func TestPrintStore(t *testing.T) {
	store := sharedstore.NewDir(filepath.Join(t.TempDir(), "assembly"))
	foo := component.New("Foo", "1.0.0.0", "", "b77a5c561934e089")
	bar := component.New("Bar", "1.0.0.0", "", "")

	src := filepath.Join(t.TempDir(), "Foo.dll")
	if err := os.WriteFile(src, []byte("foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Install(context.Background(), foo, src); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printStore(&buf, store, nil); err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(store.Root(), store.Path(foo))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != rel {
		t.Fatalf("expected %q, got %q", rel, got)
	}

	for id, want := range map[component.ID]string{foo: "installed", bar: "missing"} {
		buf.Reset()
		if err := printStore(&buf, store, &id); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(buf.String(), want) {
			t.Errorf("%s: expected %q, got %q", id, want, buf.String())
		}
	}
}
