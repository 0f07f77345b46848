package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"github.com/appstract/appstract/internal/appargs"
	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/sharedstore"
)

// printStore lists the installed components of store. When only is set, it
// reports whether that component is installed instead.
func printStore(w io.Writer, store *sharedstore.Dir, only *component.ID) error {
	if only != nil {
		state := "missing"
		if store.Has(*only) {
			state = "installed"
		}
		_, err := fmt.Fprintf(w, "%-9s %s\n", state, *only)
		return err
	}
	entries, err := store.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e); err != nil {
			return err
		}
	}
	return nil
}

var storeCommand = cli.Command{
	Name:      "store",
	Usage:     "Lists the shared store, or checks whether a component is installed",
	ArgsUsage: "[component]",
	Before:    appargs.Validate(appargs.Optional(appargs.Component)),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		var only *component.ID
		if c.NArg() > 0 {
			id, err := component.Parse(c.Args().First())
			if err != nil {
				return err
			}
			only = &id
		}
		return printStore(os.Stdout, sharedstore.NewDir(cfg.Ledger.Store), only)
	},
}
