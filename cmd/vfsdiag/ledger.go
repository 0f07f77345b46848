package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli"

	"github.com/appstract/appstract/internal/appargs"
	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/config"
	"github.com/appstract/appstract/internal/insurance"
	"github.com/appstract/appstract/internal/ledger"
	"github.com/appstract/appstract/internal/sharedstore"
)

func openLedger(ctx context.Context, cfg *config.Config) (*ledger.Ledger, error) {
	machineID, err := cfg.MachineID()
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.LockTimeout()
	if err != nil {
		return nil, err
	}
	return ledger.Open(ctx, cfg.Ledger.Path, machineID, sharedstore.NewDir(cfg.Ledger.Store),
		ledger.WithLockTimeout(timeout))
}

// parseClaim reads `<pid> <time>` from the front of args and returns the
// remaining arguments.
func parseClaim(args []string) (ledger.Claim, []string, error) {
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return ledger.Claim{}, nil, err
	}
	created, n, err := appargs.ParseTime(args[1:])
	if err != nil {
		return ledger.Claim{}, nil, err
	}
	return ledger.Claim{CreatedAt: created, PID: pid}, args[1+n:], nil
}

func printReport(r *ledger.Report) {
	for _, c := range r.Removed {
		fmt.Printf("removed   %s\n", c)
	}
	for _, c := range r.Retained {
		fmt.Printf("retained  %s\n", c)
	}
	for c, err := range r.Failed {
		fmt.Printf("failed    %s: %s\n", c, err)
	}
	for _, id := range r.Retired {
		fmt.Printf("retired   %s\n", id)
	}
	for _, id := range r.Pending {
		fmt.Printf("pending   %s\n", id)
	}
	for _, pid := range r.Orphaned {
		fmt.Printf("orphaned  pid %d\n", pid)
	}
}

type recordOutput struct {
	*insurance.Record
	Holders []ledger.Holder `json:"holders"`
}

func (o recordOutput) MarshalJSON() ([]byte, error) {
	rec, err := json.Marshal(o.Record)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(rec, &m); err != nil {
		return nil, err
	}
	if m["holders"], err = json.Marshal(o.Holders); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

var recordsCommand = cli.Command{
	Name:      "records",
	Usage:     "Lists the insurance records of this machine",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "Print the records and their holders as JSON",
		},
	},
	Before: appargs.Validate(),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		ctx := commandContext(c)
		l, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		records, err := l.Records(ctx)
		if err != nil {
			return err
		}
		out := make([]recordOutput, 0, len(records))
		for _, r := range records {
			holders, err := l.Holders(ctx, r.ID())
			if err != nil {
				return err
			}
			out = append(out, recordOutput{Record: r, Holders: holders})
		}
		if c.Bool("json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		for _, o := range out {
			fmt.Printf("%s  %s  %d holder(s)\n", o.ID(), o.Record, len(o.Holders))
			for _, comp := range o.Components() {
				fmt.Printf("    %s\n", comp)
			}
		}
		return nil
	},
}

var insureCommand = cli.Command{
	Name:      "insure",
	Usage:     "Insures shared components for an install transaction",
	ArgsUsage: "<pid> <dd/mm/yyyy hh:mm:ss> <component>...",
	Flags: []cli.Flag{
		cli.StringSliceFlag{
			Name:  "source,s",
			Usage: "File providing the component at the same position; installs it into the shared store",
		},
	},
	Before: appargs.Validate(appargs.PID, appargs.Time, appargs.Rest(appargs.Component)),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		claim, rest, err := parseClaim(c.Args())
		if err != nil {
			return err
		}
		components := make([]component.ID, 0, len(rest))
		for _, a := range rest {
			id, err := component.Parse(a)
			if err != nil {
				return err
			}
			components = append(components, id)
		}

		ctx := commandContext(c)
		l, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		sources := c.StringSlice("source")
		if len(sources) == 0 {
			rec, err := l.Insure(ctx, claim, components...)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", rec.ID(), rec)
			return nil
		}
		if len(sources) != len(components) {
			return fmt.Errorf("%d sources given for %d components", len(sources), len(components))
		}
		installs := make([]ledger.Installation, 0, len(components))
		for i, id := range components {
			installs = append(installs, ledger.Installation{Component: id, Source: sources[i]})
		}
		if err := l.Install(ctx, claim, installs...); err != nil {
			return err
		}
		fmt.Printf("Installed %d component(s) into %s\n", len(installs), cfg.Ledger.Store)
		return nil
	},
}

var retireCommand = cli.Command{
	Name:      "retire",
	Usage:     "Withdraws a process from its install transaction",
	ArgsUsage: "<pid> <dd/mm/yyyy hh:mm:ss>",
	Before:    appargs.Validate(appargs.PID, appargs.Time),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		claim, _, err := parseClaim(c.Args())
		if err != nil {
			return err
		}
		ctx := commandContext(c)
		l, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		report, err := l.Retire(ctx, claim)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

var sweepCommand = cli.Command{
	Name:      "sweep",
	Usage:     "Drops exited processes from the ledger and removes unused shared components",
	ArgsUsage: " ",
	Before:    appargs.Validate(),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		ctx := commandContext(c)
		l, err := openLedger(ctx, cfg)
		if err != nil {
			return err
		}
		report, err := l.Sweep(ctx)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}
