package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/config"
	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
	"github.com/appstract/appstract/internal/oc"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	traceFlag    = "trace"
)

func main() {
	app := cli.NewApp()
	app.Name = "vfsdiag"
	app.Usage = "virtual environment and insurance ledger diagnostic tool"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  configFlag,
			Usage: "path to the TOML configuration; defaults to " + config.DefaultFileName + " next to the executable",
		},
		cli.StringFlag{
			Name:  logLevelFlag,
			Usage: "logging level; overrides log.level of the configuration",
		},
		cli.BoolFlag{
			Name:  traceFlag,
			Usage: "export trace spans to the log",
		},
	}
	app.Before = func(c *cli.Context) error {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.AddHook(log.NewHook())
		addPlatformHooks()
		if c.GlobalBool(traceFlag) {
			trace.ApplyConfig(trace.Config{DefaultSampler: oc.DefaultSampler})
			trace.RegisterExporter(&oc.LogrusExporter{})
		}
		return nil
	}
	app.Commands = []cli.Command{
		redirectCommand,
		classifyCommand,
		bootstrapCommand,
		recordsCommand,
		insureCommand,
		retireCommand,
		sweepCommand,
		storeCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by the global flags and applies
// the log level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString(configFlag))
	if err != nil {
		return nil, err
	}
	if lvl := c.GlobalString(logLevelFlag); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func commandContext(c *cli.Context) context.Context {
	ctx, _ := log.SetEntry(context.Background(), logrus.Fields{logfields.Operation: c.Command.Name})
	return ctx
}
