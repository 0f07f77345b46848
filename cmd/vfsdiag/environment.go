package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/appstract/appstract/internal/appargs"
	"github.com/appstract/appstract/internal/config"
	"github.com/appstract/appstract/internal/vfs"
)

func newEnvironment(cfg *config.Config) (*vfs.Environment, error) {
	hf, err := cfg.HostFolders(os.Getenv)
	if err != nil {
		return nil, err
	}
	return vfs.New(cfg.Environment.Root,
		vfs.WithRules(vfs.NewRuleTable(hf)),
		vfs.WithFallbackPolicy(cfg.FallbackPolicy()))
}

var redirectCommand = cli.Command{
	Name:      "redirect",
	Usage:     "Resolves the path a file operation is redirected to",
	ArgsUsage: "<path> [disposition]",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "library,l",
			Usage: "Treat the request as a library load",
		},
	},
	Before: appargs.Validate(appargs.NonEmptyString, appargs.Optional(appargs.Disposition)),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		env, err := newEnvironment(cfg)
		if err != nil {
			return err
		}
		args := c.Args()
		req := vfs.FileRequest{Path: args[0], Kind: vfs.ResourceFile}
		if c.Bool("library") {
			req.Kind = vfs.ResourceLibrary
		}
		if len(args) > 1 {
			if req.Disposition, err = vfs.ParseDisposition(args[1]); err != nil {
				return err
			}
		}
		fmt.Println(env.RedirectRequest(req))
		return nil
	},
}

var classifyCommand = cli.Command{
	Name:      "classify",
	Usage:     "Reports whether a path may be redirected into the virtual environment",
	ArgsUsage: "<path>",
	Before:    appargs.Validate(appargs.String),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		env, err := newEnvironment(cfg)
		if err != nil {
			return err
		}
		p := c.Args()[0]
		if env.IsVirtualizable(p) {
			fmt.Printf("%s: virtualizable\n", p)
		} else {
			fmt.Printf("%s: not virtualizable\n", p)
		}
		return nil
	},
}

var bootstrapCommand = cli.Command{
	Name:      "bootstrap",
	Usage:     "Creates the system folders of the virtual environment",
	ArgsUsage: " ",
	Before:    appargs.Validate(),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		env, err := newEnvironment(cfg)
		if err != nil {
			return err
		}
		if err := env.CreateSystemFolders(commandContext(c)); err != nil {
			return err
		}
		fmt.Printf("Created system folders under %s\n", env.Root())
		return nil
	},
}
