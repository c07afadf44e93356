package main

import "github.com/urfave/cli/v3"

// globalFlags are accepted by every command, before or after its name.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "cookies",
			Aliases: []string{"c"},
			Usage:   "path to a Netscape cookie file",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "show more information and write the log to ./pdown.log",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "output results and logs as JSON",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "share password, if set",
			Sources: cli.EnvVars("SHARE_PASSWORD"),
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "suppress all output except errors",
		},
		&cli.IntFlag{
			Name:  "speed",
			Usage: "limit connection speed (in kilobytes per second)",
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Aliases: []string{"u"},
			Usage:   "override the default user agent",
			Sources: cli.EnvVars("USER_AGENT"),
		},
		&cli.StringFlag{
			Name:  "locators",
			Usage: "YAML file overriding page selectors",
		},
		&cli.StringFlag{
			Name:  "chrome",
			Usage: "path to the Chrome or Chromium binary",
		},
		&cli.BoolFlag{
			Name:  "headful",
			Usage: "show the browser window",
		},
	}
}

func sizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "human-readable",
			Aliases: []string{"h"},
			Usage:   "print sizes like 1K 234M 2G instead of bytes",
		},
		&cli.BoolFlag{
			Name:  "si",
			Usage: "like --human-readable, but use powers of 1000 not 1024",
		},
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "dl",
		Aliases:   []string{"download"},
		Usage:     "download Proton Drive shares",
		ArgsUsage: "<URL/ID...>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "set download folder path (default: current directory)",
			},
		}, sizeFlags()...),
		Action: r.Download,
	}
}

func listCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Aliases:   []string{"list"},
		Usage:     "list files in Proton Drive shares",
		ArgsUsage: "<URL/ID...>",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "list files recursively in folders",
			},
		}, sizeFlags()...),
		Action: r.List,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API with docs at /docs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "bind address (default: PDOWN_BIND_ADDR)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "default download folder for jobs (default: current directory)",
			},
		},
		Action: r.Serve,
	}
}
