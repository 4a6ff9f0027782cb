package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "nextest"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run compiled test binaries in parallel",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:  "config-file",
					Usage: "Path to the nextest config file (default: .config/nextest.toml)",
				},
				&cli.StringFlag{
					Name:    "profile",
					Aliases: []string{"P"},
					Usage:   "Config profile to use (also via NEXTEST_PROFILE)",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "list",
		Usage:     "List the test cases inside the given test binaries",
		ArgsUsage: "[PATTERN...]",
		Action:    app.list,
		Flags: append(sharedFlags(),
			&cli.StringFlag{
				Name:  "message-format",
				Usage: "Output format (human, json, json-pretty)",
				Value: "human",
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the test cases inside the given test binaries",
		ArgsUsage: "[PATTERN...]",
		Action:    app.run,
		Flags: append(sharedFlags(),
			&cli.IntFlag{
				Name:  "retries",
				Usage: "Number of retries for failing tests (overrides the profile)",
				Value: -1,
			},
			&cli.IntFlag{
				Name:    "test-threads",
				Aliases: []string{"j"},
				Usage:   "Number of tests to run simultaneously (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "status-level",
				Usage: "Test statuses to output (none, fail, retry, pass, skip, all)",
			},
			&cli.StringFlag{
				Name:  "output-display",
				Usage: "When to display captured test output (immediate, immediate-final, final, never)",
			},
			&cli.StringFlag{
				Name:  "junit",
				Usage: "Write a JUnit XML report to the given path",
			},
			&cli.StringFlag{
				Name:  "json-report",
				Usage: "Write a JSON outcome report to the given path",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Cancel the run after the first test failure",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-test timeout (0 = none)",
			},
		),
	})
	return app
}

// sharedFlags are accepted by both list and run.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "binaries-metadata",
			Usage:    "Path to the build step's JSON binaries metadata stream",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "package-graph",
			Usage: "Path to the package graph JSON file",
		},
		&cli.StringFlag{
			Name:  "target",
			Usage: "Platform triple the binaries were built for (default: host triple)",
		},
		&cli.StringFlag{
			Name:  "partition",
			Usage: "Run only a shard of the tests (e.g. hash:0/2 or count:1/3)",
		},
		&cli.StringFlag{
			Name:  "run-ignored",
			Usage: "Handling of ignored tests (default, ignored-only, all)",
		},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = version + " (commit: " + commit[:8] + ", built: " + date + ")"
	}
}
