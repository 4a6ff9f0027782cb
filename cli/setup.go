package cli

// This file contains the shared pipeline front half used by both the
// list and run commands: load the config profile, ingest build metadata,
// resolve target runners, build the test list and apply the partition.

import (
	"fmt"
	"os"

	clilib "github.com/urfave/cli/v2"

	"github.com/Dzordzu/nextest/config"
	"github.com/Dzordzu/nextest/partition"
	"github.com/Dzordzu/nextest/targetrunner"
	"github.com/Dzordzu/nextest/testlist"
)

// inputs is everything the commands need once the front half of the
// pipeline has run.
type inputs struct {
	cfg       *config.Config
	profile   *config.Profile
	list      *testlist.TestList
	runnerFor func(*testlist.TestBinary) *targetrunner.TargetRunner
}

func (a *App) setup(ctx *clilib.Context) (*inputs, error) {
	cfg, err := config.Load(ctx.String("config-file"))
	if err != nil {
		return nil, err
	}

	profileName := ctx.String("profile")
	if profileName == "" {
		profileName = os.Getenv("NEXTEST_PROFILE")
	}
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("profile", profile.Name).Msg("Profile resolved")

	// Environment and configuration are captured once here; resolution
	// and scheduling only ever see these snapshots.
	env, err := targetrunner.SnapshotEnviron(os.Environ())
	if err != nil {
		return nil, err
	}

	var triple targetrunner.PlatformTriple
	if t := ctx.String("target"); t != "" {
		triple, err = targetrunner.ParseTriple(t)
	} else {
		triple, err = targetrunner.HostTriple()
	}
	if err != nil {
		return nil, err
	}

	binaries, err := a.readBinaries(ctx, triple.String())
	if err != nil {
		return nil, err
	}

	runners := make(map[string]*targetrunner.TargetRunner)
	for _, bin := range binaries {
		if _, ok := runners[bin.Platform]; ok {
			continue
		}
		binTriple, err := targetrunner.ParseTriple(bin.Platform)
		if err != nil {
			return nil, err
		}
		runner, err := targetrunner.Resolve(binTriple, env, cfg)
		if err != nil {
			return nil, err
		}
		if runner != nil {
			a.logger.Info().
				Str("triple", bin.Platform).
				Str("runner", runner.CommandLine()).
				Str("source", runner.Source).
				Msg("Using target runner")
		}
		runners[bin.Platform] = runner
	}
	runnerFor := func(b *testlist.TestBinary) *targetrunner.TargetRunner {
		return runners[b.Platform]
	}

	runIgnored := profile.RunIgnored
	if v := ctx.String("run-ignored"); v != "" {
		runIgnored = v
	}
	mode, err := testlist.ParseRunIgnoredMode(runIgnored)
	if err != nil {
		return nil, err
	}

	list, err := testlist.New(ctx.Context, binaries, runnerFor, testlist.ListSettings{
		Filter: testlist.TestFilter{
			Patterns:   ctx.Args().Slice(),
			RunIgnored: mode,
		},
		Logger: a.logger,
	})
	if err != nil {
		return nil, err
	}

	if spec := ctx.String("partition"); spec != "" {
		builder, err := partition.ParseSpec(spec)
		if err != nil {
			return nil, err
		}
		part := builder.Build()
		list = list.Filter(func(tc testlist.TestCase) bool {
			return part.Include(tc.Binary.ID(), tc.Name)
		})
		a.logger.Debug().Str("partition", spec).Int("tests", list.Len()).Msg("Partition applied")
	}

	return &inputs{
		cfg:       cfg,
		profile:   profile,
		list:      list,
		runnerFor: runnerFor,
	}, nil
}

func (a *App) readBinaries(ctx *clilib.Context, defaultTriple string) ([]*testlist.TestBinary, error) {
	var graph *testlist.PackageGraph
	if path := ctx.String("package-graph"); path != "" {
		var err error
		graph, err = testlist.LoadPackageGraph(path)
		if err != nil {
			return nil, err
		}
	}

	metadataPath := ctx.String("binaries-metadata")
	f, err := os.Open(metadataPath)
	if err != nil {
		return nil, &testlist.FromMessagesError{
			Cause: testlist.FromMessagesRead,
			Err:   err,
		}
	}
	defer f.Close()

	binaries, err := testlist.FromMessages(f, graph, defaultTriple)
	if err != nil {
		return nil, err
	}
	if len(binaries) == 0 {
		return nil, fmt.Errorf("no test binaries found in %s", metadataPath)
	}
	a.logger.Debug().Int("binaries", len(binaries)).Msg("Build metadata ingested")
	return binaries, nil
}
