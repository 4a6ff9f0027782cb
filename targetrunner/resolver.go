package targetrunner

// This file contains runner resolution: deciding, per platform triple,
// whether test binaries are invoked through a wrapper command or directly.
// Resolution is a pure function over snapshots captured at startup; the
// resolver never reads ambient process state.

import (
	"strings"
	"unicode/utf8"

	"al.essio.dev/pkg/shellescape"
)

// Config looks up a runner command configured for a platform triple.
// A Config implementation returns the raw command string and true when an
// entry exists for the triple.
type Config interface {
	Runner(triple string) (string, bool)
}

// TargetRunner is a resolved invocation wrapper. A nil *TargetRunner means
// direct invocation.
type TargetRunner struct {
	// Binary is the wrapper command. Never empty.
	Binary string
	// Args are the wrapper's leading arguments.
	Args []string
	// Source is the environment variable or config key the runner came from.
	Source string
}

// Wrap prefixes argv with the runner command. A nil receiver returns argv
// unchanged.
func (r *TargetRunner) Wrap(argv []string) []string {
	if r == nil {
		return argv
	}
	wrapped := make([]string, 0, 1+len(r.Args)+len(argv))
	wrapped = append(wrapped, r.Binary)
	wrapped = append(wrapped, r.Args...)
	return append(wrapped, argv...)
}

// CommandLine renders the wrapper as a shell-quoted string for display.
func (r *TargetRunner) CommandLine() string {
	if r == nil {
		return ""
	}
	return shellescape.QuoteCommand(append([]string{r.Binary}, r.Args...))
}

// SnapshotEnviron converts an os.Environ-style slice into the immutable
// lookup map Resolve consumes. Entries with non-UTF-8 content fail the
// snapshot; resolution must not silently drop overrides it cannot read.
func SnapshotEnviron(environ []string) (map[string]string, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if !utf8.ValidString(kv) {
			key, _, _ := strings.Cut(kv, "=")
			return nil, &InvalidEnvironmentVarError{Key: key}
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env, nil
}

// Resolve determines the runner for triple, checking the environment
// snapshot first and the configuration second. Environment wins when both
// define a runner for the same triple. No match anywhere means direct
// invocation (nil runner, nil error).
func Resolve(triple PlatformTriple, env map[string]string, cfg Config) (*TargetRunner, error) {
	envKey := triple.EnvKey()
	if value, ok := env[envKey]; ok {
		return runnerFromValue(envKey, value)
	}
	if cfg != nil {
		if value, ok := cfg.Runner(triple.String()); ok {
			return runnerFromValue(triple.ConfigKey(), value)
		}
	}
	return nil, nil
}

// runnerFromValue splits a matched override value into binary + args.
func runnerFromValue(key, value string) (*TargetRunner, error) {
	if !utf8.ValidString(value) {
		return nil, &InvalidEnvironmentVarError{Key: key}
	}
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, &BinaryNotSpecifiedError{Key: key, Value: value}
	}
	return &TargetRunner{
		Binary: fields[0],
		Args:   fields[1:],
		Source: key,
	}, nil
}
