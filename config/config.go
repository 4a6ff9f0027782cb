// Package config loads the TOML configuration file and resolves
// execution profiles. The rest of the system never reads configuration
// directly: the CLI resolves a profile once at startup and hands the
// already-resolved settings to the scheduler.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is where the configuration is looked up when no explicit
// path is given.
const DefaultPath = ".config/nextest.toml"

// DefaultProfileName is the profile used when none is requested.
const DefaultProfileName = "default"

// ConfigParseError indicates an unreadable or invalid configuration file.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("failed to parse config at %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// ProfileNotFoundError indicates an unknown requested profile. Known
// profile names are listed sorted for diagnosability.
type ProfileNotFoundError struct {
	Name  string
	Known []string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found (known profiles: %s)", e.Name, strings.Join(e.Known, ", "))
}

// Override is a per-test retry override: tests whose name contains Filter
// get Retries instead of the profile-wide count.
type Override struct {
	Filter  string `mapstructure:"filter"`
	Retries int    `mapstructure:"retries"`
}

// Profile is one resolved set of execution settings. Values not set in
// the named profile fall back to the default profile, then to built-in
// defaults.
type Profile struct {
	Name string

	Retries       int
	RetryDelay    time.Duration
	RetryBackoff  string
	RetryTimeouts bool

	TestThreads int
	Timeout     time.Duration
	LeakTimeout time.Duration
	FailFast    bool

	StatusLevel   string
	OutputDisplay string
	RunIgnored    string
	JUnitPath     string

	Overrides []Override
}

// Config is the parsed configuration file plus built-in defaults.
type Config struct {
	v    *viper.Viper
	path string
}

// Load reads the configuration at path. An empty path means DefaultPath,
// and a missing file at the default location is not an error: built-in
// defaults apply. An explicitly given path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Config{v: v, path: path}, nil
		}
		return nil, &ConfigParseError{Path: path, Err: err}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}
	return &Config{v: v, path: path}, nil
}

// Path returns the configuration file location this Config was read from.
func (c *Config) Path() string { return c.path }

// KnownProfiles returns all profile names, sorted.
func (c *Config) KnownProfiles() []string {
	names := map[string]struct{}{DefaultProfileName: {}}
	for name := range c.v.GetStringMap("profile") {
		names[name] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Profile resolves the named profile. An empty name selects the default
// profile.
func (c *Config) Profile(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfileName
	}
	known := c.KnownProfiles()
	found := false
	for _, k := range known {
		if k == name {
			found = true
			break
		}
	}
	if !found {
		return nil, &ProfileNotFoundError{Name: name, Known: known}
	}

	p := &Profile{
		Name:          name,
		RetryBackoff:  "none",
		RetryTimeouts: true,
		LeakTimeout:   100 * time.Millisecond,
		StatusLevel:   "pass",
		OutputDisplay: "immediate",
		RunIgnored:    "default",
	}

	layers := []string{DefaultProfileName}
	if name != DefaultProfileName {
		layers = append(layers, name)
	}
	for _, layer := range layers {
		if err := c.applyLayer(p, "profile."+layer); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// applyLayer folds one profile table into p, touching only keys the
// table actually sets.
func (c *Config) applyLayer(p *Profile, prefix string) error {
	setInt := func(key string, dst *int) {
		if c.v.IsSet(prefix + "." + key) {
			*dst = c.v.GetInt(prefix + "." + key)
		}
	}
	setBool := func(key string, dst *bool) {
		if c.v.IsSet(prefix + "." + key) {
			*dst = c.v.GetBool(prefix + "." + key)
		}
	}
	setString := func(key string, dst *string) {
		if c.v.IsSet(prefix + "." + key) {
			*dst = c.v.GetString(prefix + "." + key)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if c.v.IsSet(prefix + "." + key) {
			*dst = c.v.GetDuration(prefix + "." + key)
		}
	}

	setInt("retries", &p.Retries)
	setDuration("retry-delay", &p.RetryDelay)
	setString("retry-backoff", &p.RetryBackoff)
	setBool("retry-timeouts", &p.RetryTimeouts)
	setInt("test-threads", &p.TestThreads)
	setDuration("timeout", &p.Timeout)
	setDuration("leak-timeout", &p.LeakTimeout)
	setBool("fail-fast", &p.FailFast)
	setString("status-level", &p.StatusLevel)
	setString("output-display", &p.OutputDisplay)
	setString("run-ignored", &p.RunIgnored)
	setString("junit.path", &p.JUnitPath)

	if c.v.IsSet(prefix + ".overrides") {
		var overrides []Override
		if err := c.v.UnmarshalKey(prefix+".overrides", &overrides); err != nil {
			return &ConfigParseError{Path: c.path, Err: err}
		}
		p.Overrides = append(p.Overrides, overrides...)
	}
	return nil
}

// Runner returns the target runner configured for a platform triple,
// implementing the targetrunner.Config lookup.
func (c *Config) Runner(triple string) (string, bool) {
	key := "target." + triple + ".runner"
	if !c.v.IsSet(key) {
		return "", false
	}
	return c.v.GetString(key), true
}

// RetriesFor resolves the effective retry count for a test name, applying
// the profile's overrides in order; the first matching filter wins.
func (p *Profile) RetriesFor(testName string) int {
	for _, o := range p.Overrides {
		if o.Filter != "" && strings.Contains(testName, o.Filter) {
			return o.Retries
		}
	}
	return p.Retries
}
