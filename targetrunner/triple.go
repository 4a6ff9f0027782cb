package targetrunner

// This file contains platform triple parsing and host triple detection.

import (
	"fmt"
	"runtime"
	"strings"
)

// PlatformTriple identifies a target platform as
// architecture-vendor-os[-environment].
type PlatformTriple struct {
	Arch   string
	Vendor string
	OS     string
	Env    string
}

// hostTriples maps GOOS/GOARCH pairs to their conventional platform triple.
var hostTriples = map[string]PlatformTriple{
	"linux/amd64":   {Arch: "x86_64", Vendor: "unknown", OS: "linux", Env: "gnu"},
	"linux/arm64":   {Arch: "aarch64", Vendor: "unknown", OS: "linux", Env: "gnu"},
	"linux/386":     {Arch: "i686", Vendor: "unknown", OS: "linux", Env: "gnu"},
	"darwin/amd64":  {Arch: "x86_64", Vendor: "apple", OS: "darwin"},
	"darwin/arm64":  {Arch: "aarch64", Vendor: "apple", OS: "darwin"},
	"windows/amd64": {Arch: "x86_64", Vendor: "pc", OS: "windows", Env: "msvc"},
	"freebsd/amd64": {Arch: "x86_64", Vendor: "unknown", OS: "freebsd"},
}

// ParseTriple parses a platform triple of the form arch-vendor-os or
// arch-vendor-os-env. Every segment must be non-empty.
func ParseTriple(s string) (PlatformTriple, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 && len(parts) != 4 {
		return PlatformTriple{}, &TripleParseError{Input: s}
	}
	for _, p := range parts {
		if p == "" {
			return PlatformTriple{}, &TripleParseError{Input: s}
		}
	}
	t := PlatformTriple{Arch: parts[0], Vendor: parts[1], OS: parts[2]}
	if len(parts) == 4 {
		t.Env = parts[3]
	}
	return t, nil
}

// HostTriple returns the triple of the platform this process runs on.
func HostTriple() (PlatformTriple, error) {
	t, ok := hostTriples[runtime.GOOS+"/"+runtime.GOARCH]
	if !ok {
		return PlatformTriple{}, &UnknownHostPlatformError{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
	}
	return t, nil
}

func (t PlatformTriple) String() string {
	if t.Env == "" {
		return fmt.Sprintf("%s-%s-%s", t.Arch, t.Vendor, t.OS)
	}
	return fmt.Sprintf("%s-%s-%s-%s", t.Arch, t.Vendor, t.OS, t.Env)
}

// EnvKey returns the environment variable consulted for this triple's
// runner override, e.g. NEXTEST_TARGET_X86_64_UNKNOWN_LINUX_GNU_RUNNER.
func (t PlatformTriple) EnvKey() string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '.':
			return '_'
		}
		return r
	}, strings.ToUpper(t.String()))
	return "NEXTEST_TARGET_" + mapped + "_RUNNER"
}

// ConfigKey returns the configuration key consulted for this triple's
// runner, e.g. target.x86_64-unknown-linux-gnu.runner.
func (t PlatformTriple) ConfigKey() string {
	return fmt.Sprintf("target.%s.runner", t)
}
