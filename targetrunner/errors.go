package targetrunner

// This file contains the closed error set for target runner resolution.
// All of these are fatal before any test is scheduled.

import "fmt"

// TripleParseError indicates a platform triple that does not follow the
// arch-vendor-os[-env] grammar.
type TripleParseError struct {
	Input string
}

func (e *TripleParseError) Error() string {
	return fmt.Sprintf("invalid platform triple %q (expected arch-vendor-os or arch-vendor-os-env)", e.Input)
}

// UnknownHostPlatformError indicates the host platform has no known triple.
// It is only fatal when the target triple was left implicit.
type UnknownHostPlatformError struct {
	GOOS   string
	GOARCH string
}

func (e *UnknownHostPlatformError) Error() string {
	return fmt.Sprintf("unable to determine host triple for %s/%s", e.GOOS, e.GOARCH)
}

// InvalidEnvironmentVarError indicates a runner override environment
// variable whose content is not valid UTF-8.
type InvalidEnvironmentVarError struct {
	Key string
}

func (e *InvalidEnvironmentVarError) Error() string {
	return fmt.Sprintf("environment variable %s contains invalid UTF-8", e.Key)
}

// BinaryNotSpecifiedError indicates a runner override that matched but
// resolved to an empty command. An empty override is an error, never a
// fallback to direct invocation.
type BinaryNotSpecifiedError struct {
	Key   string
	Value string
}

func (e *BinaryNotSpecifiedError) Error() string {
	return fmt.Sprintf("runner defined by %s does not specify a binary (value: %q)", e.Key, e.Value)
}

// NonUTF8PathError indicates a filesystem path that is not valid UTF-8.
type NonUTF8PathError struct {
	Path string
}

func (e *NonUTF8PathError) Error() string {
	return fmt.Sprintf("path is not valid UTF-8: %q", e.Path)
}
