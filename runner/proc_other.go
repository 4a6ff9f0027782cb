//go:build !unix

package runner

// Process groups are a unix concept; elsewhere only the direct child can
// be terminated and descendant scanning is unavailable.

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func processGroupMembers(pid int) []int32 { return nil }

func sweepProcessGroup(pid int) {}
