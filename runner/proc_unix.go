//go:build unix

package runner

// This file contains the unix process-group plumbing: each attempt runs
// as its own group leader so timeouts, cancellation and leak sweeps can
// kill the whole tree in one signal.

import (
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// setProcessGroup makes the spawned process a group leader; its pgid
// equals its pid.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup SIGKILLs every process in the group led by pid.
func killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// processGroupMembers returns the pids still alive in the group led by
// pid. The leader itself has already been reaped when this runs, so
// anything found here outlived the test.
func processGroupMembers(pid int) []int32 {
	pids, err := process.Pids()
	if err != nil {
		return nil
	}
	var members []int32
	for _, p := range pids {
		if int(p) == pid {
			continue
		}
		pgid, err := unix.Getpgid(int(p))
		if err != nil || pgid != pid {
			continue
		}
		members = append(members, p)
	}
	return members
}

// sweepProcessGroup kills the group repeatedly until no members remain,
// up to a bounded number of passes. Children may keep forking while being
// killed, so one signal is not always enough.
func sweepProcessGroup(pid int) {
	for i := 0; i < 5; i++ {
		killProcessGroup(pid)
		if len(processGroupMembers(pid)) == 0 {
			return
		}
	}
}
