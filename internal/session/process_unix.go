//go:build !windows

package session

import (
	"os/exec"
	"syscall"
)

// killProcessGroup kills a launched runtime and its whole process group.
// The negative PID signals the group; ESRCH means it already exited.
func killProcessGroup(pid int, cmd *exec.Cmd) error {
	if pid > 0 {
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			if err != syscall.ESRCH {
				return err
			}
		}
	} else if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			if err.Error() != "os: process already finished" {
				return err
			}
		}
	}
	return nil
}

// setProcAttr makes the spawned runtime a process group leader so the whole
// group can be taken down on detach.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
