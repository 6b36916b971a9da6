//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so a
// timeout can kill the whole tree it may have spawned, not just the
// immediate child.
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup signals the whole process group the child leads.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
