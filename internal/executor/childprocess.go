package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/results"
	"github.com/stratumtest/stratum/pkg/logging"
)

// ChildProcess re-execs the current test binary with
// --child-process-target=<path> for per-leaf subprocess isolation. The
// spawned process re-enters the same binary and, on seeing a
// child-process-target, runs only that one leaf before exiting.
type ChildProcess struct {
	// BinaryPath is the executable to re-exec; normally os.Args[0].
	BinaryPath string
	// ExtraArgs are forwarded ahead of --child-process-target, e.g.
	// the default timing thresholds the parent resolved.
	ExtraArgs []string
	// NewCommand constructs the subprocess command, overridable in
	// tests to avoid spawning a real process.
	NewCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	// RunID identifies the parent run, stamped onto audit events this
	// executor emits so a kill can be correlated back to its run.
	RunID string
}

// NewChildProcess returns a child-process executor targeting the current
// binary.
func NewChildProcess(extraArgs ...string) *ChildProcess {
	return &ChildProcess{
		BinaryPath: os.Args[0],
		ExtraArgs:  extraArgs,
		NewCommand: exec.CommandContext,
	}
}

func (e *ChildProcess) Execute(ctx context.Context, node *component.Node, events *results.Channel) component.RunReport {
	events.Send(results.Event{Kind: results.EventComponentStart, Description: node.Description})

	runCtx := ctx
	var cancel context.CancelFunc
	if node.Acceptance.Timing.CriticalThreshold != nil {
		runCtx, cancel = context.WithTimeout(ctx, *node.Acceptance.Timing.CriticalThreshold)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	args := append(append([]string{}, e.ExtraArgs...), childProcessTargetFlag(node.Description.Identity.Path))
	newCmd := e.NewCommand
	if newCmd == nil {
		newCmd = exec.CommandContext
	}
	cmd := newCmd(runCtx, e.BinaryPath, args...)
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	artifacts := component.NewArtifactMap()
	artifacts.Set("stdout", component.InlineArtifact(stdout.String()))
	artifacts.Set("stderr", component.InlineArtifact(stderr.String()))

	timedOut := runCtx.Err() != nil
	if !timedOut && runErr != nil {
		artifacts.Set("cause", component.InlineArtifact(runErr.Error()))
	}
	if timedOut {
		killProcessGroup(cmd)
		events.Send(results.Event{Kind: results.EventComponentTimeout, Description: node.Description})
		logging.Audit(logging.AuditEvent{
			Action:  "child_process_kill",
			Outcome: "success",
			RunID:   logging.TruncateRunID(e.RunID),
			Target:  node.Description.Identity.Path,
			Details: "critical threshold exceeded",
		})
	}

	result := classifyChildExit(timedOut, runErr != nil)

	return component.RunReport{
		Description: node.Description,
		Result:      result,
		TimeTaken:   elapsed,
		Artifacts:   artifacts,
		Acceptance:  node.Acceptance,
	}
}

func classifyChildExit(timedOut, failed bool) component.Result {
	if timedOut {
		return component.FailTimedOut
	}
	if failed {
		return component.FailRejected
	}
	return component.PassAccepted
}

// childProcessTargetFlag formats the flag text re-exec uses to select a
// single leaf, kept here so cmd/ and executor agree on its spelling
// without importing each other.
func childProcessTargetFlag(path string) string {
	return fmt.Sprintf("--child-process-target=%s", path)
}
