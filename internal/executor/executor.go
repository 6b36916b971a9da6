// Package executor runs a single component leaf: in-process with panic
// recovery and a deadline, or as a re-exec'd child process. Both share one
// contract so the scheduler never needs to know which is in play.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/fixture"
	"github.com/stratumtest/stratum/internal/results"
)

// Executor runs one leaf component and returns its finalized report. It
// does not send the ReportComplete event; that is the scheduler's
// responsibility once it has also updated the task state machine.
type Executor interface {
	Execute(ctx context.Context, node *component.Node, events *results.Channel) component.RunReport
}

// InProcess runs the leaf's delegate on the current process, offloading
// sync delegates to a goroutine via the fixture adapter and enforcing the
// leaf's critical threshold as a context deadline.
type InProcess struct{}

// NewInProcess returns the in-process executor.
func NewInProcess() *InProcess { return &InProcess{} }

func (e *InProcess) Execute(ctx context.Context, node *component.Node, events *results.Channel) component.RunReport {
	events.Send(results.Event{Kind: results.EventComponentStart, Description: node.Description})

	runCtx := ctx
	var cancel context.CancelFunc
	if node.Acceptance.Timing.CriticalThreshold != nil {
		runCtx, cancel = context.WithTimeout(ctx, *node.Acceptance.Timing.CriticalThreshold)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	artifacts := component.NewArtifactMap()
	start := time.Now()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fixture.PanicValue{Value: r}
			}
		}()
		if node.Invoke == nil {
			errCh <- fmt.Errorf("component %q has no invokable delegate", node.Description.Identity.Path)
			return
		}
		errCh <- node.Invoke.Invoke(runCtx)
	}()

	var (
		invokeErr error
		timedOut  bool
	)
	select {
	case invokeErr = <-errCh:
	case <-runCtx.Done():
		timedOut = true
		events.Send(results.Event{Kind: results.EventComponentTimeout, Description: node.Description})
	}

	elapsed := time.Since(start)
	result := classify(node, invokeErr, timedOut, elapsed, artifacts)

	return component.RunReport{
		Description: node.Description,
		Result:      result,
		TimeTaken:   elapsed,
		Artifacts:   artifacts,
		Acceptance:  node.Acceptance,
	}
}

func classify(node *component.Node, invokeErr error, timedOut bool, elapsed time.Duration, artifacts *component.ArtifactMap) component.Result {
	var panicked fixture.PanicValue
	if errors.As(invokeErr, &panicked) {
		artifacts.Set("panic", component.InlineArtifact(fmt.Sprintf("%v", panicked.Value)))
		return component.FailRejected
	}
	if timedOut {
		return component.FailTimedOut
	}
	if invokeErr != nil {
		artifacts.Set("error", component.InlineArtifact(invokeErr.Error()))
		return component.FailRejected
	}

	warn := node.Acceptance.Timing.WarnThreshold
	crit := node.Acceptance.Timing.CriticalThreshold
	if warn == nil || elapsed <= *warn {
		return component.PassAccepted
	}
	if crit == nil || elapsed <= *crit {
		return component.PassWarning
	}
	// Finished before the deadline fired but after its own critical
	// threshold (can happen with coarse scheduler timing); still a pass.
	return component.PassWarning
}
