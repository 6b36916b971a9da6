// Package scheduler drives a tree's task state machine to completion: it
// polls for runnable leaves, dispatches each to an executor under a global
// concurrency budget, and feeds finalized reports back into both the state
// machine and the results channel.
//
// The semaphore-gated dispatch loop generalizes the source test runner's
// worker-pool loop (a fixed goroutine pool pulling from a work channel) into
// a pull-based poll/dispatch cycle driven by the task state machine rather
// than a flat queue, since sibling concurrency mode varies per suite.
package scheduler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/executor"
	"github.com/stratumtest/stratum/internal/report"
	"github.com/stratumtest/stratum/internal/results"
	"github.com/stratumtest/stratum/internal/taskstate"
)

// Scheduler runs one tree to completion against a single global concurrency
// budget, regardless of how many suites are simultaneously contributing
// runnable leaves.
type Scheduler struct {
	Executor    executor.Executor
	MaxInFlight int
}

// New returns a scheduler with the given executor and concurrency budget.
func New(exec executor.Executor, maxInFlight int) *Scheduler {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Scheduler{Executor: exec, MaxInFlight: maxInFlight}
}

// Run polls the machine until its Len reaches zero, dispatching each
// runnable leaf to the executor under the semaphore budget, and recording
// every finalized report into summary and events. It returns once the whole
// tree is drained or ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, root *component.Node, machine *taskstate.Machine, events *results.Channel, summary *report.RunSummary) {
	sem := semaphore.NewWeighted(int64(s.MaxInFlight))
	var wg sync.WaitGroup

	events.Send(results.Event{Kind: results.EventRunStart, Summary: countTree(root)})

	var mu sync.Mutex // guards machine access: TryPoll/Complete are not
	// safe for concurrent use from multiple goroutines.

	for {
		mu.Lock()
		outcome := machine.TryPoll()
		mu.Unlock()

		switch outcome.Status {
		case taskstate.StatusNone:
			wg.Wait()
			events.Send(results.Event{Kind: results.EventRunComplete})
			return
		case taskstate.StatusBusy:
			if ctx.Err() != nil {
				wg.Wait()
				events.Send(results.Event{Kind: results.EventRunComplete})
				return
			}
			time.Sleep(time.Millisecond)
			continue
		}

		if outcome.Resolved != nil {
			rpt := component.RunReport{
				Description: outcome.Node.Description,
				Result:      *outcome.Resolved,
			}
			summary.Record(rpt)
			events.Send(results.Event{Kind: results.EventComponentReportComplete, Description: rpt.Description, Report: rpt})
			mu.Lock()
			machine.Complete(outcome.Path, *outcome.Resolved)
			mu.Unlock()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			events.Send(results.Event{Kind: results.EventRunComplete})
			return
		}

		wg.Add(1)
		go func(node *component.Node, path taskstate.NodePath) {
			defer wg.Done()
			defer sem.Release(1)

			rpt := s.Executor.Execute(ctx, node, events)
			summary.Record(rpt)
			events.Send(results.Event{Kind: results.EventComponentReportComplete, Description: rpt.Description, Report: rpt})

			mu.Lock()
			machine.Complete(path, rpt.Result)
			mu.Unlock()
		}(outcome.Node, outcome.Path)
	}
}

func countTree(n *component.Node) results.RunStartSummary {
	var s results.RunStartSummary
	var walk func(node *component.Node)
	walk = func(node *component.Node) {
		s.SuiteCount++
		s.SetupCount += len(node.Setups)
		s.TeardownCount += len(node.Teardowns)
		s.TestCount += len(node.Tests)
		for _, child := range node.Suites {
			walk(child)
		}
	}
	walk(n)
	return s
}
