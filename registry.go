// Package stratum is the public registration surface a test binary's own
// package init() functions call into: Suite/Test/Setup/TearDown build up a
// process-global registry, and Run drives it to completion.
//
// The global-registry-plus-Run entrypoint follows the source crate's
// inventory-based component collection (every decorated function appends
// itself to a static registry at link time), adapted to Go's lack of
// compile-time attribute macros: registration happens at init() time
// instead of via a proc-macro, through explicit calls rather than a
// decorator.
package stratum

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/config"
	"github.com/stratumtest/stratum/internal/console"
	"github.com/stratumtest/stratum/internal/executor"
	"github.com/stratumtest/stratum/internal/fixture"
	"github.com/stratumtest/stratum/internal/params"
	"github.com/stratumtest/stratum/internal/registration"
	"github.com/stratumtest/stratum/internal/report"
	"github.com/stratumtest/stratum/internal/results"
	"github.com/stratumtest/stratum/internal/scheduler"
	"github.com/stratumtest/stratum/internal/taskstate"
	"github.com/stratumtest/stratum/internal/tree"
	"github.com/stratumtest/stratum/pkg/logging"
)

var (
	registryMu sync.Mutex
	registry   []registration.Record
)

// Options mirrors registration.AttributeOverrides in exported form, the
// knobs a call site can set when registering a component.
type Options struct {
	Name              string
	Description       string
	AllowFail         bool
	Ignore            bool
	WarnThreshold     string
	CriticalThreshold string
	ConcurrencyMode   string
	CascadeFailure    bool
}

func (o Options) toOverrides() registration.AttributeOverrides {
	var ov registration.AttributeOverrides
	if o.Name != "" {
		ov.Name = &o.Name
	}
	if o.Description != "" {
		ov.Description = &o.Description
	}
	ov.AllowFail = boolPtr(o.AllowFail)
	ov.Ignore = boolPtr(o.Ignore)
	if o.WarnThreshold != "" {
		ov.WarnThreshold = &o.WarnThreshold
	}
	if o.CriticalThreshold != "" {
		ov.CriticalThreshold = &o.CriticalThreshold
	}
	if o.ConcurrencyMode != "" {
		ov.ConcurrencyMode = &o.ConcurrencyMode
	}
	if o.CascadeFailure {
		ov.CascadeFailure = boolPtr(true)
	}
	return ov
}

func boolPtr(b bool) *bool { return &b }

func register(path string, kind component.Type, delegate fixture.Delegate, opts Options, loc component.Location) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, registration.Record{
		Path:       path,
		Kind:       kind,
		Delegate:   delegate,
		Attributes: opts.toOverrides(),
		Location:   loc,
	})
}

// Suite registers a nested suite node at path, applying opts as overrides
// inherited by everything nested beneath it. Suites need no delegate; the
// tree builder synthesizes any suite a leaf's path implies that was never
// registered explicitly.
func Suite(path string, opts Options) {
	register(path, component.Suite, fixture.Delegate{}, opts, component.Location{})
}

// Test registers a synchronous, context-free test leaf.
func Test(path string, fn func() error, opts Options) {
	register(path, component.Test, fixture.Delegate{Shape: fixture.SyncNoCtx, SyncNoCtx: fn}, opts, component.Location{})
}

// TestContext registers a context-aware async test leaf.
func TestContext(path string, fn func(context.Context) error, opts Options) {
	register(path, component.Test, fixture.Delegate{Shape: fixture.AsyncNoCtx, AsyncNoCtx: fn}, opts, component.Location{})
}

// Setup registers a synchronous setup leaf under the suite at the parent
// of path.
func Setup(path string, fn func() error, opts Options) {
	register(path, component.Setup, fixture.Delegate{Shape: fixture.SyncNoCtx, SyncNoCtx: fn}, opts, component.Location{})
}

// TearDown registers a synchronous teardown leaf under the suite at the
// parent of path.
func TearDown(path string, fn func() error, opts Options) {
	register(path, component.TearDown, fixture.Delegate{Shape: fixture.SyncNoCtx, SyncNoCtx: fn}, opts, component.Location{})
}

// RunOptions configures one invocation of Run.
type RunOptions struct {
	Parameters params.Parameters
	Out        *os.File
}

// Outcome is the result of a full run, suitable for os.Exit.
type Outcome struct {
	ExitCode int
	Summary  *report.RunSummary
}

// Run builds the registered tree, schedules it to completion, and renders
// a console summary, returning the process exit code the caller's main
// should propagate via os.Exit.
func Run(ctx context.Context, opts RunOptions) Outcome {
	p := opts.Parameters
	if err := p.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid parameters:", err)
		return Outcome{ExitCode: 1}
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logging.InitForCLI(logging.LevelInfo, os.Stderr)

	runID := uuid.NewString()
	logging.Info("Run", "starting run %s", logging.TruncateRunID(runID))

	registryMu.Lock()
	records := make([]registration.Record, len(registry))
	copy(records, registry)
	registryMu.Unlock()

	builder := tree.New(&p)
	root, err := builder.Build(records)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build component tree:", err)
		return Outcome{ExitCode: 1}
	}

	if p.IsChildProcess() {
		return runChildProcess(ctx, root, p)
	}

	machine := taskstate.NewMachine(root)
	summary := report.NewRunSummary(root)
	events := results.NewChannel(p.MaxConcurrency * 5)

	var exec executor.Executor = executor.NewInProcess()
	if p.UseChildProcesses {
		cp := executor.NewChildProcess(childProcessExtraArgs(p)...)
		cp.RunID = runID
		exec = cp
	}

	sink := console.New(out, summary, false, p.ConsoleOutputDetailLevel)
	drainDone := make(chan struct{})
	go func() {
		results.Drain(events, sink)
		close(drainDone)
	}()

	sched := scheduler.New(exec, p.MaxConcurrency)
	sched.Run(ctx, root, machine, events, summary)
	events.Close()
	<-drainDone

	return Outcome{ExitCode: summary.ExitCode(), Summary: summary}
}

// runChildProcess handles the re-exec'd single-leaf invocation: find the
// one leaf matching p.ChildProcessTarget and invoke it directly, mapping
// its outcome to a process exit code. STDOUT/STDERR are the only
// structured output surface the parent observes.
func runChildProcess(ctx context.Context, root *component.Node, p params.Parameters) Outcome {
	leaf := findLeaf(root, p.ChildProcessTarget)
	if leaf == nil {
		fmt.Fprintf(os.Stderr, "child-process-target %q not found in registered tree\n", p.ChildProcessTarget)
		return Outcome{ExitCode: 1}
	}
	if leaf.Invoke == nil {
		return Outcome{ExitCode: 0}
	}

	runCtx := ctx
	if leaf.Acceptance.Timing.CriticalThreshold != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, *leaf.Acceptance.Timing.CriticalThreshold)
		defer cancel()
	}

	if err := leaf.Invoke.Invoke(runCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return Outcome{ExitCode: 1}
	}
	return Outcome{ExitCode: 0}
}

func findLeaf(n *component.Node, path string) *component.Node {
	if n.Description.Identity.Path == path && n.IsLeaf() {
		return n
	}
	for _, group := range [][]*component.Node{n.Setups, n.Tests, n.Teardowns} {
		for _, child := range group {
			if child.Description.Identity.Path == path {
				return child
			}
		}
	}
	for _, s := range n.Suites {
		if found := findLeaf(s, path); found != nil {
			return found
		}
	}
	return nil
}

func childProcessExtraArgs(p params.Parameters) []string {
	args := []string{
		"--max-concurrency", fmt.Sprintf("%d", p.MaxConcurrency),
		"--warn-threshold-seconds", fmt.Sprintf("%d", int(p.WarnThreshold/time.Second)),
		"--critical-threshold-seconds", fmt.Sprintf("%d", int(p.CriticalThreshold/time.Second)),
	}
	return args
}

// Overrides carries explicit CLI flag values a caller actually set, as
// opposed to values cobra populated from a flag's own declared default.
// Load only overlays a field onto the config-file result when its pointer
// is non-nil, so an unset flag never clobbers config.yaml's own value.
type Overrides struct {
	MaxConcurrency           *int
	Filter                   *string
	UseChildProcesses        *bool
	ChildProcessTarget       *string
	WarnThreshold            *time.Duration
	CriticalThreshold        *time.Duration
	ConsoleOutput            *string
	ConsoleOutputStyle       *string
	ConsoleOutputDetailLevel *string
	ConsoleOutputEncoding    *string
	ConsoleOutputAnsiMode    *string
}

// Load resolves run parameters starting from the ambient config file (or
// the framework's own defaults, if no file is present), then overlays
// whichever overrides the caller actually set.
func Load(configPath string, overrides Overrides) (params.Parameters, error) {
	p, err := config.Load(configPath)
	if err != nil {
		return params.Parameters{}, err
	}

	if overrides.MaxConcurrency != nil {
		p.MaxConcurrency = *overrides.MaxConcurrency
	}
	if overrides.Filter != nil {
		p.Filter = *overrides.Filter
	}
	if overrides.UseChildProcesses != nil {
		p.UseChildProcesses = *overrides.UseChildProcesses
	}
	if overrides.ChildProcessTarget != nil {
		p.ChildProcessTarget = *overrides.ChildProcessTarget
	}
	if overrides.WarnThreshold != nil {
		p.WarnThreshold = *overrides.WarnThreshold
	}
	if overrides.CriticalThreshold != nil {
		p.CriticalThreshold = *overrides.CriticalThreshold
	}
	if overrides.ConsoleOutput != nil {
		p.ConsoleOutput = *overrides.ConsoleOutput
	}
	if overrides.ConsoleOutputStyle != nil {
		p.ConsoleOutputStyle = *overrides.ConsoleOutputStyle
	}
	if overrides.ConsoleOutputDetailLevel != nil {
		p.ConsoleOutputDetailLevel = *overrides.ConsoleOutputDetailLevel
	}
	if overrides.ConsoleOutputEncoding != nil {
		p.ConsoleOutputEncoding = *overrides.ConsoleOutputEncoding
	}
	if overrides.ConsoleOutputAnsiMode != nil {
		p.ConsoleOutputAnsiMode = *overrides.ConsoleOutputAnsiMode
	}
	return p, nil
}
