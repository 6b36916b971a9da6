// Package console implements the default results.Sink: a live spinner
// while a run is in flight, then a summary table with one row per component,
// grounded on the progress-spinner-plus-styled-table combination the CLI
// layer uses for long-running operations.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/report"
	"github.com/stratumtest/stratum/internal/results"
)

// defaultPathMaxLen is the default column width budget for a component's
// path in the summary table.
const defaultPathMaxLen = 60

// minPathMaxLen is the smallest DescMaxLen accepted by truncateComponentPath;
// below this there isn't room for any content plus "...".
const minPathMaxLen = 4

// truncateComponentPath collapses whitespace in a component path to single
// spaces and truncates it to maxLen runes, appending "..." when shortened.
// Operates on runes, not bytes, so it never splits a multi-byte character.
func truncateComponentPath(path string, maxLen int) string {
	if maxLen < minPathMaxLen {
		maxLen = minPathMaxLen
	}
	path = strings.Join(strings.Fields(path), " ")
	runes := []rune(path)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return path
}

// Sink renders run progress to a terminal: a spinner while components are
// in flight, and a final summary table once the run completes.
type Sink struct {
	Out          io.Writer
	Quiet        bool
	DetailLevel  string // "all" | "failures"
	DescMaxLen   int

	mu      sync.Mutex
	summary *report.RunSummary
	spin    *spinner.Spinner
	passed  int
	failed  int
	started int
	total   int
	rows    []component.RunReport
}

// New returns a console sink backed by summary, an aggregator the scheduler
// is also recording into directly.
func New(out io.Writer, summary *report.RunSummary, quiet bool, detailLevel string) *Sink {
	if detailLevel == "" {
		detailLevel = "all"
	}
	return &Sink{
		Out:         out,
		Quiet:       quiet,
		DetailLevel: detailLevel,
		DescMaxLen:  defaultPathMaxLen,
		summary:     summary,
	}
}

func (s *Sink) Consume(e results.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case results.EventRunStart:
		s.total = e.Summary.SetupCount + e.Summary.TestCount + e.Summary.TeardownCount
		if !s.Quiet {
			s.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.spin.Writer = s.Out
			s.spin.Suffix = fmt.Sprintf(" running %d components...", s.total)
			s.spin.Start()
		}
	case results.EventComponentStart:
		s.started++
		s.updateSuffix()
	case results.EventComponentTimeout:
		// surfaced via the eventual ReportComplete; nothing to render yet.
	case results.EventComponentReportComplete:
		s.rows = append(s.rows, e.Report)
		if e.Report.Result.Passed() {
			s.passed++
		} else {
			s.failed++
		}
		s.updateSuffix()
	case results.EventRunComplete:
		if s.spin != nil {
			s.spin.Stop()
		}
	}
}

func (s *Sink) updateSuffix() {
	if s.spin == nil {
		return
	}
	s.spin.Suffix = fmt.Sprintf(" %d/%d complete (%d passed, %d failed)", s.passed+s.failed, s.total, s.passed, s.failed)
}

// Finish renders the final summary table. Called once after the events
// channel closes.
func (s *Sink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(s.Out)
	t.AppendHeader(table.Row{"Component", "Type", "Result", "Time"})

	for _, r := range s.rows {
		if s.DetailLevel == "failures" && r.Result.Passed() {
			continue
		}
		t.AppendRow(table.Row{
			truncateComponentPath(r.Description.Identity.Path, s.DescMaxLen),
			r.Description.Type.String(),
			colorizeResult(r.Result),
			r.TimeTaken.Round(time.Millisecond).String(),
		})
	}
	t.Render()

	overall := s.summary.Overall()
	fmt.Fprintf(s.Out, "\n%d passed, %d failed, %d not run\n",
		overall.PassAccepted+overall.PassWarning,
		overall.FailRejected+overall.FailTimedOut+overall.FailChildFailed+overall.FailParentFailed,
		overall.NotRunFiltered+overall.NotRunIgnored+overall.NotRunParentFailed)
}

func colorizeResult(r component.Result) string {
	switch r.Outcome {
	case component.OutcomePass:
		if r.Reason == component.ReasonWarning {
			return text.Colors{text.FgHiYellow, text.Bold}.Sprint(r.String())
		}
		return text.Colors{text.FgHiGreen, text.Bold}.Sprint(r.String())
	case component.OutcomeFail:
		return text.Colors{text.FgHiRed, text.Bold}.Sprint(r.String())
	default:
		return text.Faint.Sprint(r.String())
	}
}
