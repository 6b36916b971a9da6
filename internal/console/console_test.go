package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/report"
	"github.com/stratumtest/stratum/internal/results"
)

func reportWith(path string, r component.Result) component.RunReport {
	return component.RunReport{
		Description: component.Description{Identity: component.Identity{Path: path}, Type: component.Test},
		Result:      r,
	}
}

func TestSink_Consume_TracksPassAndFailCounts(t *testing.T) {
	var buf bytes.Buffer
	summary := report.NewRunSummary(nil)
	s := New(&buf, summary, true, "all")

	s.Consume(results.Event{Kind: results.EventRunStart, Summary: results.RunStartSummary{TestCount: 2}})
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::a", component.PassAccepted)})
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::b", component.FailRejected)})

	assert.Equal(t, 1, s.passed)
	assert.Equal(t, 1, s.failed)
	require.Len(t, s.rows, 2)
}

func TestSink_Finish_RendersTableAndSummaryLine(t *testing.T) {
	var buf bytes.Buffer
	summary := report.NewRunSummary(nil)
	summary.Record(reportWith("suite::a", component.PassAccepted))
	summary.Record(reportWith("suite::b", component.FailRejected))

	s := New(&buf, summary, true, "all")
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::a", component.PassAccepted)})
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::b", component.FailRejected)})
	s.Finish()

	out := buf.String()
	assert.Contains(t, out, "suite::a")
	assert.Contains(t, out, "suite::b")
	assert.Contains(t, out, "1 passed, 1 failed, 0 not run")
}

func TestSink_Finish_FailuresOnlyFiltersPassingRows(t *testing.T) {
	var buf bytes.Buffer
	summary := report.NewRunSummary(nil)

	s := New(&buf, summary, true, "failures")
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::passing", component.PassAccepted)})
	s.Consume(results.Event{Kind: results.EventComponentReportComplete, Report: reportWith("suite::failing", component.FailRejected)})
	s.Finish()

	out := buf.String()
	assert.NotContains(t, out, "suite::passing")
	assert.Contains(t, out, "suite::failing")
}

func TestNew_DefaultsDetailLevelToAll(t *testing.T) {
	summary := report.NewRunSummary(nil)
	s := New(&bytes.Buffer{}, summary, true, "")
	assert.Equal(t, "all", s.DetailLevel)
}

func TestTruncateComponentPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world this is a long string", 15, "hello world ..."},
		{"newlines replaced with spaces", "hello\nworld", 20, "hello world"},
		{"multiple newlines collapsed", "hello\n\n\nworld", 20, "hello world"},
		{"carriage returns handled", "hello\r\nworld", 20, "hello world"},
		{"multiple spaces collapsed", "hello    world", 20, "hello world"},
		{"tabs collapsed", "hello\t\tworld", 20, "hello world"},
		{"maxLen below minimum is clamped", "suite::nested::deep::path", 1, "s..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncateComponentPath(tt.input, tt.maxLen))
		})
	}
}
