package stratum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/params"
)

func TestOptions_ToOverrides_OnlySetsProvidedFields(t *testing.T) {
	o := Options{Name: "renamed", WarnThreshold: "2s"}
	ov := o.toOverrides()

	require.NotNil(t, ov.Name)
	assert.Equal(t, "renamed", *ov.Name)
	require.NotNil(t, ov.WarnThreshold)
	assert.Equal(t, "2s", *ov.WarnThreshold)
	assert.Nil(t, ov.Description)
	assert.Nil(t, ov.ConcurrencyMode)

	require.NotNil(t, ov.AllowFail)
	assert.False(t, *ov.AllowFail)
	require.NotNil(t, ov.Ignore)
	assert.False(t, *ov.Ignore)
}

func TestOptions_ToOverrides_CascadeFailureOnlySetWhenTrue(t *testing.T) {
	assert.Nil(t, Options{}.toOverrides().CascadeFailure)

	ov := Options{CascadeFailure: true}.toOverrides()
	require.NotNil(t, ov.CascadeFailure)
	assert.True(t, *ov.CascadeFailure)
}

func TestFindLeaf_LocatesNestedTest(t *testing.T) {
	grandchild := &component.Node{Description: component.Description{Type: component.Test, Identity: component.Identity{Path: "a::b::c"}}}
	child := &component.Node{
		Description: component.Description{Type: component.Suite, Identity: component.Identity{Path: "a::b"}},
		Tests:       []*component.Node{grandchild},
	}
	root := &component.Node{
		Description: component.Description{Type: component.Suite},
		Suites:      []*component.Node{child},
	}

	found := findLeaf(root, "a::b::c")
	require.NotNil(t, found)
	assert.Equal(t, "a::b::c", found.Description.Identity.Path)

	assert.Nil(t, findLeaf(root, "a::b::missing"))
}

func TestChildProcessExtraArgs_FormatsThresholdsInSeconds(t *testing.T) {
	p := params.Default()
	p.MaxConcurrency = 4

	args := childProcessExtraArgs(p)
	assert.Contains(t, args, "--max-concurrency")
	assert.Contains(t, args, "4")
	assert.Contains(t, args, "--warn-threshold-seconds")
	assert.Contains(t, args, "--critical-threshold-seconds")
}

func TestLoad_FlagOverridesWinOverFileDefaults(t *testing.T) {
	maxConcurrency := 7
	filter := "suite::only"

	merged, err := Load(t.TempDir(), Overrides{MaxConcurrency: &maxConcurrency, Filter: &filter})
	require.NoError(t, err)
	assert.Equal(t, 7, merged.MaxConcurrency)
	assert.Equal(t, "suite::only", merged.Filter)
}

func TestLoad_UnsetOverridesLeaveDefaultsInPlace(t *testing.T) {
	merged, err := Load(t.TempDir(), Overrides{})
	require.NoError(t, err)
	assert.Equal(t, params.Default().MaxConcurrency, merged.MaxConcurrency)
	assert.Equal(t, "", merged.Filter)
}

func TestRun_RejectsInvalidParameters(t *testing.T) {
	p := params.Default()
	p.MaxConcurrency = 0

	outcome := Run(context.Background(), RunOptions{Parameters: p})
	assert.Equal(t, 1, outcome.ExitCode)
}

func TestRun_EndToEnd_RecordsPassAndFailOutcomes(t *testing.T) {
	Test("registry_test_suite::passes", func() error { return nil }, Options{})
	Test("registry_test_suite::fails", func() error { return errors.New("nope") }, Options{})

	p := params.Default()
	p.Filter = ""
	outcome := Run(context.Background(), RunOptions{Parameters: p})

	require.NotNil(t, outcome.Summary)
	rollup, ok := outcome.Summary.Suite("registry_test_suite")
	require.True(t, ok)
	assert.Equal(t, 1, rollup.Counts.PassAccepted)
	assert.Equal(t, 1, rollup.Counts.FailRejected)
	assert.Equal(t, 1, outcome.ExitCode)
}

func TestRun_ChildProcessTarget_InvokesOnlyThatLeaf(t *testing.T) {
	invoked := false
	Test("registry_child_suite::only", func() error { invoked = true; return nil }, Options{})

	p := params.Default()
	p.ChildProcessTarget = "registry_child_suite::only"

	outcome := Run(context.Background(), RunOptions{Parameters: p})
	assert.Equal(t, 0, outcome.ExitCode)
	assert.True(t, invoked)
}
