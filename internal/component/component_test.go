package component

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_Valid(t *testing.T) {
	valid := []Result{
		PassAccepted, PassWarning,
		FailRejected, FailTimedOut, FailChildFailed, FailParentFailed,
		NotRunFiltered, NotRunIgnored, NotRunParentFailed,
	}
	for _, r := range valid {
		assert.True(t, r.Valid(), "expected %v to be valid", r)
	}

	assert.False(t, Result{OutcomePass, ReasonRejected}.Valid())
	assert.False(t, Result{OutcomeFail, ReasonAccepted}.Valid())
}

func TestResult_Passed(t *testing.T) {
	assert.True(t, PassAccepted.Passed())
	assert.True(t, PassWarning.Passed())
	assert.True(t, NotRunFiltered.Passed())
	assert.False(t, FailRejected.Passed())
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "pass:accepted", PassAccepted.String())
	assert.Equal(t, "fail:timed_out", FailTimedOut.String())
	assert.Equal(t, "not_run:filtered", NotRunFiltered.String())
}

func TestArtifactMap_PreservesInsertionOrder(t *testing.T) {
	m := NewArtifactMap()
	m.Set("b", InlineArtifact("2"))
	m.Set("a", InlineArtifact("1"))
	m.Set("b", InlineArtifact("2-replaced"))

	assert.Equal(t, []string{"b", "a"}, m.Keys())
	assert.Equal(t, 2, m.Len())

	v, ok := m.Get("b")
	require.True(t, ok)
	bytes, err := v.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "2-replaced", string(bytes))
}

func TestDescription_IsRoot(t *testing.T) {
	root := Description{ID: 0, ParentID: 0}
	assert.True(t, root.IsRoot())

	leaf := Description{ID: 3, ParentID: 0}
	assert.False(t, leaf.IsRoot())
}

func TestSortSiblingsByPath(t *testing.T) {
	nodes := []*Node{
		{Description: Description{Identity: Identity{Path: "a::z"}}},
		{Description: Description{Identity: Identity{Path: "a::b"}}},
		{Description: Description{Identity: Identity{Path: "a::m"}}},
	}
	SortSiblingsByPath(nodes)

	paths := make([]string, len(nodes))
	for i, n := range nodes {
		paths[i] = n.Description.Identity.Path
	}
	assert.Equal(t, []string{"a::b", "a::m", "a::z"}, paths)
}

func TestNode_IsLeaf(t *testing.T) {
	suite := &Node{Description: Description{Type: Suite}}
	test := &Node{Description: Description{Type: Test}}

	assert.False(t, suite.IsLeaf())
	assert.True(t, test.IsLeaf())
}

func TestFileArtifact_NoReaderErrors(t *testing.T) {
	a := FileArtifact{Path: "somefile"}
	_, err := a.Bytes()
	assert.Error(t, err)
}

func TestTimingAcceptance_NilThresholdsAllowed(t *testing.T) {
	acc := AcceptanceCriteria{Timing: TimingAcceptance{}}
	assert.Nil(t, acc.Timing.WarnThreshold)
	assert.Nil(t, acc.Timing.CriticalThreshold)

	w := time.Second
	acc.Timing.WarnThreshold = &w
	assert.Equal(t, time.Second, *acc.Timing.WarnThreshold)
}
