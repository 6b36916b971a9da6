// Package taskstate implements the pull-based task stream/state machine
// that presents a legal execution order to the scheduler: phase ordering
// within a suite (setups -> tests -> nested suites -> teardowns), the
// parallel/serial constraint on siblings, and cross-level cascade of
// setup/serial failures.
//
// The polling protocol (TryPoll/Complete/MaxConcurrency/Len) and the
// recursive composition - a suite is itself an item inside its parent's
// nested-suites phase - follow the iterator-style task stream used by the
// worker-pool dispatch loop in the source test runner, generalized from a
// flat scenario list with a single parallel/sequential switch into a tree
// of four-phase nodes.
package taskstate

import (
	"github.com/stratumtest/stratum/internal/component"
)

// NodePath identifies a dispatched leaf. Component IDs are assigned by a
// single monotonic counter at tree-build time, so a one-element path is
// already globally unique; Stream implementations route Complete calls by
// asking each live item whether it recognizes the path, rather than by
// threading an accumulated root-to-leaf path through every level.
type NodePath []uint64

// Status is the result of a TryPoll call.
type Status int

const (
	// StatusNext carries a runnable leaf.
	StatusNext Status = iota
	// StatusBusy means no leaf can run right now (concurrency
	// exhausted, or waiting on a prior phase/serial predecessor).
	StatusBusy
	// StatusNone means this stream is fully drained.
	StatusNone
)

// Outcome is the payload of a TryPoll call.
type Outcome struct {
	Status Status
	Node   *component.Node
	Path   NodePath

	// Resolved is set when the leaf must not actually be invoked (it
	// was filtered, ignored, or cascaded from a prior failure). The
	// caller still owns synthesizing a zero-duration report with this
	// result and calling Complete, keeping the dispatch loop uniform
	// whether or not the executor actually ran.
	Resolved *component.Result
}

// Stream is the polling interface shared by a single leaf, a phase of
// sibling items, and a whole suite (itself composed of four phases). A
// suite nested inside another suite's "nested suites" phase satisfies this
// same interface, so the scheduler never needs to special-case depth.
type Stream interface {
	TryPoll() Outcome
	// Complete reports a leaf's finalized result. It returns whether
	// this stream recognized the path as one of its own in-flight
	// items.
	Complete(path NodePath, result component.Result) bool
	// Poison marks every not-yet-dispatched item under this stream to
	// resolve to result instead of running, without disturbing items
	// already in flight or already finalized.
	Poison(result component.Result)
	// MaxConcurrency is the effective cap this stream could expose if
	// fully unconstrained; used for progress/estimation, not dispatch
	// gating (the scheduler enforces the global budget itself).
	MaxConcurrency() int
	// Len is the count of not-yet-finalized items reachable from here.
	Len() int
}

type leafState int

const (
	leafPending leafState = iota
	leafDispatched
	leafDone
)

// leafStream wraps a single Test/Setup/TearDown node.
type leafStream struct {
	node     *component.Node
	state    leafState
	resolved *component.Result
}

func newLeafStream(node *component.Node) *leafStream {
	ls := &leafStream{node: node}
	if node.Description.Type == component.Test && node.Filtered {
		r := component.NotRunFiltered
		ls.resolved = &r
	} else if node.Attributes.Ignore {
		r := component.NotRunIgnored
		ls.resolved = &r
	}
	return ls
}

func (l *leafStream) TryPoll() Outcome {
	switch l.state {
	case leafDone:
		return Outcome{Status: StatusNone}
	case leafDispatched:
		return Outcome{Status: StatusBusy}
	default:
		l.state = leafDispatched
		return Outcome{
			Status:   StatusNext,
			Node:     l.node,
			Path:     NodePath{l.node.Description.ID},
			Resolved: l.resolved,
		}
	}
}

func (l *leafStream) Complete(path NodePath, result component.Result) bool {
	if len(path) == 0 || path[0] != l.node.Description.ID {
		return false
	}
	if l.state != leafDispatched {
		return false
	}
	l.state = leafDone
	return true
}

func (l *leafStream) Poison(result component.Result) {
	if l.state == leafPending {
		r := result
		l.resolved = &r
	}
}

func (l *leafStream) MaxConcurrency() int { return 1 }

func (l *leafStream) Len() int {
	if l.state == leafDone {
		return 0
	}
	return 1
}

// itemPhase composes sibling items (leaves, or nested suite machines)
// under one concurrency mode.
type itemPhase struct {
	mode  component.ConcurrencyMode
	items []Stream
}

func newItemPhase(mode component.ConcurrencyMode, items []Stream) *itemPhase {
	return &itemPhase{mode: mode, items: items}
}

func (p *itemPhase) TryPoll() Outcome {
	if p.mode == component.Serial {
		for _, it := range p.items {
			switch outcome := it.TryPoll(); outcome.Status {
			case StatusNext:
				return outcome
			case StatusBusy:
				return Outcome{Status: StatusBusy}
			case StatusNone:
				continue
			}
		}
		return Outcome{Status: StatusNone}
	}

	sawBusy := false
	for _, it := range p.items {
		switch outcome := it.TryPoll(); outcome.Status {
		case StatusNext:
			return outcome
		case StatusBusy:
			sawBusy = true
		case StatusNone:
			// already drained, nothing to do
		}
	}
	if sawBusy {
		return Outcome{Status: StatusBusy}
	}
	return Outcome{Status: StatusNone}
}

func (p *itemPhase) Complete(path NodePath, result component.Result) bool {
	for idx, it := range p.items {
		if it.Complete(path, result) {
			if p.mode == component.Serial && result.Outcome == component.OutcomeFail {
				for j := idx + 1; j < len(p.items); j++ {
					p.items[j].Poison(component.NotRunParentFailed)
				}
			}
			return true
		}
	}
	return false
}

func (p *itemPhase) Poison(result component.Result) {
	for _, it := range p.items {
		it.Poison(result)
	}
}

func (p *itemPhase) MaxConcurrency() int {
	if p.mode == component.Serial {
		return 1
	}
	total := 0
	for _, it := range p.items {
		if it.Len() > 0 {
			total += it.MaxConcurrency()
		}
	}
	if total == 0 {
		return 1
	}
	return total
}

func (p *itemPhase) Len() int {
	total := 0
	for _, it := range p.items {
		total += it.Len()
	}
	return total
}

// Machine is a suite's task state machine: four ordered phases over
// setups, tests, nested suites, and teardowns.
type Machine struct {
	node        *component.Node
	phases      [4]Stream
	phaseIdx    int
	suiteFailed bool
}

const (
	phaseSetups = iota
	phaseTests
	phaseSuites
	phaseTeardowns
)

// NewMachine recursively builds a Machine for node and every suite nested
// under it.
func NewMachine(node *component.Node) *Machine {
	m := &Machine{node: node}

	setupItems := make([]Stream, len(node.Setups))
	for i, s := range node.Setups {
		setupItems[i] = newLeafStream(s)
	}
	testItems := make([]Stream, len(node.Tests))
	for i, t := range node.Tests {
		testItems[i] = newLeafStream(t)
	}
	suiteItems := make([]Stream, len(node.Suites))
	for i, s := range node.Suites {
		suiteItems[i] = NewMachine(s)
	}
	teardownItems := make([]Stream, len(node.Teardowns))
	for i, t := range node.Teardowns {
		teardownItems[i] = newLeafStream(t)
	}

	m.phases[phaseSetups] = newItemPhase(component.Serial, setupItems)
	m.phases[phaseTests] = newItemPhase(node.Attributes.TestConcurrency, testItems)
	m.phases[phaseSuites] = newItemPhase(node.Attributes.SuiteConcurrency, suiteItems)
	m.phases[phaseTeardowns] = newItemPhase(component.Serial, teardownItems)

	if !node.Entered {
		for _, ph := range m.phases {
			ph.Poison(component.NotRunFiltered)
		}
	}

	return m
}

func (m *Machine) TryPoll() Outcome {
	for m.phaseIdx < len(m.phases) {
		outcome := m.phases[m.phaseIdx].TryPoll()
		switch outcome.Status {
		case StatusNext, StatusBusy:
			return outcome
		case StatusNone:
			m.phaseIdx++
			continue
		}
	}
	return Outcome{Status: StatusNone}
}

func (m *Machine) Complete(path NodePath, result component.Result) bool {
	for i, ph := range m.phases {
		if ph.Complete(path, result) {
			if i == phaseSetups && result.Outcome == component.OutcomeFail {
				m.suiteFailed = true
				m.phases[phaseTests].Poison(component.NotRunParentFailed)
				m.phases[phaseSuites].Poison(component.NotRunParentFailed)
			}
			return true
		}
	}
	return false
}

func (m *Machine) Poison(result component.Result) {
	for _, ph := range m.phases {
		ph.Poison(result)
	}
}

func (m *Machine) MaxConcurrency() int {
	if m.phaseIdx >= len(m.phases) {
		return 0
	}
	return m.phases[m.phaseIdx].MaxConcurrency()
}

func (m *Machine) Len() int {
	total := 0
	for _, ph := range m.phases {
		total += ph.Len()
	}
	return total
}

// SuiteFailed reports whether a setup failure cascaded this suite's tests
// and nested suites to NotRun{ParentFailed}. Exposed for reporting/tests.
func (m *Machine) SuiteFailed() bool { return m.suiteFailed }
