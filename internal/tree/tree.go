// Package tree builds the component tree from a flat, unordered list of
// registration records: sorting, suite-prefix insertion, intermediate
// suite synthesis, attribute inheritance, and filter marking.
//
// The insertion/lookup shape (a map keyed by a stable identifier, with
// dependents derived by walking stored parent links) generalizes the
// dependency graph's AddNode/Get/Dependents pattern from a flat service
// graph to a nested suite tree.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/fixture"
	"github.com/stratumtest/stratum/internal/params"
	"github.com/stratumtest/stratum/internal/registration"
)

const pathSeparator = "::"

// BuildError is returned when a set of registration records cannot be
// turned into a valid tree.
type BuildError struct {
	Kind string // "duplicate_path" | "unknown_attribute" | "malformed_duration"
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build error (%s) at %q: %v", e.Kind, e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Builder constructs a component tree. It holds no state between calls to
// Build; each call starts fresh.
type Builder struct {
	Parameters *params.Parameters
}

// New returns a Builder that will apply p's active filter when building.
func New(p *params.Parameters) *Builder {
	return &Builder{Parameters: p}
}

type builderState struct {
	suitesByPath map[string]*component.Node
	seenPaths    map[string]bool
	nextID       uint64
}

func (s *builderState) allocID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// Build constructs the tree. Records need not be presented in any
// particular order; they are sorted internally by path.
func (b *Builder) Build(records []registration.Record) (*component.Node, error) {
	sorted := make([]registration.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	st := &builderState{
		suitesByPath: make(map[string]*component.Node),
		seenPaths:    make(map[string]bool),
	}

	root := &component.Node{
		Description: component.Description{
			ID:       0,
			Type:     component.Suite,
			Identity: component.Identity{Name: "", Path: ""},
		},
		Attributes: defaultRootAttributes(b.Parameters),
	}
	root.Description.ParentID = root.Description.ID
	root.Description.ParentIdentity = root.Description.Identity
	root.Entered = true
	st.nextID = 1
	st.suitesByPath[""] = root

	for _, rec := range sorted {
		if rec.Path == "" {
			return nil, &BuildError{Kind: "duplicate_path", Path: rec.Path, Err: fmt.Errorf("the empty path is reserved for the implicit root")}
		}
		if st.seenPaths[rec.Path] {
			return nil, &BuildError{Kind: "duplicate_path", Path: rec.Path, Err: fmt.Errorf("path registered more than once")}
		}
		st.seenPaths[rec.Path] = true

		overrides, err := rec.Attributes.Resolve()
		if err != nil {
			return nil, &BuildError{Kind: "malformed_duration", Path: rec.Path, Err: err}
		}

		switch rec.Kind {
		case component.Suite:
			suite, err := b.ensureSuite(st, rec.Path)
			if err != nil {
				return nil, err
			}
			suite.Attributes = applyOverrides(suite.Attributes, overrides)
			suite.Acceptance = deriveAcceptance(component.Suite, suite.Attributes)
			suite.Description.Location = rec.Location
			if rec.Attributes.Name != nil {
				suite.Description.Identity.Name = *rec.Attributes.Name
			}
		case component.Test, component.Setup, component.TearDown:
			parentPath := parentSuitePath(rec.Path)
			parent, err := b.ensureSuite(st, parentPath)
			if err != nil {
				return nil, err
			}
			attrs := applyOverrides(parent.Attributes, overrides)
			leaf := &component.Node{
				Description: component.Description{
					ID:             st.allocID(),
					Type:           rec.Kind,
					Identity:       component.Identity{Name: leafName(rec.Path, rec.Attributes.Name), Path: rec.Path},
					ParentIdentity: parent.Description.Identity,
					ParentID:       parent.Description.ID,
					Location:       rec.Location,
				},
				Attributes: attrs,
				Acceptance: deriveAcceptance(rec.Kind, attrs),
			}
			if rec.Delegate.SyncNoCtx != nil || rec.Delegate.SyncCtx != nil || rec.Delegate.AsyncNoCtx != nil || rec.Delegate.AsyncCtx != nil {
				ec := fixture.ExecutionContext{Parameters: b.Parameters, Description: leaf.Description}
				leaf.Invoke = fixture.New(rec.Delegate, ec)
			}
			switch rec.Kind {
			case component.Setup:
				parent.Setups = append(parent.Setups, leaf)
			case component.TearDown:
				parent.Teardowns = append(parent.Teardowns, leaf)
			default:
				parent.Tests = append(parent.Tests, leaf)
			}
		default:
			return nil, &BuildError{Kind: "unknown_attribute", Path: rec.Path, Err: fmt.Errorf("unknown component kind %v", rec.Kind)}
		}
	}

	for _, suite := range st.suitesByPath {
		component.SortSiblingsByPath(suite.Tests)
		component.SortSiblingsByPath(suite.Suites)
		component.SortSiblingsByPath(suite.Setups)
		component.SortSiblingsByPath(suite.Teardowns)
	}

	applyFilter(root, filterOf(b.Parameters))
	computeEntered(root)

	return root, nil
}

func filterOf(p *params.Parameters) string {
	if p == nil {
		return ""
	}
	return p.Filter
}

// ensureSuite returns the suite node at path, auto-creating it and any
// missing ancestors by inheriting attributes from the nearest declared
// ancestor.
func (b *Builder) ensureSuite(st *builderState, path string) (*component.Node, error) {
	if existing, ok := st.suitesByPath[path]; ok {
		return existing, nil
	}

	parentPath := parentSuitePath(path)
	parent, err := b.ensureSuite(st, parentPath)
	if err != nil {
		return nil, err
	}

	node := &component.Node{
		Description: component.Description{
			ID:             st.allocID(),
			Type:           component.Suite,
			Identity:       component.Identity{Name: leafName(path, nil), Path: path},
			ParentIdentity: parent.Description.Identity,
			ParentID:       parent.Description.ID,
		},
		Attributes: parent.Attributes,
	}
	node.Acceptance = deriveAcceptance(component.Suite, node.Attributes)
	parent.Suites = append(parent.Suites, node)
	st.suitesByPath[path] = node
	return node, nil
}

func parentSuitePath(path string) string {
	idx := strings.LastIndex(path, pathSeparator)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func leafName(path string, override *string) string {
	if override != nil {
		return *override
	}
	idx := strings.LastIndex(path, pathSeparator)
	if idx < 0 {
		return path
	}
	return path[idx+len(pathSeparator):]
}

func defaultRootAttributes(p *params.Parameters) component.Attributes {
	attrs := component.Attributes{
		TestConcurrency:  component.Parallel,
		SuiteConcurrency: component.Parallel,
	}
	if p != nil {
		warn := p.WarnThreshold
		crit := p.CriticalThreshold
		attrs.WarnThreshold = &warn
		attrs.CriticalThreshold = &crit
	}
	return attrs
}

// deriveAcceptance computes a node's AcceptanceCriteria from its kind and
// resolved attributes. Suites carry no timing acceptance of their own;
// bookends collapse warn and critical to the same value (their critical
// threshold); tests keep both thresholds as resolved.
func deriveAcceptance(kind component.Type, attrs component.Attributes) component.AcceptanceCriteria {
	switch kind {
	case component.Suite:
		return component.AcceptanceCriteria{AllowFail: attrs.AllowFail}
	case component.Setup, component.TearDown:
		return component.AcceptanceCriteria{
			AllowFail: false,
			Timing: component.TimingAcceptance{
				WarnThreshold:     attrs.CriticalThreshold,
				CriticalThreshold: attrs.CriticalThreshold,
			},
		}
	default: // Test
		return component.AcceptanceCriteria{
			AllowFail: attrs.AllowFail,
			Timing: component.TimingAcceptance{
				WarnThreshold:     attrs.WarnThreshold,
				CriticalThreshold: attrs.CriticalThreshold,
			},
		}
	}
}

// applyFilter marks every Test leaf under suite whose path does not match
// filter as Filtered. An empty filter leaves every test eligible.
func applyFilter(suite *component.Node, filter string) {
	if filter == "" {
		for _, s := range suite.Suites {
			applyFilter(s, filter)
		}
		return
	}
	for _, t := range suite.Tests {
		if t.Description.Identity.Path != filter {
			t.Filtered = true
		}
	}
	for _, s := range suite.Suites {
		applyFilter(s, filter)
	}
}

// computeEntered recursively determines, bottom-up, whether each suite was
// "entered" for bookend purposes: a suite with no tests and no nested
// suites is always entered (it exists purely to hold bookends); otherwise
// it is entered iff at least one of its own tests is unfiltered or at least
// one of its nested suites is entered.
func computeEntered(suite *component.Node) bool {
	entered := len(suite.Tests) == 0 && len(suite.Suites) == 0
	for _, t := range suite.Tests {
		if !t.Filtered {
			entered = true
		}
	}
	for _, s := range suite.Suites {
		if computeEntered(s) {
			entered = true
		}
	}
	suite.Entered = entered
	return entered
}

func applyOverrides(base component.Attributes, o registration.ResolvedOverrides) component.Attributes {
	out := base
	if o.Name != nil {
		out.Name = *o.Name
	}
	if o.Description != nil {
		out.Description = *o.Description
	}
	if o.AllowFail != nil {
		out.AllowFail = *o.AllowFail
	}
	if o.Ignore != nil {
		out.Ignore = *o.Ignore
	}
	if o.WarnThreshold != nil {
		out.WarnThreshold = o.WarnThreshold
	}
	if o.CriticalThreshold != nil {
		out.CriticalThreshold = o.CriticalThreshold
	}
	if o.ConcurrencyMode != nil {
		out.TestConcurrency = *o.ConcurrencyMode
		out.SuiteConcurrency = *o.ConcurrencyMode
	}
	if o.CascadeFailure != nil {
		out.CascadeFailure = *o.CascadeFailure
	}
	return out
}
