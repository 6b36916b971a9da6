// Package registration defines the record schema produced by the
// declarative front-end that turns user source into component
// declarations. The front-end itself (attribute macros, source scanning)
// is an external collaborator; this package only specifies what it must
// hand to the tree builder.
package registration

import (
	"fmt"
	"time"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/duration"
	"github.com/stratumtest/stratum/internal/fixture"
)

// AttributeOverrides mirrors the recognized override keys a registration
// record may carry. Duration fields are literals ("1s", "500ms") resolved
// at build time; unknown keys are the front-end's problem to reject before
// they ever reach here, but the builder re-validates by construction: this
// struct has no field for anything outside the recognized set.
type AttributeOverrides struct {
	Name              *string
	Description       *string
	AllowFail         *bool
	Ignore            *bool
	WarnThreshold     *string
	CriticalThreshold *string
	ConcurrencyMode   *string // "parallel" | "serial"
	CascadeFailure    *bool
}

// Resolve parses literal duration/mode fields into the builder's native
// types. It is the single point where a malformed literal surfaces as a
// build error.
func (o AttributeOverrides) Resolve() (ResolvedOverrides, error) {
	var r ResolvedOverrides
	r.Name = o.Name
	r.Description = o.Description
	r.AllowFail = o.AllowFail
	r.Ignore = o.Ignore
	r.CascadeFailure = o.CascadeFailure

	if o.WarnThreshold != nil {
		d, err := duration.Parse(*o.WarnThreshold)
		if err != nil {
			return r, err
		}
		r.WarnThreshold = &d
	}
	if o.CriticalThreshold != nil {
		d, err := duration.Parse(*o.CriticalThreshold)
		if err != nil {
			return r, err
		}
		r.CriticalThreshold = &d
	}
	if o.ConcurrencyMode != nil {
		switch *o.ConcurrencyMode {
		case "parallel":
			m := component.Parallel
			r.ConcurrencyMode = &m
		case "serial":
			m := component.Serial
			r.ConcurrencyMode = &m
		default:
			return r, fmt.Errorf("unknown concurrency_mode override %q", *o.ConcurrencyMode)
		}
	}
	return r, nil
}

type ResolvedOverrides struct {
	Name              *string
	Description       *string
	AllowFail         *bool
	Ignore            *bool
	WarnThreshold     *time.Duration
	CriticalThreshold *time.Duration
	ConcurrencyMode   *component.ConcurrencyMode
	CascadeFailure    *bool
}

// Record is one entry in the flat list the tree builder consumes. Path is
// the `::`-separated globally-unique identifier; Delegate is set for
// Test/Setup/TearDown kinds and left as the zero Delegate for Suite records
// (a suite registers only to carry attribute overrides and location).
type Record struct {
	Path       string
	Kind       component.Type
	Delegate   fixture.Delegate
	Attributes AttributeOverrides
	Location   component.Location
}
