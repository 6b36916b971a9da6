// Package fixture uniformizes the four delegate callable shapes a user can
// register (sync/async, with/without context) into one invocable unit, and
// carries the acceptance criteria + artifact buffer that accompany a
// single invocation. It is the "fixture adapter" that sits between a
// registration record and the executor.
package fixture

import (
	"context"
	"fmt"

	"github.com/stratumtest/stratum/internal/component"
	"github.com/stratumtest/stratum/internal/params"
)

// Shape tags which of the four callable forms a Delegate holds.
type Shape int

const (
	SyncNoCtx Shape = iota
	SyncCtx
	AsyncNoCtx
	AsyncCtx
)

// ExecutionContext is handed to Ctx-shaped delegates. A fresh copy is
// constructed for each invocation; Parameters is a shared read-only handle.
type ExecutionContext struct {
	Parameters  *params.Parameters
	Description component.Description
}

// Delegate is a tagged variant over the four callable shapes a user
// registers. Exactly one of the function fields matching Shape is set.
// This mirrors the flat struct-plus-tag style used elsewhere in this
// codebase in place of a Go interface per shape, since the set of shapes
// is closed and small.
type Delegate struct {
	Shape Shape

	SyncNoCtx  func() error
	SyncCtx    func(ExecutionContext) error
	AsyncNoCtx func(ctx context.Context) error
	AsyncCtx   func(ctx context.Context, ec ExecutionContext) error
}

// Validate checks that the function field matching Shape is non-nil.
func (d Delegate) Validate() error {
	switch d.Shape {
	case SyncNoCtx:
		if d.SyncNoCtx == nil {
			return fmt.Errorf("fixture: SyncNoCtx delegate is nil")
		}
	case SyncCtx:
		if d.SyncCtx == nil {
			return fmt.Errorf("fixture: SyncCtx delegate is nil")
		}
	case AsyncNoCtx:
		if d.AsyncNoCtx == nil {
			return fmt.Errorf("fixture: AsyncNoCtx delegate is nil")
		}
	case AsyncCtx:
		if d.AsyncCtx == nil {
			return fmt.Errorf("fixture: AsyncCtx delegate is nil")
		}
	default:
		return fmt.Errorf("fixture: unknown shape %d", d.Shape)
	}
	return nil
}

// Adapter pairs a Delegate with the ExecutionContext it will be invoked
// with, and implements component.Invoker.
type Adapter struct {
	delegate Delegate
	ec       ExecutionContext
}

// New returns an Adapter ready to invoke delegate with the given context.
func New(delegate Delegate, ec ExecutionContext) *Adapter {
	return &Adapter{delegate: delegate, ec: ec}
}

// Invoke runs the wrapped delegate, promoting sync shapes to a future by
// running them on a goroutine and awaiting completion or cancellation.
// Async shapes are called directly and awaited in place; their panics are
// not recovered here and reach the executor, which recovers and classifies
// them. Sync shapes' panics are recovered by runSync and returned as a
// PanicValue error.
func (a *Adapter) Invoke(ctx context.Context) error {
	switch a.delegate.Shape {
	case AsyncNoCtx:
		return a.delegate.AsyncNoCtx(ctx)
	case AsyncCtx:
		return a.delegate.AsyncCtx(ctx, a.ec)
	case SyncNoCtx:
		return a.runSync(ctx, func() error { return a.delegate.SyncNoCtx() })
	case SyncCtx:
		return a.runSync(ctx, func() error { return a.delegate.SyncCtx(a.ec) })
	default:
		return fmt.Errorf("fixture: unknown shape %d", a.delegate.Shape)
	}
}

// PanicValue carries a recovered panic payload across the goroutine
// boundary introduced by runSync, so the executor can classify it exactly
// as it would a panic raised on its own task.
type PanicValue struct {
	Value interface{}
}

func (p PanicValue) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// runSync offloads a synchronous call to its own goroutine so the executor
// can still enforce a deadline around it. Go has no distinct "blocking
// pool" the way the async runtimes in the source ecosystem do; an ordinary
// goroutine serves the same purpose here. If ctx is done first, Invoke
// returns the context error and the goroutine is left to finish on its own
// (the same leak-on-timeout behavior the executor contract calls for).
//
// A panic inside call is recovered here, not left to crash the process,
// because recover() only catches panics raised on the same goroutine that
// calls it; the executor's own recover cannot see across this boundary.
func (a *Adapter) runSync(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- PanicValue{Value: r}
			}
		}()
		done <- call()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
