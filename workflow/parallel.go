package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// OpFunc is one independent asynchronous operation.
type OpFunc func(ctx context.Context) error

// Op names an operation submitted to Join.
type Op struct {
	Name string
	Fn   OpFunc
}

// NewOp creates an Op.
func NewOp(name string, fn OpFunc) Op {
	return Op{Name: name, Fn: fn}
}

// Outcome is the terminal state of one operation.
type Outcome struct {
	Name     string
	Err      error
	Duration time.Duration
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Outcomes holds the results of a Join in submission order.
type Outcomes []Outcome

// Failed returns the outcomes that ended in an error.
func (o Outcomes) Failed() Outcomes {
	var failed Outcomes
	for _, oc := range o {
		if oc.Err != nil {
			failed = append(failed, oc)
		}
	}
	return failed
}

// Get returns the outcome for name.
func (o Outcomes) Get(name string) (Outcome, bool) {
	for _, oc := range o {
		if oc.Name == name {
			return oc, true
		}
	}
	return Outcome{}, false
}

// Err joins every failure into one error, or returns nil.
func (o Outcomes) Err() error {
	var errs []error
	for _, oc := range o {
		if oc.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", oc.Name, oc.Err))
		}
	}
	return errors.Join(errs...)
}

// Join starts every op and returns once all of them have finished. A failing
// op never cancels the others: each outcome is reported on its own. Ops must
// not depend on each other's side effects; values they capture are safe to
// read only after Join returns.
func Join(ctx context.Context, ops ...Op) Outcomes {
	outcomes := make(Outcomes, len(ops))
	if len(ops) == 0 {
		return outcomes
	}

	// Plain Group, not WithContext: a failure must not cancel siblings.
	var g errgroup.Group
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			start := time.Now()
			err := runOp(ctx, op)
			outcomes[i] = Outcome{Name: op.Name, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func runOp(ctx context.Context, op Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("op %s panicked: %v", op.Name, r)
		}
	}()
	if op.Fn == nil {
		return fmt.Errorf("op %s has no function", op.Name)
	}
	return op.Fn(ctx)
}
