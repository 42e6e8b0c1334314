package service

import (
	"context"
	"errors"
	"fmt"
)

// Action is one reversible step of a batch.
type Action struct {
	Name string
	Undo func(ctx context.Context) error
}

// TxLog records the reversible steps a batch has completed so far, so a
// failed batch can be unwound in reverse order.
type TxLog struct {
	actions []Action
}

// Record appends an undo step.
func (t *TxLog) Record(name string, undo func(ctx context.Context) error) {
	t.actions = append(t.actions, Action{Name: name, Undo: undo})
}

// Len returns the number of recorded steps.
func (t *TxLog) Len() int { return len(t.actions) }

// Rollback runs every undo step, newest first, and empties the log. It keeps
// going past failures and returns them joined.
func (t *TxLog) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(t.actions) - 1; i >= 0; i-- {
		a := t.actions[i]
		if err := a.Undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", a.Name, err))
		}
	}
	t.actions = nil
	return errors.Join(errs...)
}

// Commit forgets every recorded step.
func (t *TxLog) Commit() { t.actions = nil }
