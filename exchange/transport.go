package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
)

// ErrUnexpectedType is returned when a shipped object comes back as a
// different type.
var ErrUnexpectedType = errors.New("exchange: unexpected object type")

// Transport delivers a partial result from its producer to its consumer.
type Transport interface {
	// Ship sends obj under key and returns the object the consumer
	// receives. Callers must use the returned object, not obj.
	Ship(ctx context.Context, key Key, obj archive.Serializable) (archive.Serializable, error)
}

// Committer is implemented by transports that track step completion.
type Committer interface {
	CommitStep(ctx context.Context, job string, round int, step algorithm.StepID, nNodes int) error
}

// Direct is the in-process transport: the consumer receives obj itself.
type Direct struct{}

func (Direct) Ship(ctx context.Context, _ Key, obj archive.Serializable) (archive.Serializable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return obj, nil
}

// Send ships obj and returns the received object as T.
func Send[T archive.Serializable](ctx context.Context, t Transport, key Key, obj T) (T, error) {
	var zero T
	out, err := t.Ship(ctx, key, obj)
	if err != nil {
		return zero, fmt.Errorf("ship %s: %w", key, err)
	}
	got, ok := out.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s delivered %T, want %T", ErrUnexpectedType, key, out, zero)
	}
	return got, nil
}

// CommitStep commits the step when t tracks completion and does nothing
// otherwise.
func CommitStep(ctx context.Context, t Transport, job string, round int, step algorithm.StepID, nNodes int) error {
	c, ok := t.(Committer)
	if !ok {
		return nil
	}
	return c.CommitStep(ctx, job, round, step, nNodes)
}
