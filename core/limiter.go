package core

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrModelCallLimit is returned once a run exceeds its model call budget.
var ErrModelCallLimit = errors.New("exceeded max model calls")

// ModelLimiter counts model calls of one run, including the calls of
// parallel children sharing it. A limit of 0 means unlimited.
type ModelLimiter struct {
	limit int64
	calls atomic.Int64
}

func NewModelLimiter(limit int) *ModelLimiter {
	return &ModelLimiter{limit: int64(limit)}
}

// Increment records a call and fails once the budget is exceeded.
func (ml *ModelLimiter) Increment() error {
	n := ml.calls.Add(1)
	if ml.limit > 0 && n > ml.limit {
		return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.limit)
	}
	return nil
}

func (ml *ModelLimiter) Count() int { return int(ml.calls.Load()) }

// Remaining returns -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.limit == 0 {
		return -1
	}
	return int(max(ml.limit-ml.calls.Load(), 0))
}
