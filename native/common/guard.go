package common

import (
	"errors"
	"sync/atomic"
)

var ErrReentrantCall = errors.New("mutating operation already in progress")

// CallGuard is an exclusive-execution latch held around every mutating ledger
// operation. A second invocation while the latch is held fails fast instead of
// queueing, matching fully serialized transaction semantics.
type CallGuard struct {
	busy atomic.Bool
}

// Begin acquires the latch and returns its release function. The release must
// run on every exit path of the guarded operation, including failures.
func (g *CallGuard) Begin() (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.busy.Store(false) }, nil
}
