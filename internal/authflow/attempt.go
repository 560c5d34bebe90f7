package authflow

import "sync/atomic"

type outcome struct {
	code string
	err  error
}

// attempt is the ephemeral state of one authorization attempt. Callback,
// inline error and timeout race to resolve it; the CAS on resolved
// guarantees only the first trigger takes effect.
type attempt struct {
	resolved atomic.Bool
	ch       chan outcome
}

func newAttempt() *attempt {
	// buffered so the winning trigger never blocks on delivery
	return &attempt{ch: make(chan outcome, 1)}
}

// resolve delivers the outcome unless another trigger won earlier.
// Losing calls are no-ops and report false.
func (a *attempt) resolve(code string, err error) bool {
	if !a.resolved.CompareAndSwap(false, true) {
		return false
	}
	a.ch <- outcome{code: code, err: err}
	return true
}

// wait blocks until the attempt resolves.
func (a *attempt) wait() (string, error) {
	o := <-a.ch
	return o.code, o.err
}
