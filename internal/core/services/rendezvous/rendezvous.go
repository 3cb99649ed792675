// Package rendezvous lets a blocking caller wait for a reply delivered later
// from another goroutine, one outstanding request at a time.
package rendezvous

import (
	"math"
	"sync"
	"time"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// MaxTimeout bounds WaitForReplyTimeout so the conversion to a time.Duration
// cannot overflow.
const MaxTimeout = time.Duration(math.MaxInt64)

// maxTimeoutSeconds is MaxTimeout in whole seconds.
const maxTimeoutSeconds = float64(math.MaxInt64 / int64(time.Second))

// Rendezvous accepts replies only for the request id set by InitNewRequest.
// Id 0 never matches.
type Rendezvous struct {
	mu          sync.Mutex
	current     uint64
	reply       domain.UserInputReply
	hasReply    bool
	interrupted bool
	changed     chan struct{}
}

func New() *Rendezvous {
	return &Rendezvous{changed: make(chan struct{})}
}

// notify wakes all waiters. Callers hold mu.
func (r *Rendezvous) notify() {
	close(r.changed)
	r.changed = make(chan struct{})
}

// InitNewRequest drops any pending reply or interrupt and makes id the only
// accepted request.
func (r *Rendezvous) InitNewRequest(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = id
	r.reply = domain.UserInputReply{}
	r.hasReply = false
	r.interrupted = false
	r.notify()
}

// CurrentRequest returns the active request id, 0 when none.
func (r *Rendezvous) CurrentRequest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SetClientReply stores reply when id is the active request and reply carries
// a value. Stale or mismatched replies are rejected.
func (r *Rendezvous) SetClientReply(id uint64, reply domain.UserInputReply) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == 0 || id != r.current || reply.IsEmpty() {
		return false
	}
	r.reply = reply
	r.hasReply = true
	r.notify()
	return true
}

// Interrupt makes the waiter for id return without a reply. The interrupt
// stays in effect until the next InitNewRequest.
func (r *Rendezvous) Interrupt(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == 0 || id != r.current {
		return
	}
	r.interrupted = true
	r.notify()
}

// WaitForReply blocks until a reply for id arrives or the request is interrupted.
func (r *Rendezvous) WaitForReply(id uint64) (bool, domain.UserInputReply) {
	return r.wait(id, nil)
}

// WaitForReplyTimeout is WaitForReply bounded by seconds. Negative or NaN
// values do not wait; values beyond MaxTimeout are clamped.
func (r *Rendezvous) WaitForReplyTimeout(id uint64, seconds float64) (bool, domain.UserInputReply) {
	var d time.Duration
	switch {
	case math.IsNaN(seconds) || seconds <= 0:
		d = 0
	case seconds >= maxTimeoutSeconds:
		d = MaxTimeout
	default:
		d = time.Duration(seconds * float64(time.Second))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	return r.wait(id, timer.C)
}

func (r *Rendezvous) wait(id uint64, timeout <-chan time.Time) (bool, domain.UserInputReply) {
	for {
		r.mu.Lock()
		if id == 0 || id != r.current || r.interrupted {
			r.mu.Unlock()
			return false, domain.UserInputReply{}
		}
		if r.hasReply {
			reply := r.reply
			r.current = 0
			r.hasReply = false
			r.reply = domain.UserInputReply{}
			r.mu.Unlock()
			return true, reply
		}
		changed := r.changed
		r.mu.Unlock()

		select {
		case <-changed:
		case <-timeout:
			return false, domain.UserInputReply{}
		}
	}
}
