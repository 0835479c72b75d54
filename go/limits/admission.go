package limits

import (
	"golang.org/x/sync/semaphore"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// AdmissionGate bounds concurrent statement execution. Acquisition never
// blocks: a full gate rejects immediately so the caller can fail fast
// instead of queueing load onto a saturated warehouse.
type AdmissionGate struct {
	sem   *semaphore.Weighted
	limit int
}

// NewAdmissionGate returns a gate admitting at most limit concurrent
// executions.
func NewAdmissionGate(limit int) *AdmissionGate {
	if limit < 1 {
		limit = 1
	}
	return &AdmissionGate{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// TryAcquire claims a slot, returning an ADMISSION error when full. The
// release function must be called exactly once, typically via defer.
func (g *AdmissionGate) TryAcquire() (release func(), err error) {
	if !g.sem.TryAcquire(1) {
		return nil, protocol.AdmissionError(g.limit)
	}
	return func() { g.sem.Release(1) }, nil
}

// Limit returns the configured concurrency bound.
func (g *AdmissionGate) Limit() int { return g.limit }
