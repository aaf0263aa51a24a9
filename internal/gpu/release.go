package gpu

// pendingRelease is a destruction deferred until the GPU has passed a
// submission serial.
type pendingRelease struct {
	after uint64
	label string
	fn    func() error
}

// ReleaseQueue is a frame-delayed free list. Resources that an in-flight
// frame may still read are queued with the serial of the last submission
// at the time they were retired, and destroyed once that serial completes.
//
// Entries are released in the order they were queued, so dependents queued
// before their dependencies (bind groups before buffers, pipelines before
// layouts) are destroyed first.
type ReleaseQueue struct {
	items []pendingRelease
}

// Defer queues fn to run once serial after has completed.
func (q *ReleaseQueue) Defer(after uint64, label string, fn func() error) {
	q.items = append(q.items, pendingRelease{after: after, label: label, fn: fn})
}

// Collect runs every release whose serial is at or below completed and
// returns how many ran. Release errors are logged.
func (q *ReleaseQueue) Collect(completed uint64) int {
	n := 0
	kept := q.items[:0]
	for _, it := range q.items {
		if it.after <= completed {
			q.run(it)
			n++
			continue
		}
		kept = append(kept, it)
	}
	clear(q.items[len(kept):])
	q.items = kept
	return n
}

// Drain runs every queued release regardless of serial. The caller must
// have waited for the device to go idle.
func (q *ReleaseQueue) Drain() int {
	n := len(q.items)
	for _, it := range q.items {
		q.run(it)
	}
	q.items = nil
	return n
}

// Len returns the number of queued releases.
func (q *ReleaseQueue) Len() int { return len(q.items) }

func (q *ReleaseQueue) run(it pendingRelease) {
	if err := it.fn(); err != nil {
		slogger().Warn("gpu: deferred release failed", "resource", it.label, "error", err)
	}
}
