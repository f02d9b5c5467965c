package sandbox

import (
	"context"
	"math"
	"time"

	"github.com/dop251/goja"
)

// minInterval keeps a zero-delay setInterval from pinning the virtual clock.
const minInterval = time.Millisecond

type timer struct {
	id       int64
	due      time.Duration
	seq      int64
	interval time.Duration
	repeat   bool
	fn       goja.Callable
	args     []goja.Value
}

// timerQueue runs timers on a virtual clock once the script body has
// returned. Nothing sleeps: callbacks fire in due order, ties broken by
// scheduling order, until no timer is due within the horizon.
type timerQueue struct {
	now     time.Duration
	nextID  int64
	seq     int64
	pending map[int64]*timer
}

func newTimerQueue() *timerQueue {
	return &timerQueue{pending: make(map[int64]*timer)}
}

func (q *timerQueue) add(fn goja.Callable, delay time.Duration, repeat bool, args []goja.Value) int64 {
	if delay < 0 {
		delay = 0
	}
	due := q.now + delay
	if due < q.now {
		due = time.Duration(math.MaxInt64)
	}
	q.nextID++
	q.seq++
	t := &timer{
		id:     q.nextID,
		due:    due,
		seq:    q.seq,
		repeat: repeat,
		fn:     fn,
		args:   args,
	}
	if repeat {
		t.interval = max(delay, minInterval)
	}
	q.pending[t.id] = t
	return t.id
}

func (q *timerQueue) clear(id int64) {
	delete(q.pending, id)
}

func (q *timerQueue) next(horizon time.Duration) *timer {
	var best *timer
	for _, t := range q.pending {
		if t.due > horizon {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// drain fires due timers with this as their receiver. It stops at the first
// callback error, after maxRuns callbacks, or when ctx is done.
func (q *timerQueue) drain(ctx context.Context, this goja.Value, horizon time.Duration, maxRuns int) (int, error) {
	runs := 0
	for maxRuns <= 0 || runs < maxRuns {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		t := q.next(horizon)
		if t == nil {
			break
		}
		q.now = t.due
		if t.repeat {
			q.seq++
			if t.due += t.interval; t.due < q.now {
				t.due = time.Duration(math.MaxInt64)
			}
			t.seq = q.seq
		} else {
			delete(q.pending, t.id)
		}
		runs++
		if _, err := t.fn(this, t.args...); err != nil {
			return runs, err
		}
	}
	return runs, nil
}

// delayArg converts a JS delay argument in milliseconds.
func delayArg(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	ms := v.ToFloat()
	if math.IsNaN(ms) || ms < 0 {
		return 0
	}
	if ms > float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}
