// Package sim implements the deterministic single-threaded cooperative
// simulator (spec.md §4.8): a logical clock, a seeded PRNG, and a
// scheduler that interleaves spawned tasks exactly one at a time so that
// the same seed and task graph always produce the same run.
//
// Go already gives every task a real stack via goroutines, so unlike a
// poll/Waker-based executor this scheduler uses goroutines as its
// "tasks" and arbitrates turns with a single hand-off channel: exactly
// one task goroutine is ever runnable at a time, and it only proceeds
// past a Sleep or Yield call once the scheduler explicitly grants the
// next turn. That preserves the single-threaded, deterministic-ordering
// invariant without reimplementing async/await machinery.
package sim

import (
	"container/heap"
	"math/rand"
	"time"
)

// MaxIterations bounds the scheduler loop as a liveness-bug detector
// (spec.md §4.8 step 8): a task graph that never drains after this many
// steps is considered stuck rather than looped forever.
const MaxIterations = 100_000

// ErrLivenessExceeded is returned by Run when MaxIterations is reached
// without the task graph draining.
type ErrLivenessExceeded struct{}

func (ErrLivenessExceeded) Error() string {
	return "sim: exceeded MaxIterations without all tasks completing"
}

// task is one spawned unit of work. Exactly one task holds the
// scheduler's turn at a time; all others are parked on turn.
type task struct {
	seq  uint64
	turn chan struct{}
}

// sleepEntry is a parked task awaiting a wake time, ordered by
// (targetTime, seq) to break ties deterministically (spec.md §4.8
// "sleeps: min-heap keyed by (target_time, sequence)").
type sleepEntry struct {
	targetTime time.Time
	t          *task
}

type sleepHeap []sleepEntry

func (h sleepHeap) Len() int { return len(h) }
func (h sleepHeap) Less(i, j int) bool {
	if h[i].targetTime.Equal(h[j].targetTime) {
		return h[i].t.seq < h[j].t.seq
	}
	return h[i].targetTime.Before(h[j].targetTime)
}
func (h sleepHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *sleepHeap) Push(x any)        { *h = append(*h, x.(sleepEntry)) }
func (h *sleepHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// stepOutcome is what a task reports back to the scheduler when it
// relinquishes its turn.
type stepOutcome struct {
	kind   stepKind
	wakeAt time.Time
}

type stepKind int

const (
	stepFinished stepKind = iota
	stepYielded
	stepSlept
)

// Simulator drives the scheduling loop described in spec.md §4.8.
type Simulator struct {
	now  time.Time
	rng  *rand.Rand
	seq  uint64

	jitterMin time.Duration
	jitterMax time.Duration

	ready   []*task
	sleeps  sleepHeap
	pending int // count of tasks still alive (ready, sleeping, or mid-step)

	stepDone chan stepOutcome
	active   *task
}

// New builds a Simulator seeded deterministically. jitterMin must be > 0
// so ready events always carry a strictly-advancing notional timestamp,
// which keeps sleeps from starving (spec.md §4.8 "Liveness traps avoided").
func New(seed int64, jitterMin, jitterMax time.Duration) *Simulator {
	if jitterMin <= 0 {
		jitterMin = time.Microsecond
	}
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &Simulator{
		now:       time.Unix(0, 0).UTC(),
		rng:       rand.New(rand.NewSource(seed)),
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		stepDone:  make(chan stepOutcome),
	}
}

// TaskFunc is the body of a spawned task. h is the only handle through
// which the task may touch time or randomness.
type TaskFunc func(h *Handle)

// Handle is what a running task uses to yield, sleep, and draw
// randomness/time from the owning Simulator (satisfies envx.Environment
// indirectly via the methods below, used as the simulation counterpart
// to envx.Production).
type Handle struct {
	sim *task
	s   *Simulator
}

// Spawn registers a new task; it does not run until the scheduler grants
// it a turn inside Run.
func (s *Simulator) Spawn(f TaskFunc) {
	s.seq++
	t := &task{seq: s.seq, turn: make(chan struct{})}
	s.pending++
	s.ready = append(s.ready, t)

	go func() {
		<-t.turn
		f(&Handle{sim: t, s: s})
		s.stepDone <- stepOutcome{kind: stepFinished}
	}()
}

// Yield models an await point with no time cost attached (used by
// simulated bus operations to force an interleaving opportunity at every
// propose/poll, per spec.md §5 "Suspension points").
func (h *Handle) Yield() {
	h.s.stepDone <- stepOutcome{kind: stepYielded}
	<-h.sim.turn
}

// Sleep parks the task until the simulator's logical clock reaches
// now+d, never blocking a real OS thread for the duration.
func (h *Handle) Sleep(d time.Duration) {
	if d < 0 {
		d = 0
	}
	h.s.stepDone <- stepOutcome{kind: stepSlept, wakeAt: h.s.now.Add(d)}
	<-h.sim.turn
}

// Now returns the simulator's current logical time.
func (h *Handle) Now() time.Time { return h.s.now }

// WithRNG grants access to the simulator's seeded PRNG. Only ever called
// while the caller's task holds the scheduler's turn, so no locking is
// needed: the single-threaded invariant is enforced by Run itself.
func (h *Handle) WithRNG(f func(r *rand.Rand)) { f(h.s.rng) }

// jitterSample draws a strictly positive jitter duration in
// [jitterMin, jitterMax).
func (s *Simulator) jitterSample() time.Duration {
	if s.jitterMax == s.jitterMin {
		return s.jitterMin
	}
	span := int64(s.jitterMax - s.jitterMin)
	return s.jitterMin + time.Duration(s.rng.Int63n(span))
}

// Run executes the scheduling loop until every spawned task (and every
// task transitively spawned by them) has finished, or MaxIterations is
// exceeded.
func (s *Simulator) Run() error {
	for iter := 0; s.pending > 0; iter++ {
		if iter >= MaxIterations {
			return ErrLivenessExceeded{}
		}

		var eventTime time.Time
		haveEvent := len(s.ready) > 0
		if haveEvent {
			eventTime = s.now.Add(s.jitterSample())
		}

		haveSleep := len(s.sleeps) > 0

		var t *task
		var target time.Time
		switch {
		case haveEvent && haveSleep && s.sleeps[0].targetTime.Before(eventTime):
			entry := heap.Pop(&s.sleeps).(sleepEntry)
			t, target = entry.t, entry.targetTime
		case haveEvent:
			idx := s.rng.Intn(len(s.ready))
			t = s.ready[idx]
			s.ready = append(s.ready[:idx], s.ready[idx+1:]...)
			target = eventTime
		case haveSleep:
			entry := heap.Pop(&s.sleeps).(sleepEntry)
			t, target = entry.t, entry.targetTime
		default:
			return nil
		}

		if target.After(s.now) {
			s.now = target
		}

		s.active = t
		t.turn <- struct{}{}
		outcome := <-s.stepDone
		s.active = nil

		switch outcome.kind {
		case stepFinished:
			s.pending--
		case stepYielded:
			s.ready = append(s.ready, t)
		case stepSlept:
			heap.Push(&s.sleeps, sleepEntry{targetTime: outcome.wakeAt, t: t})
		}
	}
	return nil
}
