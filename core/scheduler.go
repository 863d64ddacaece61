package core

// ThreadFunc is the body of a cooperative thread. It runs one pass and
// returns the number of ticks to yield before the next pass. Returning
// YieldDone ends the thread.
type ThreadFunc func(data uint32) uint32

// YieldDone is returned by a ThreadFunc that has finished
const YieldDone = 0

// Thread is a cooperative thread
type Thread struct {
	Name     string
	Entry    ThreadFunc
	Data     uint32
	WakeTime uint32
	Next     *Thread

	passes uint32
}

// Passes returns how many times the thread body has run
func (t *Thread) Passes() uint32 {
	return t.passes
}

// Scheduler runs threads in wake-time order. There is no preemption: a
// thread runs until its entry returns, and two thread bodies never overlap.
type Scheduler struct {
	threads *Thread
	running *Thread
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start adds a thread that becomes runnable immediately
func (s *Scheduler) Start(t *Thread) {
	t.WakeTime = GetTime()
	s.schedule(t)
}

func (s *Scheduler) schedule(t *Thread) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	s.insertThread(t)
}

// insertThread inserts a thread in sorted order by WakeTime. Threads with
// equal wake times run in insertion order.
func (s *Scheduler) insertThread(t *Thread) {
	if s.threads == nil || timeBefore(t.WakeTime, s.threads.WakeTime) {
		t.Next = s.threads
		s.threads = t
		return
	}

	current := s.threads
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// popDue unlinks the first thread if its wake time has been reached
func (s *Scheduler) popDue(now uint32) *Thread {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	t := s.threads
	if t == nil || timeBefore(now, t.WakeTime) {
		return nil
	}
	s.threads = t.Next
	t.Next = nil
	return t
}

// Dispatch runs every thread that is due at the current time, once each.
// Thread bodies run with interrupts enabled. Returns the number of threads run.
func (s *Scheduler) Dispatch() int {
	now := GetTime()
	var deferred, last *Thread
	ran := 0

	for {
		t := s.popDue(now)
		if t == nil {
			break
		}
		s.running = t
		yield := t.Entry(t.Data)
		t.passes++
		s.running = nil
		ran++

		if yield == YieldDone {
			continue
		}
		t.WakeTime = now + yield
		// Hold re-scheduled threads back until this pass is over so a
		// thread yielding zero-ish time cannot starve the others.
		if last == nil {
			deferred = t
		} else {
			last.Next = t
		}
		last = t
	}

	for deferred != nil {
		t := deferred
		deferred = t.Next
		s.schedule(t)
	}
	return ran
}

// Current returns the thread whose body is running, nil outside Dispatch
func (s *Scheduler) Current() *Thread {
	return s.running
}

// Idle reports whether no threads remain
func (s *Scheduler) Idle() bool {
	return s.threads == nil
}

// NextWake returns the wake time of the earliest thread
func (s *Scheduler) NextWake() (uint32, bool) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	if s.threads == nil {
		return 0, false
	}
	return s.threads.WakeTime, true
}

// Run dispatches threads until stop returns true. stop is checked once per
// dispatch pass; tick advances time between passes.
func (s *Scheduler) Run(tick func(), stop func() bool) {
	for !stop() {
		s.Dispatch()
		if tick != nil {
			tick()
		}
	}
}
