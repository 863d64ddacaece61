// Package system brings the firmware up in two stages: Init before the
// scheduler runs, InitOSThreads once it can start threads.
package system

import (
	"errors"

	"muffin/board"
	"muffin/core"
	"muffin/event"
)

// ErrPriorityPlan is wrapped by every interrupt priority plan rejection
var ErrPriorityPlan = errors.New("interrupt priority plan")

var errNotInitialised = errors.New("system not initialised")

type planError struct {
	reason string
}

func (e *planError) Error() string { return ErrPriorityPlan.Error() + ": " + e.reason }
func (e *planError) Unwrap() error { return ErrPriorityPlan }

// USBService is the host-facing USB stack. Its interrupts must not share a
// level with the link's DMA interrupts.
type USBService interface {
	Start() error
	Priority() core.Priority
}

// Entropy provides the seed for the first outbound sequence number and
// persists the next one so a restart does not reuse it.
type Entropy interface {
	Seed() uint8
	Store(next uint8)
}

// CheckPriorities validates the interrupt priority plan
func CheckPriorities(usb, completion, err core.Priority) error {
	switch {
	case !usb.Valid() || !completion.Valid() || !err.Valid():
		return &planError{"undefined priority level"}
	case completion == core.PriorityOff:
		return &planError{"transfer completion interrupt disabled"}
	case err > completion:
		return &planError{"error handler outranks completion handler"}
	case usb != core.PriorityOff && (usb == completion || usb == err):
		return &planError{"usb shares a level with the link"}
	}
	return nil
}

// System ties the board to the scheduler
type System struct {
	board   *board.Board
	sched   *core.Scheduler
	entropy Entropy
	thread  core.Thread
	seed    uint8
}

// New creates the system. entropy may be nil.
func New(b *board.Board, s *core.Scheduler, entropy Entropy) *System {
	sys := &System{board: b, sched: s, entropy: entropy}
	sys.thread = core.Thread{Name: "system", Entry: sys.Thread}
	return sys
}

// Init seeds the sequence numbers and initialises the board. No thread is
// started here.
func (s *System) Init() error {
	if s.entropy != nil {
		s.seed = s.entropy.Seed()
	}
	if err := s.board.Init(s.seed); err != nil {
		return err
	}
	if s.entropy != nil {
		s.entropy.Store(s.seed + 1)
	}
	return nil
}

// Seed returns the seed Init used
func (s *System) Seed() uint8 {
	return s.seed
}

// InitOSThreads starts the USB service and the event system, then the
// system thread. The priority plan is checked before anything starts.
func (s *System) InitOSThreads(usb USBService, events *event.Queue) error {
	link := s.board.Comms()
	if link == nil {
		return errNotInitialised
	}
	cfg := link.Config()
	usbLevel := core.PriorityOff
	if usb != nil {
		usbLevel = usb.Priority()
	}
	if err := CheckPriorities(usbLevel, cfg.Priority, cfg.ErrorPriority); err != nil {
		return err
	}

	if usb != nil {
		if err := usb.Start(); err != nil {
			return err
		}
	}
	events.Init()
	s.board.SetEvents(events)
	s.sched.Start(&s.thread)
	core.DebugPrintln("system: threads started")
	return nil
}

// Thread is the system thread body: one board pass, then yield a tick
func (s *System) Thread(data uint32) uint32 {
	s.board.Update()
	return 1
}

// Passes returns how many times the system thread has run
func (s *System) Passes() uint32 {
	return s.thread.Passes()
}
