package main

import (
	"errors"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/golang/glog"

	"muffin/board"
	"muffin/core"
	"muffin/event"
	"muffin/host/bridge"
	"muffin/protocol"
	"muffin/sim"
	"muffin/system"
)

type options struct {
	cfg        board.Config
	turnEvery  int           // passes between synthetic encoder turns, 0 for none
	passPeriod time.Duration // wall time per firmware pass, 0 to run flat out
}

type randEntropy struct {
	rnd *rand.Rand
}

func (e randEntropy) Seed() uint8 { return uint8(e.rnd.Intn(256)) }
func (e randEntropy) Store(uint8) {}

// simulation is a controller board on a simulated chip, its encoder board,
// and a host talking to it over an in-memory USB stream. Everything on the
// firmware side runs on the goroutine calling firmware.
type simulation struct {
	opts options
	rnd  *rand.Rand

	rig    *sim.Rig
	board  *board.Board
	sched  *core.Scheduler
	sys    *system.System
	usb    *system.USBBridge
	events event.Queue

	fwConn net.Conn
	host   *bridge.Bridge
	feed   chan []byte
	calls  chan func()

	passes     int
	indicators map[uint8]uint16 // last value the encoder board was shown
}

func newSimulation(opts options) (*simulation, error) {
	core.SetTime(0)
	s := &simulation{
		opts:       opts,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		rig:        sim.NewRig(opts.cfg.Comms),
		sched:      core.NewScheduler(),
		feed:       make(chan []byte, 16),
		calls:      make(chan func()),
		indicators: make(map[uint8]uint16),
	}
	s.board = board.New(s.rig.Link, s.rig.Channels(), opts.cfg)
	s.sys = system.New(s.board, s.sched, randEntropy{s.rnd})

	fw, host := net.Pipe()
	s.fwConn = fw
	s.usb = system.NewUSBBridge(fw, core.PriorityLow, s.board, &s.events)

	if err := s.sys.Init(); err != nil {
		return nil, err
	}
	if err := s.sys.InitOSThreads(s.usb, &s.events); err != nil {
		return nil, err
	}
	s.sched.Start(s.usb.ThreadEntry())

	go s.usbReader()
	s.host = bridge.New(host)
	return s, nil
}

// usbReader moves host bytes to the firmware goroutine
func (s *simulation) usbReader() {
	buf := make([]byte, 64)
	for {
		n, err := s.fwConn.Read(buf)
		if n > 0 {
			s.feed <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				glog.Warningf("usb read: %v", err)
			}
			close(s.feed)
			return
		}
	}
}

// firmware runs the scheduler until stop is closed or limit passes have
// run. A zero limit runs until stop.
func (s *simulation) firmware(stop <-chan struct{}, limit int) {
	done := func() bool {
		select {
		case <-stop:
			return true
		default:
		}
		return limit > 0 && s.passes >= limit
	}
	s.sched.Run(s.tick, done)
}

// tick is everything that happens between scheduler passes: the wire
// moves, time advances, and the outside world gets a turn
func (s *simulation) tick() {
	s.rig.Engine.Step()
	core.Tick()
	s.passes++

	for _, m := range s.rig.Peer.Received() {
		s.peerReceived(&m)
	}
	if s.opts.turnEvery > 0 && s.passes%s.opts.turnEvery == 0 {
		s.turn()
	}

	for more := true; more; {
		select {
		case data, ok := <-s.feed:
			if !ok {
				s.feed = nil
				break
			}
			s.usb.Feed(data)
		case fn := <-s.calls:
			fn()
		default:
			more = false
		}
	}

	if s.opts.passPeriod > 0 {
		time.Sleep(s.opts.passPeriod)
	}
}

func (s *simulation) peerReceived(m *protocol.Message) {
	if m.Header.Type != protocol.TypeIndicator {
		glog.V(2).Infof("encoder board: %s seq=%d", m.Header.Type, m.Header.Seq)
		return
	}
	ind, err := protocol.DecodeIndicator(m)
	if err != nil {
		glog.Warningf("encoder board: bad indicator: %v", err)
		return
	}
	s.indicators[ind.Index] = ind.Value
	glog.V(1).Infof("encoder board: indicator %d = %d", ind.Index, ind.Value)
}

// turn has the encoder board report a random knob movement
func (s *simulation) turn() {
	var m protocol.Message
	index := uint8(s.rnd.Intn(s.opts.cfg.Encoders))
	var err error
	if s.rnd.Intn(8) == 0 {
		err = protocol.SwitchEvent{Index: index, Pressed: !s.board.Pressed(int(index))}.Encode(&m)
	} else {
		delta := int32(s.rnd.Intn(7) - 3)
		if delta == 0 {
			delta = 1
		}
		err = protocol.EncoderEvent{Index: index, Delta: delta}.Encode(&m)
	}
	if err == nil {
		err = s.rig.Peer.Send(&m)
	}
	if err != nil {
		glog.Warningf("encoder board: %v", err)
	}
}

// do runs fn on the firmware goroutine and waits for it
func (s *simulation) do(fn func()) {
	done := make(chan struct{})
	s.calls <- func() {
		fn()
		close(done)
	}
	<-done
}

func (s *simulation) close() error {
	err := s.host.Close()
	s.fwConn.Close()
	return err
}
