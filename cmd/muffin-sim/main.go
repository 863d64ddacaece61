// Command muffin-sim runs the controller firmware against a simulated
// encoder board and drives it from the host side over an in-memory USB
// stream. Encoder events are echoed back as indicator updates, so the
// whole round trip is exercised.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"

	"muffin/board"
	"muffin/protocol"
)

var (
	passes     = flag.Int("passes", 0, "stop after this many firmware passes, 0 to run until -duration")
	duration   = flag.Duration("duration", 10*time.Second, "how long to run")
	checksum   = flag.Bool("crc", false, "append CRC16 trailers on the link")
	double     = flag.Bool("double", false, "double-buffered receive")
	stall      = flag.Uint("stall", 0, "stall timeout in ticks, 0 disables")
	encoders   = flag.Int("encoders", board.MaxEncoders, "encoders on the simulated board")
	turnEvery  = flag.Int("turn-every", 200, "passes between synthetic encoder turns")
	passPeriod = flag.Duration("pass-period", 100*time.Microsecond, "wall time per firmware pass")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg := board.DefaultConfig()
	cfg.Encoders = *encoders
	cfg.Comms.Codec = protocol.Codec{Checksum: *checksum}
	cfg.Comms.DoubleBuffer = *double
	cfg.Comms.StallTimeout = uint32(*stall)

	s, err := newSimulation(options{cfg: cfg, turnEvery: *turnEvery, passPeriod: *passPeriod})
	if err != nil {
		fmt.Fprintf(os.Stderr, "muffin-sim: %v\n", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	fwDone := make(chan struct{})
	go func() {
		s.firmware(stop, *passes)
		close(fwDone)
	}()
	go echo(s)

	if rtt, err := s.host.Ping(time.Second); err != nil {
		glog.Warningf("ping: %v", err)
	} else {
		glog.Infof("controller answered ping in %v", rtt)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case <-time.After(*duration):
	case <-sig:
	case <-fwDone:
	}
	close(stop)
	<-fwDone

	report(s)
	if err := s.close(); err != nil {
		glog.Warningf("close: %v", err)
	}
}

// echo plays the host application: it tracks each encoder's position and
// shows it on that encoder's indicator
func echo(s *simulation) {
	var position [board.MaxEncoders]int32
	for m := range s.host.Events() {
		switch m.Header.Type {
		case protocol.TypeEncoderEvent:
			ev, err := protocol.DecodeEncoderEvent(&m)
			if err != nil || int(ev.Index) >= len(position) {
				continue
			}
			position[ev.Index] += ev.Delta
			glog.V(1).Infof("host: encoder %d at %d", ev.Index, position[ev.Index])
			if err := s.host.SetIndicator(ev.Index, uint16(position[ev.Index])); err != nil {
				glog.Warningf("host: %v", err)
				return
			}
		case protocol.TypeSwitchEvent:
			if ev, err := protocol.DecodeSwitchEvent(&m); err == nil {
				glog.V(1).Infof("host: switch %d pressed=%v", ev.Index, ev.Pressed)
			}
		}
	}
}

func report(s *simulation) {
	var bs = s.board.Stats()
	var us = s.usb.Stats()
	fmt.Printf("passes %d, system thread %d\n", s.passes, s.sys.Passes())
	fmt.Printf("link: sent %d received %d framing %d transfer %d overruns %d stalls %d gaps %d\n",
		bs.Sent, bs.Received, bs.FramingErrors, bs.TransferErrors, bs.Overruns, bs.Stalls, bs.SequenceGaps)
	fmt.Printf("board: heartbeats %d bad index %d bad payload %d unhandled %d send errors %d\n",
		bs.Heartbeats, bs.BadIndex, bs.BadPayload, bs.Unhandled, bs.SendErrors)
	fmt.Printf("usb: in %d out %d stream errors %d rejected %d\n",
		us.FramesIn, us.FramesOut, us.StreamErrs, us.Rejected)
	for i := 0; i < s.opts.cfg.Encoders; i++ {
		fmt.Printf("encoder %d: position %d indicator %d\n",
			i, s.board.Position(i), s.board.Indicator(i))
	}
}
