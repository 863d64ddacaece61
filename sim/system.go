//go:build !tinygo

package sim

import (
	"muffin/comms"
	"muffin/dma"
	"muffin/link"
)

// DMA channels the controller board uses for its link
const (
	TXChannel    = 0
	ClockChannel = 1
	RXChannel    = 2
)

// Rig is a controller board's link wired to a simulated encoder board
type Rig struct {
	Chip   *Chip
	DMA    *dma.Controller
	Engine *Engine
	Link   *link.Driver
	Peer   *EncoderBoard
	Comms  *comms.Comms
}

// NewRig builds the full link stack on a fresh chip. The DMA controller is
// enabled; Comms is created but not initialised.
func NewRig(cfg comms.Config) *Rig {
	chip := NewChip(DefaultClock)
	ctrl := dma.NewController(&chip.DMA)
	ctrl.Enable()

	r := &Rig{
		Chip:   chip,
		DMA:    ctrl,
		Engine: NewEngine(chip, ctrl),
		Link:   link.New(chip.Hardware(cfg.Link.Instance), chip.Clock),
		Peer:   NewEncoderBoard(cfg.Codec),
	}
	r.Engine.Attach(cfg.Link.Instance, r.Peer)
	r.Comms = comms.New(r.Link, r.Channels(), cfg)
	return r
}

// Channels returns the rig's DMA channel assignment
func (r *Rig) Channels() comms.Channels {
	return comms.Channels{
		TX:    r.DMA.Channel(TXChannel),
		RX:    r.DMA.Channel(RXChannel),
		Clock: r.DMA.Channel(ClockChannel),
	}
}

// Pass runs one engine step followed by one transport update
func (r *Rig) Pass() {
	r.Engine.Step()
	r.Comms.Update()
}

// RunUntil runs passes until cond holds, at most n of them
func (r *Rig) RunUntil(n int, cond func() bool) bool {
	for i := 0; i < n; i++ {
		if cond() {
			return true
		}
		r.Pass()
	}
	return cond()
}
