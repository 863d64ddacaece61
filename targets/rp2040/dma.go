//go:build tinygo && rp2040

package main

import (
	"device/rp"
	"errors"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"muffin/core"
	"muffin/dma"
)

// One DMA channel. See rp.DMA_Type.
type dmaRegs struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	AL1_CTRL    volatile.Register32 // CTRL without trigger
	_           [11]volatile.Register32
}

var dmaChannels = (*[12]dmaRegs)(unsafe.Pointer(rp.DMA))

// Static channel assignment. Every link transfer runs a companion channel
// in the other direction: the PIO program stalls unless both FIFOs move.
const (
	txDMA   = 0
	txDrain = 1
	rxDMA   = 2
	rxClock = 3
)

var (
	errNoDoubleBuffer = errors.New("double buffering not supported")
	errNotReady       = errors.New("channel not initialised")
	errLength         = errors.New("transfer longer than buffer")
)

var (
	idleByte byte // clocked out while receiving
	sinkByte byte // receives the bytes read while transmitting

	fifoChannels [2]*fifoChannel
	dmaIRQ       interrupt.Interrupt
)

func init() {
	dmaIRQ = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMA)
}

// fifoChannel moves one frame between a buffer and a PIO FIFO
type fifoChannel struct {
	n, peer uint8
	regs    *dmaRegs
	comp    *dmaRegs
	l       *pioLink

	buf    []byte
	length uint16
	rx     bool
	high   bool
	ready  bool
	notify dma.Notifier

	armed  uint16
	done   uint16
	errors uint32
}

func newFIFOChannels(l *pioLink) (tx, rx *fifoChannel) {
	tx = &fifoChannel{n: txDMA, peer: txDrain, l: l}
	rx = &fifoChannel{n: rxDMA, peer: rxClock, l: l}
	for i, c := range []*fifoChannel{tx, rx} {
		c.regs = &dmaChannels[c.n]
		c.comp = &dmaChannels[c.peer]
		fifoChannels[i] = c
	}
	return tx, rx
}

func (c *fifoChannel) Bind(n dma.Notifier) {
	state := core.DisableInterrupts()
	c.notify = n
	core.RestoreInterrupts(state)
}

// Init accepts the same descriptors as the XMEGA channel manager. The
// register endpoint is implied by the link's FIFOs.
func (c *fifoChannel) Init(desc *dma.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if desc.DoubleBuffer {
		return errNoDoubleBuffer
	}
	if c.Busy() {
		return dma.ErrChannelBusy
	}

	if desc.Source.Buffer != nil {
		c.buf, c.rx = desc.Source.Buffer, false
	} else {
		c.buf, c.rx = desc.Destination.Buffer, true
	}
	c.length = desc.Length
	c.high = desc.Priority == core.PriorityHigh
	c.armed, c.done = 0, 0

	dmaIRQ.SetPriority(nvicPriority(desc.Priority))
	rp.DMA.INTE0.SetBits(1 << c.n)
	dmaIRQ.Enable()
	c.ready = true
	return nil
}

// nvicPriority maps a level onto the Cortex-M0+ priority byte, lower is more urgent
func nvicPriority(p core.Priority) uint8 {
	switch p {
	case core.PriorityHigh:
		return 0x40
	case core.PriorityMedium:
		return 0x80
	}
	return 0xC0
}

func (c *fifoChannel) control(ch uint8, treq dma.TriggerSource, incrRead, incrWrite, high bool) uint32 {
	// DATA_SIZE 0: byte transfers; chaining to itself disables chaining
	cc := uint32(rp.DMA_CH0_CTRL_TRIG_EN) |
		uint32(treq)<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
		uint32(ch)<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos
	if incrRead {
		cc |= rp.DMA_CH0_CTRL_TRIG_INCR_READ
	}
	if incrWrite {
		cc |= rp.DMA_CH0_CTRL_TRIG_INCR_WRITE
	}
	if high {
		cc |= rp.DMA_CH0_CTRL_TRIG_HIGH_PRIORITY
	}
	return cc
}

func (c *fifoChannel) Arm(n uint16) error {
	if !c.ready {
		return errNotReady
	}
	if n == 0 {
		n = c.length
	}
	if int(n) > len(c.buf) {
		return errLength
	}

	txTrig, rxTrig := c.l.Triggers()
	buf := uint32(core.BufferAddress(c.buf))

	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	abortChannel(c.peer)
	c.armed, c.done = n, 0

	if c.rx {
		c.regs.READ_ADDR.Set(uint32(c.l.rxFIFO()))
		c.regs.WRITE_ADDR.Set(buf)
		c.regs.TRANS_COUNT.Set(uint32(n))
		c.comp.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&idleByte))))
		c.comp.WRITE_ADDR.Set(uint32(c.l.txFIFO()))
		c.comp.TRANS_COUNT.Set(uint32(n))

		c.regs.CTRL_TRIG.Set(c.control(c.n, rxTrig, false, true, c.high))
		c.comp.CTRL_TRIG.Set(c.control(c.peer, txTrig, false, false, false))
		return nil
	}

	c.comp.READ_ADDR.Set(uint32(c.l.rxFIFO()))
	c.comp.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&sinkByte))))
	c.comp.TRANS_COUNT.Set(uint32(n))
	c.regs.READ_ADDR.Set(buf)
	c.regs.WRITE_ADDR.Set(uint32(c.l.txFIFO()))
	c.regs.TRANS_COUNT.Set(uint32(n))

	c.comp.CTRL_TRIG.Set(c.control(c.peer, rxTrig, false, false, false))
	c.regs.CTRL_TRIG.Set(c.control(c.n, txTrig, true, false, c.high))
	return nil
}

func abortChannel(ch uint8) {
	rp.DMA.CHAN_ABORT.Set(1 << ch)
	for rp.DMA.CHAN_ABORT.HasBits(1 << ch) {
	}
}

func (c *fifoChannel) Disarm() {
	state := core.DisableInterrupts()
	defer core.RestoreInterrupts(state)

	c.done = c.Transferred()
	abortChannel(c.n)
	abortChannel(c.peer)
	c.armed = 0
}

func (c *fifoChannel) Busy() bool {
	return c.regs.CTRL_TRIG.HasBits(rp.DMA_CH0_CTRL_TRIG_BUSY)
}

// Finished reports a raised completion the DMA IRQ has not cleared yet
func (c *fifoChannel) Finished() bool {
	return c.armed != 0 && rp.DMA.INTR.HasBits(1<<c.n)
}

func (c *fifoChannel) Transferred() uint16 {
	if c.armed == 0 {
		return c.done
	}
	return c.armed - uint16(c.regs.TRANS_COUNT.Get())
}

func (c *fifoChannel) Completed() []byte {
	return c.buf[:c.done]
}

// interrupt runs from handleDMA
func (c *fifoChannel) interrupt() {
	ctrl := c.regs.CTRL_TRIG.Get()
	if ctrl&rp.DMA_CH0_CTRL_TRIG_AHB_ERROR != 0 {
		// READ_ERROR and WRITE_ERROR are write-one-to-clear
		c.regs.AL1_CTRL.Set(ctrl &^ rp.DMA_CH0_CTRL_TRIG_EN)
		abortChannel(c.peer)
		c.errors++
		c.done = c.Transferred()
		c.armed = 0
		if c.notify != nil {
			c.notify.TransferError()
		}
		return
	}
	c.done = c.armed
	c.armed = 0
	if c.notify != nil {
		c.notify.TransferComplete()
	}
}

func handleDMA(interrupt.Interrupt) {
	ints := rp.DMA.INTS0.Get()
	rp.DMA.INTS0.Set(ints)
	for _, c := range fifoChannels {
		if c != nil && ints&(1<<c.n) != 0 {
			c.interrupt()
		}
	}
}
