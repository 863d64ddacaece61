package comms_test

import (
	"testing"

	"muffin/comms"
	"muffin/core"
	"muffin/dma"
	"muffin/link"
	"muffin/protocol"
	"muffin/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxPasses = 200

func newRig(t *testing.T, opts ...func(*comms.Config)) *sim.Rig {
	t.Helper()
	core.SetTime(0)
	cfg := comms.DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	r := sim.NewRig(cfg)
	require.NoError(t, r.Comms.Init())
	return r
}

func rawMessage(t *testing.T, payload ...byte) *protocol.Message {
	t.Helper()
	m := &protocol.Message{}
	m.Header.Type = protocol.TypeRaw
	require.NoError(t, m.SetPayload(payload))
	return m
}

func sent(r *sim.Rig, n uint32) func() bool {
	return func() bool { return r.Comms.Stats().Sent >= n }
}

func TestInitArmsNothing(t *testing.T) {
	r := newRig(t)

	tx, rx := r.Comms.State()
	assert.Equal(t, comms.Idle, tx)
	assert.Equal(t, comms.Idle, rx)
	assert.False(t, r.DMA.Channel(sim.TXChannel).Busy())
	assert.False(t, r.DMA.Channel(sim.RXChannel).Busy())
	assert.False(t, r.DMA.Channel(sim.ClockChannel).Busy())

	usart := &r.Chip.USART[link.USARTC0]
	assert.Equal(t, uint8(link.CTRLB_TXEN), usart.CTRLB.Get())
	assert.Equal(t, uint8(7), usart.BAUDCTRLA.Get(), "2 MHz at 32 MHz")
	assert.Equal(t, comms.Stats{}, r.Comms.Stats())
}

func TestSendBeforeInit(t *testing.T) {
	r := sim.NewRig(comms.DefaultConfig())
	assert.ErrorIs(t, r.Comms.SendMessage(rawMessage(t, 1)), comms.ErrNotInitialised)

	var out protocol.Message
	assert.False(t, r.Comms.ReceiveMessage(&out))
}

func TestInitRejectsBadPriority(t *testing.T) {
	cfg := comms.DefaultConfig()
	cfg.Priority = core.Priority(9)
	r := sim.NewRig(cfg)

	assert.ErrorIs(t, r.Comms.Init(), dma.ErrInvalidConfig)
}

func TestSendDelivers(t *testing.T) {
	r := newRig(t)

	m := rawMessage(t, 0xCA, 0xFE)
	require.NoError(t, r.Comms.SendMessage(m))
	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))

	got := r.Peer.Received()
	require.Len(t, got, 1)
	assert.Equal(t, *m, got[0])
}

func TestSingleSlotExclusivity(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))
	assert.ErrorIs(t, r.Comms.SendMessage(rawMessage(t, 2)), comms.ErrLinkBusy)

	// Completion alone is not enough: Update must observe it
	r.Engine.Run(maxPasses, func() bool { return !r.DMA.Channel(sim.TXChannel).Busy() })
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Complete, tx)
	assert.ErrorIs(t, r.Comms.SendMessage(rawMessage(t, 2)), comms.ErrLinkBusy)

	r.Comms.Update()
	assert.NoError(t, r.Comms.SendMessage(rawMessage(t, 2)))
}

func TestIdleUpdateIsIdempotent(t *testing.T) {
	for name, codec := range map[string]protocol.Codec{
		"plain":    {},
		"checksum": {Checksum: true},
	} {
		t.Run(name, func(t *testing.T) {
			r := newRig(t, func(c *comms.Config) { c.Codec = codec })

			r.Pass()
			tx, rx := r.Comms.State()
			require.Equal(t, comms.Idle, tx)
			require.Equal(t, comms.Armed, rx, "receiver listens while idle")
			assert.True(t, r.DMA.Channel(sim.ClockChannel).Busy(), "listening clocks the link")

			for i := 0; i < 50; i++ {
				r.Pass()
			}
			tx2, rx2 := r.Comms.State()
			assert.Equal(t, tx, tx2)
			assert.Equal(t, rx, rx2)
			assert.Equal(t, comms.Stats{}, r.Comms.Stats(), "idle fill is not a frame")
			assert.NotZero(t, r.Engine.Moved())
			assert.Empty(t, r.Peer.Received())
		})
	}
}

func TestReceiveNeedsClock(t *testing.T) {
	r := newRig(t)
	r.Link.DisableTX()
	require.NoError(t, r.Peer.Send(rawMessage(t, 5)))

	var out protocol.Message
	for i := 0; i < 50; i++ {
		r.Pass()
	}
	assert.False(t, r.Comms.ReceiveMessage(&out))
	assert.Zero(t, r.Engine.Moved())
	assert.Equal(t, 1, r.Peer.Queued(), "nothing leaves the board unclocked")

	r.Link.EnableTX()
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{5}, out.Payload())
}

func TestIdleWindowsKeepSequence(t *testing.T) {
	r := newRig(t)
	for i := 0; i < 50; i++ {
		r.Pass()
	}

	require.NoError(t, r.Peer.Send(rawMessage(t, 1)))
	require.NoError(t, r.Peer.Send(rawMessage(t, 2)))
	var out protocol.Message
	for _, want := range []byte{1, 2} {
		require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
		assert.Equal(t, []byte{want}, out.Payload())
	}
	assert.Equal(t, uint32(2), r.Comms.Stats().Received)
	assert.Zero(t, r.Comms.Stats().SequenceGaps)
}

func TestSendOrdering(t *testing.T) {
	r := newRig(t)

	a, b := rawMessage(t, 'A'), rawMessage(t, 'B')
	require.NoError(t, r.Comms.SendMessage(a))
	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))
	require.NoError(t, r.Comms.SendMessage(b))
	require.True(t, r.RunUntil(maxPasses, sent(r, 2)))

	got := r.Peer.Received()
	require.Len(t, got, 2)
	assert.Equal(t, []byte{'A'}, got[0].Payload())
	assert.Equal(t, []byte{'B'}, got[1].Payload())
	assert.Equal(t, got[0].Header.Seq+1, got[1].Header.Seq)
}

func TestSendStampsSequence(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.InitialSeq = 200 })

	m := rawMessage(t, 1)
	require.NoError(t, r.Comms.SendMessage(m))
	assert.Equal(t, uint8(200), m.Header.Seq)
}

func TestSendOversize(t *testing.T) {
	r := newRig(t)

	m := &protocol.Message{}
	m.Header.Type = protocol.TypeRaw
	m.Header.DataSize = protocol.MaxDataSize + 1
	assert.ErrorIs(t, r.Comms.SendMessage(m), protocol.ErrLength)

	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Idle, tx)
}

func TestFailedSendKeepsSequence(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.InitialSeq = 7 })

	m := rawMessage(t, 1)
	m.Header.Seq = 42
	m.Header.DataSize = protocol.MaxDataSize + 1
	require.ErrorIs(t, r.Comms.SendMessage(m), protocol.ErrLength)
	assert.Equal(t, uint8(42), m.Header.Seq, "caller's message untouched")

	ok := rawMessage(t, 2)
	require.NoError(t, r.Comms.SendMessage(ok))
	assert.Equal(t, uint8(7), ok.Header.Seq)
}

func TestSendRejectsNoneType(t *testing.T) {
	r := newRig(t)

	m := &protocol.Message{}
	assert.ErrorIs(t, r.Comms.SendMessage(m), protocol.ErrMessageType)
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Idle, tx)
}

func TestReceive(t *testing.T) {
	r := newRig(t)

	var ev protocol.Message
	require.NoError(t, protocol.EncoderEvent{Index: 4, Delta: -3}.Encode(&ev))
	require.NoError(t, r.Peer.Send(&ev))

	var out protocol.Message
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))

	got, err := protocol.DecodeEncoderEvent(&out)
	require.NoError(t, err)
	assert.Equal(t, protocol.EncoderEvent{Index: 4, Delta: -3}, got)
	assert.Equal(t, uint32(1), r.Comms.Stats().Received)

	// Slot freed and listening again
	_, rx := r.Comms.State()
	assert.Equal(t, comms.Armed, rx)
	assert.False(t, r.Comms.ReceiveMessage(&out))
}

func TestReceiveHeldUntilRead(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.Peer.Send(rawMessage(t, 1)))
	require.NoError(t, r.Peer.Send(rawMessage(t, 2)))

	require.True(t, r.RunUntil(maxPasses, func() bool {
		_, rx := r.Comms.State()
		return rx == comms.Delivered
	}))

	// Not re-armed while a message waits; the second frame stays with the peer
	for i := 0; i < 20; i++ {
		r.Pass()
	}
	assert.Equal(t, 1, r.Peer.Queued())

	var out protocol.Message
	require.True(t, r.Comms.ReceiveMessage(&out))
	assert.Equal(t, []byte{1}, out.Payload())
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{2}, out.Payload())
	assert.Zero(t, r.Comms.Stats().SequenceGaps)
}

func TestCorruptFrameDiscarded(t *testing.T) {
	r := newRig(t)

	// Declares 62 payload bytes; a 64 byte buffer holds at most 60
	r.Peer.SendRaw([]byte{byte(protocol.TypeRaw), 0, 62, 0, 0xBA, 0xD0})

	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.Stats().FramingErrors > 0 }))

	var out protocol.Message
	assert.False(t, r.Comms.ReceiveMessage(&out))
	_, rx := r.Comms.State()
	assert.NotEqual(t, comms.Delivered, rx)
	assert.Equal(t, uint32(1), r.Comms.Stats().FramingErrors)
	assert.Zero(t, r.Comms.Stats().Received)

	// The link recovers for the next frame
	require.NoError(t, r.Peer.Send(rawMessage(t, 7)))
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{7}, out.Payload())
}

func TestSendPreemptsEmptyListenWindow(t *testing.T) {
	r := newRig(t)
	r.Pass()
	require.True(t, r.DMA.Channel(sim.RXChannel).Busy())

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))

	tx, rx := r.Comms.State()
	assert.Equal(t, comms.Armed, tx)
	assert.Equal(t, comms.Idle, rx)
	assert.False(t, r.DMA.Channel(sim.RXChannel).Busy(), "TX and RX never armed together")
	assert.False(t, r.DMA.Channel(sim.ClockChannel).Busy())
	assert.Zero(t, r.Chip.USART[link.USARTC0].CTRLB.Get()&link.CTRLB_RXEN)

	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))
	r.Pass()
	_, rx = r.Comms.State()
	assert.Equal(t, comms.Armed, rx, "listening again after the send")
}

func TestSendWaitsForFrameInProgress(t *testing.T) {
	r := newRig(t)
	r.Pass()

	require.NoError(t, r.Peer.Send(rawMessage(t, 9)))
	r.Engine.BytesPerStep = 5
	r.Pass()
	require.Equal(t, uint16(5), r.DMA.Channel(sim.RXChannel).Transferred())

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Pending, tx)
	r.Pass()
	tx, _ = r.Comms.State()
	assert.Equal(t, comms.Pending, tx)
	assert.False(t, r.DMA.Channel(sim.TXChannel).Busy())

	r.Engine.BytesPerStep = sim.DefaultBytesPerStep
	var out protocol.Message
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{9}, out.Payload())
	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))
	assert.Len(t, r.Peer.Received(), 1)
}

func TestTransferErrorDropsMessage(t *testing.T) {
	r := newRig(t)

	r.Engine.FailNext(sim.TXChannel)
	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))
	r.Pass()

	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Idle, tx)
	assert.Equal(t, uint32(1), r.Comms.Stats().TransferErrors)
	assert.Zero(t, r.Comms.Stats().Sent)
	assert.Empty(t, r.Peer.Received())

	// No retry; the next message goes through
	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 2)))
	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))
	got := r.Peer.Received()
	require.Len(t, got, 1)
	assert.Equal(t, []byte{2}, got[0].Payload())
}

func TestReceiveErrorRearms(t *testing.T) {
	r := newRig(t)
	r.Pass()

	r.Engine.FailNext(sim.RXChannel)
	require.NoError(t, r.Peer.Send(rawMessage(t, 3)))

	var out protocol.Message
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{3}, out.Payload())
	assert.Equal(t, uint32(1), r.Comms.Stats().TransferErrors)
	assert.Equal(t, uint32(1), r.DMA.Channel(sim.RXChannel).Errors())
}

func TestCompletionDeferredWhileInterruptsDisabled(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))

	state := core.DisableInterrupts()
	r.Engine.Run(maxPasses, func() bool { return !r.DMA.Channel(sim.TXChannel).Busy() })
	assert.True(t, r.Engine.Pending(sim.TXChannel))
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Armed, tx)
	core.RestoreInterrupts(state)

	r.Engine.Step()
	tx, _ = r.Comms.State()
	assert.Equal(t, comms.Complete, tx)
}

func TestStallTimeoutTX(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.StallTimeout = 5 })

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))
	r.Link.DisableTX() // clock stalls

	for i := 0; i < 4; i++ {
		core.Tick()
		r.Pass()
	}
	tx, _ := r.Comms.State()
	require.Equal(t, comms.Armed, tx)

	core.Tick()
	r.Pass()
	tx, _ = r.Comms.State()
	assert.Equal(t, comms.Idle, tx)
	assert.Equal(t, uint32(1), r.Comms.Stats().Stalls)
	assert.False(t, r.DMA.Channel(sim.TXChannel).Busy())
}

func TestStallTimeoutRX(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.StallTimeout = 20 })

	// Idle windows finish well inside the timeout
	for i := 0; i < 30; i++ {
		core.Tick()
		r.Pass()
	}
	require.Zero(t, r.Comms.Stats().Stalls)

	require.NoError(t, r.Peer.Send(rawMessage(t, 1)))
	require.True(t, r.RunUntil(maxPasses, func() bool {
		n := r.DMA.Channel(sim.RXChannel).Transferred()
		return n > 0 && n < protocol.FrameBufferSize
	}))
	r.Link.DisableTX() // clock stops mid window

	for i := 0; i < 25; i++ {
		core.Tick()
		r.Pass()
	}
	assert.Equal(t, uint32(1), r.Comms.Stats().Stalls)
	_, rx := r.Comms.State()
	assert.Equal(t, comms.Armed, rx, "a fresh listen window replaces the stalled one")

	r.Link.EnableTX()
	var out protocol.Message
	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	assert.Equal(t, []byte{1}, out.Payload())
}

func TestStallYieldsToPendingCompletion(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.StallTimeout = 5 })
	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))

	// The frame finishes but its interrupt is held back past the timeout
	state := core.DisableInterrupts()
	r.Engine.Run(maxPasses, func() bool { return !r.DMA.Channel(sim.TXChannel).Busy() })
	require.True(t, r.Engine.Pending(sim.TXChannel))
	for i := 0; i < 6; i++ {
		core.Tick()
	}
	r.Comms.Update()
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Armed, tx)
	core.RestoreInterrupts(state)

	r.Engine.Step()
	r.Comms.Update()
	st := r.Comms.Stats()
	assert.Equal(t, uint32(1), st.Sent)
	assert.Zero(t, st.Stalls)
	assert.Zero(t, st.Overruns)
	assert.Len(t, r.Peer.Received(), 1)
}

func TestNoStallWithoutTimeout(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1)))
	r.Link.DisableTX()
	for i := 0; i < 100; i++ {
		core.Tick()
		r.Pass()
	}
	tx, _ := r.Comms.State()
	assert.Equal(t, comms.Armed, tx)
	assert.Zero(t, r.Comms.Stats().Stalls)
}

func TestSequenceGapCounted(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.Peer.Send(rawMessage(t, 1)))
	r.Peer.SkipSeq(2)
	require.NoError(t, r.Peer.Send(rawMessage(t, 2)))

	var out protocol.Message
	for i := 0; i < 2; i++ {
		require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.ReceiveMessage(&out) }))
	}
	assert.Equal(t, uint32(1), r.Comms.Stats().SequenceGaps)
	assert.Equal(t, uint32(2), r.Comms.Stats().Received)
}

func TestChecksumFrames(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.Codec = protocol.Codec{Checksum: true} })

	require.NoError(t, r.Comms.SendMessage(rawMessage(t, 1, 2, 3)))
	require.True(t, r.RunUntil(maxPasses, sent(r, 1)))
	got := r.Peer.Received()
	require.Len(t, got, 1)
	assert.Equal(t, []byte{1, 2, 3}, got[0].Payload())

	// A flipped payload bit fails the checksum
	var good protocol.Message
	good.Header.Type = protocol.TypeRaw
	require.NoError(t, good.SetPayload([]byte{4, 5}))
	block := make([]byte, protocol.FrameBufferSize)
	n, err := protocol.Codec{Checksum: true}.EncodeInto(block, &good)
	require.NoError(t, err)
	block[protocol.HeaderSize] ^= 0x01
	r.Peer.SendRaw(block[:n])

	require.True(t, r.RunUntil(maxPasses, func() bool { return r.Comms.Stats().FramingErrors > 0 }))
	var out protocol.Message
	assert.False(t, r.Comms.ReceiveMessage(&out))
}

func TestDoubleBufferOverrun(t *testing.T) {
	r := newRig(t, func(c *comms.Config) { c.DoubleBuffer = true })
	r.Pass()

	require.NoError(t, r.Peer.Send(rawMessage(t, 'A')))
	require.NoError(t, r.Peer.Send(rawMessage(t, 'B')))

	// Both frames land before Update looks
	r.Engine.Run(maxPasses, func() bool { return r.Peer.Queued() == 0 && !r.Engine.Pending(sim.RXChannel+1) })
	assert.Equal(t, uint32(1), r.Comms.Stats().Overruns)

	r.Comms.Update()
	var out protocol.Message
	require.True(t, r.Comms.ReceiveMessage(&out))
	assert.Equal(t, []byte{'B'}, out.Payload(), "newest frame wins")

	// The pair keeps listening without a re-arm
	_, rx := r.Comms.State()
	assert.Equal(t, comms.Armed, rx)
	assert.True(t, r.DMA.Channel(sim.RXChannel).Busy())
}
