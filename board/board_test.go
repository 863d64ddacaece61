package board_test

import (
	"testing"

	"muffin/board"
	"muffin/comms"
	"muffin/core"
	"muffin/event"
	"muffin/protocol"
	"muffin/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxPasses = 200

type fixture struct {
	rig   *sim.Rig
	board *board.Board
	seen  []protocol.Message
}

func newFixture(t *testing.T, opts ...func(*board.Config)) *fixture {
	t.Helper()
	core.SetTime(1000)
	cfg := board.DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	r := sim.NewRig(cfg.Comms)
	b := board.New(r.Link, r.Channels(), cfg)
	require.NoError(t, b.Init(0x40))
	return &fixture{rig: r, board: b}
}

func (f *fixture) pass() {
	f.rig.Engine.Step()
	f.board.Update()
	f.seen = append(f.seen, f.rig.Peer.Received()...)
}

func (f *fixture) runUntil(cond func() bool) bool {
	for i := 0; i < maxPasses; i++ {
		if cond() {
			return true
		}
		f.pass()
	}
	return cond()
}

func (f *fixture) run(n int) {
	for i := 0; i < n; i++ {
		f.pass()
	}
}

func sendEncoder(t *testing.T, p *sim.EncoderBoard, index uint8, delta int32) {
	t.Helper()
	var m protocol.Message
	require.NoError(t, protocol.EncoderEvent{Index: index, Delta: delta}.Encode(&m))
	require.NoError(t, p.Send(&m))
}

func sendSwitch(t *testing.T, p *sim.EncoderBoard, index uint8, pressed bool) {
	t.Helper()
	var m protocol.Message
	require.NoError(t, protocol.SwitchEvent{Index: index, Pressed: pressed}.Encode(&m))
	require.NoError(t, p.Send(&m))
}

func TestUpdateBeforeInit(t *testing.T) {
	r := sim.NewRig(comms.DefaultConfig())
	b := board.New(r.Link, r.Channels(), board.DefaultConfig())

	assert.Nil(t, b.Comms())
	assert.NotPanics(t, b.Update)
}

func TestEncoderTrafficApplied(t *testing.T) {
	f := newFixture(t)
	var q event.Queue
	q.Init()
	f.board.SetEvents(&q)

	sendEncoder(t, f.rig.Peer, 2, 5)
	sendEncoder(t, f.rig.Peer, 2, -3)
	sendSwitch(t, f.rig.Peer, 7, true)

	require.True(t, f.runUntil(func() bool { return f.board.Stats().Received == 3 }))
	assert.Equal(t, int32(2), f.board.Position(2))
	assert.True(t, f.board.Pressed(7))
	assert.False(t, f.board.Pressed(2))

	require.Equal(t, 3, q.Len())
	e, _ := q.Pop()
	assert.Equal(t, event.KindEncoder, e.Kind)
	assert.Equal(t, int32(5), e.Delta)
	e, _ = q.Pop()
	assert.Equal(t, int32(-3), e.Delta)
	e, _ = q.Pop()
	assert.Equal(t, event.KindSwitch, e.Kind)
	assert.Equal(t, uint8(7), e.Index)
	assert.True(t, e.Pressed)
}

func TestTrafficWithoutEventQueue(t *testing.T) {
	f := newFixture(t)

	sendEncoder(t, f.rig.Peer, 0, 1)
	require.True(t, f.runUntil(func() bool { return f.board.Position(0) == 1 }))
}

func TestBadIndexIgnored(t *testing.T) {
	f := newFixture(t, func(c *board.Config) { c.Encoders = 4 })

	sendEncoder(t, f.rig.Peer, 4, 9)
	sendSwitch(t, f.rig.Peer, 6, true)
	require.True(t, f.runUntil(func() bool { return f.board.Stats().BadIndex == 2 }))
	assert.Zero(t, f.board.Position(4))
	assert.False(t, f.board.Pressed(6))
}

func TestUnhandledFrameCounted(t *testing.T) {
	f := newFixture(t)

	m := &protocol.Message{}
	m.Header.Type = protocol.TypeRaw
	require.NoError(t, m.SetPayload([]byte{1, 2, 3}))
	require.NoError(t, f.rig.Peer.Send(m))

	require.True(t, f.runUntil(func() bool { return f.board.Stats().Unhandled == 1 }))
	assert.Equal(t, uint32(1000), f.board.Stats().LastHeardAt)
}

func TestIndicatorsFlushedRoundRobin(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.board.SetIndicator(3, 7))
	require.NoError(t, f.board.SetIndicator(0, 300))
	require.NoError(t, f.board.SetIndicator(5, 1))

	require.True(t, f.runUntil(func() bool { return len(f.seen) == 3 }))

	var got []protocol.Indicator
	for i := range f.seen {
		ind, err := protocol.DecodeIndicator(&f.seen[i])
		require.NoError(t, err)
		got = append(got, ind)
	}
	assert.Equal(t, []protocol.Indicator{
		{Index: 0, Value: 300},
		{Index: 3, Value: 7},
		{Index: 5, Value: 1},
	}, got)
	assert.Equal(t, uint32(3), f.board.Stats().Sent)
}

func TestIndicatorCoalesced(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.board.SetIndicator(1, 5))
	require.NoError(t, f.board.SetIndicator(1, 6))
	f.run(20)

	require.Len(t, f.seen, 1)
	ind, err := protocol.DecodeIndicator(&f.seen[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.Indicator{Index: 1, Value: 6}, ind)
	assert.Equal(t, uint16(6), f.board.Indicator(1))

	// Same value again is not resent
	require.NoError(t, f.board.SetIndicator(1, 6))
	f.run(20)
	assert.Len(t, f.seen, 1)
}

func TestSetIndicatorRange(t *testing.T) {
	f := newFixture(t, func(c *board.Config) { c.Encoders = 2 })

	assert.ErrorIs(t, f.board.SetIndicator(2, 1), board.ErrEncoderIndex)
	assert.ErrorIs(t, f.board.SetIndicator(-1, 1), board.ErrEncoderIndex)
	assert.Zero(t, f.board.Indicator(9))
	assert.Zero(t, f.board.Position(-1))
}

func TestFirstFrameUsesSeed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.board.SetIndicator(0, 1))
	require.NoError(t, f.board.SetIndicator(1, 1))
	require.True(t, f.runUntil(func() bool { return len(f.seen) == 2 }))
	assert.Equal(t, uint8(0x40), f.seen[0].Header.Seq)
	assert.Equal(t, uint8(0x41), f.seen[1].Header.Seq)
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t, func(c *board.Config) { c.HeartbeatInterval = 10 })

	f.run(5)
	assert.Empty(t, f.seen)

	core.SetTime(1010)
	require.True(t, f.runUntil(func() bool { return len(f.seen) == 1 }))
	assert.Equal(t, protocol.TypeHeartbeat, f.seen[0].Header.Type)
	assert.Zero(t, f.seen[0].Header.DataSize)
	assert.Equal(t, uint32(1), f.board.Stats().Heartbeats)

	// Sending resets the idle timer
	f.run(5)
	assert.Len(t, f.seen, 1)
}

func TestHeartbeatDisabled(t *testing.T) {
	f := newFixture(t, func(c *board.Config) { c.HeartbeatInterval = 0 })

	core.SetTime(100000)
	f.run(10)
	assert.Empty(t, f.seen)
}

func TestInitRestartsState(t *testing.T) {
	f := newFixture(t)

	sendEncoder(t, f.rig.Peer, 1, 4)
	require.True(t, f.runUntil(func() bool { return f.board.Position(1) == 4 }))

	require.NoError(t, f.board.Init(0))
	assert.Zero(t, f.board.Position(1))
	assert.Equal(t, uint32(0), f.board.Stats().Received)
}
