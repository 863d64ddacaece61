package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muffin/board"
	"muffin/protocol"
)

func TestRoundTrip(t *testing.T) {
	s, err := newSimulation(options{cfg: board.DefaultConfig(), turnEvery: 20})
	require.NoError(t, err)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.firmware(stop, 0)
		close(done)
	}()
	defer func() {
		close(stop)
		<-done
		s.close()
	}()

	_, err = s.host.Ping(2 * time.Second)
	require.NoError(t, err)

	var got protocol.Message
	select {
	case got = <-s.host.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("no event reached the host")
	}
	assert.Contains(t, []protocol.MessageType{protocol.TypeEncoderEvent, protocol.TypeSwitchEvent}, got.Header.Type)

	require.NoError(t, s.host.SetIndicator(6, 321))
	assert.Eventually(t, func() bool {
		var v uint16
		var shown bool
		s.do(func() { v, shown = s.indicators[6] })
		return shown && v == 321
	}, 5*time.Second, 10*time.Millisecond)

	var onBoard int
	s.do(func() { onBoard = int(s.board.Indicator(6)) })
	assert.Equal(t, 321, onBoard)
}
