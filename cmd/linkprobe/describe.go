package main

import (
	"fmt"

	"muffin/protocol"
)

// describe renders a frame for the shell
func describe(m *protocol.Message) string {
	switch m.Header.Type {
	case protocol.TypeEncoderEvent:
		if ev, err := protocol.DecodeEncoderEvent(m); err == nil {
			return fmt.Sprintf("encoder %d %+d", ev.Index, ev.Delta)
		}
	case protocol.TypeSwitchEvent:
		if ev, err := protocol.DecodeSwitchEvent(m); err == nil {
			state := "released"
			if ev.Pressed {
				state = "pressed"
			}
			return fmt.Sprintf("switch %d %s", ev.Index, state)
		}
	case protocol.TypeIndicator:
		if ind, err := protocol.DecodeIndicator(m); err == nil {
			return fmt.Sprintf("indicator %d = %d", ind.Index, ind.Value)
		}
	case protocol.TypeHeartbeat:
		return fmt.Sprintf("heartbeat seq=%d", m.Header.Seq)
	}
	return fmt.Sprintf("%s seq=%d % x", m.Header.Type, m.Header.Seq, m.Payload())
}
