// Package fsm is the state machine shared by both ends of a protocol session.
package fsm

import "fmt"

type State string

type Event string

const (
	StateDisconnected    State = "disconnected"
	StateHandshaking     State = "handshaking"
	StateIdle            State = "idle"
	StatePresenceChecked State = "presence_checked"
	StateCommandSent     State = "command_sent"
	StateSelecting       State = "selecting"
	StateSingleAction    State = "single_action"
	StateClosed          State = "closed"
)

const (
	EventConnect         Event = "connect"
	EventHandshake       Event = "handshake"
	EventPresence        Event = "presence"
	EventSendCommand     Event = "send_command"
	EventRespondSingle   Event = "respond_single"
	EventRespondMultiple Event = "respond_multiple"
	EventRespondOutput   Event = "respond_output"
	EventRespondInvalid  Event = "respond_invalid"
	EventSelect          Event = "select"
	EventCancel          Event = "cancel"
	EventComplete        Event = "complete"
	EventDisconnect      Event = "disconnect"
	EventFail            Event = "fail"
)

// Transition returns the state reached from current on event.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateClosed, nil
	}

	switch current {
	case StateDisconnected:
		switch event {
		case EventConnect:
			return StateHandshaking, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateHandshaking:
		switch event {
		case EventHandshake:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateIdle:
		switch event {
		case EventPresence:
			return StatePresenceChecked, nil
		case EventDisconnect:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePresenceChecked:
		switch event {
		case EventSendCommand:
			return StateCommandSent, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCommandSent:
		switch event {
		case EventRespondSingle:
			return StateSingleAction, nil
		case EventRespondMultiple:
			return StateSelecting, nil
		case EventRespondOutput, EventRespondInvalid:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSelecting:
		switch event {
		case EventSelect:
			return StateSingleAction, nil
		case EventCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSingleAction:
		switch event {
		case EventComplete:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
