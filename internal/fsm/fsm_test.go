package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func walk(t *testing.T, from State, events ...Event) State {
	t.Helper()
	state := from
	for _, event := range events {
		next, err := Transition(state, event)
		require.NoError(t, err, "%s on %s", state, event)
		state = next
	}
	return state
}

func TestTransitionSingleActionExchange(t *testing.T) {
	state := walk(t, StateDisconnected,
		EventConnect, EventHandshake,
		EventPresence, EventSendCommand, EventRespondSingle, EventComplete,
	)
	require.Equal(t, StateIdle, state)
}

func TestTransitionSelectionExchange(t *testing.T) {
	state := walk(t, StateIdle, EventPresence, EventSendCommand, EventRespondMultiple, EventSelect)
	require.Equal(t, StateSingleAction, state)

	state = walk(t, StateIdle, EventPresence, EventSendCommand, EventRespondMultiple, EventCancel)
	require.Equal(t, StateIdle, state)
}

func TestTransitionOutputAndInvalidReturnToIdle(t *testing.T) {
	require.Equal(t, StateIdle, walk(t, StateCommandSent, EventRespondOutput))
	require.Equal(t, StateIdle, walk(t, StateCommandSent, EventRespondInvalid))
}

func TestTransitionFailFromAnyStateCloses(t *testing.T) {
	states := []State{
		StateDisconnected, StateHandshaking, StateIdle, StatePresenceChecked,
		StateCommandSent, StateSelecting, StateSingleAction, StateClosed,
	}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateClosed, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "command before handshake", state: StateHandshaking, event: EventSendCommand},
		{name: "command without presence", state: StateIdle, event: EventSendCommand},
		{name: "double presence", state: StatePresenceChecked, event: EventPresence},
		{name: "select without menu", state: StateCommandSent, event: EventSelect},
		{name: "complete while selecting", state: StateSelecting, event: EventComplete},
		{name: "respond during action", state: StateSingleAction, event: EventRespondSingle},
		{name: "closed stays closed", state: StateClosed, event: EventConnect},
		{name: "disconnect mid exchange", state: StateCommandSent, event: EventDisconnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Transition(tt.state, tt.event)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
			require.Equal(t, tt.state, next)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	_, err := Transition(State("mystery"), EventConnect)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
}
