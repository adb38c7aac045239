package flow

import "fmt"

// State is a page in the visitor's flow.
type State int

const (
	StateHome State = iota
	StateLogin
	StateGifts
	StateSummary
	StateThankYou
)

func (s State) String() string {
	switch s {
	case StateHome:
		return "home"
	case StateLogin:
		return "login"
	case StateGifts:
		return "gifts"
	case StateSummary:
		return "summary"
	case StateThankYou:
		return "thankyou"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a transition.
type Event int

const (
	EventNext Event = iota
	EventBack
	EventRestart
)

func (e Event) String() string {
	switch e {
	case EventNext:
		return "next"
	case EventBack:
		return "back"
	case EventRestart:
		return "restart"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type transition struct {
	from  State
	event Event
}

var transitions = map[transition]State{
	{StateHome, EventNext}:        StateLogin,
	{StateLogin, EventNext}:       StateGifts,
	{StateLogin, EventBack}:       StateHome,
	{StateGifts, EventNext}:       StateSummary,
	{StateGifts, EventBack}:       StateLogin,
	{StateSummary, EventNext}:     StateThankYou,
	{StateSummary, EventBack}:     StateGifts,
	{StateThankYou, EventRestart}: StateHome,
}

// TransitionError reports an event that is not legal in the current state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Event, e.From)
}

// Next looks up the target of ev in state from. Guards such as a non-empty
// selection are enforced by the Controller, not the table.
func Next(from State, ev Event) (State, error) {
	to, ok := transitions[transition{from, ev}]
	if !ok {
		return from, &TransitionError{From: from, Event: ev}
	}
	return to, nil
}
