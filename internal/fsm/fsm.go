package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateAcquiring    State = "acquiring"
	StateCaptureReady State = "capture_ready"
	StateRecording    State = "recording"
	StateFinishing    State = "finishing"
	StateTerminated   State = "terminated"
	StateError        State = "error"
)

const (
	EventAcquire  Event = "acquire"
	EventAcquired Event = "acquired"
	EventStart    Event = "start"
	EventStop     Event = "stop"
	EventFlushed  Event = "flushed"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// Transition applies one event to a state. EventFail is legal only while
// acquiring the capture device or recording; everywhere else failures are
// handled locally and never drive the whole machine to error.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventAcquire:
			return StateAcquiring, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAcquiring:
		switch event {
		case EventAcquired:
			return StateCaptureReady, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCaptureReady:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventStop:
			return StateFinishing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateFinishing, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinishing:
		switch event {
		case EventFlushed:
			return StateTerminated, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTerminated:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
