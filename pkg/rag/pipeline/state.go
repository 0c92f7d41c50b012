package pipeline

import (
	"errors"
	"fmt"

	"rag-chat-be/internal/entity"
)

type State int

const (
	StateStart State = iota
	StateDecideRetrieval
	StateRetrieve
	StateGenerate
	StateSave
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDecideRetrieval:
		return "decide_retrieval"
	case StateRetrieve:
		return "retrieve"
	case StateGenerate:
		return "generate"
	case StateSave:
		return "save"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no event can move the turn any further.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type Event int

const (
	EventSessionReady Event = iota
	EventRetrievalRequired
	EventRetrievalSkipped
	EventPassagesReady
	EventResponseReady
	EventCommitted
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventSessionReady:
		return "session_ready"
	case EventRetrievalRequired:
		return "retrieval_required"
	case EventRetrievalSkipped:
		return "retrieval_skipped"
	case EventPassagesReady:
		return "passages_ready"
	case EventResponseReady:
		return "response_ready"
	case EventCommitted:
		return "committed"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var ErrInvalidTransition = errors.New("invalid pipeline transition")

var transitions = map[State]map[Event]State{
	StateStart: {
		EventSessionReady: StateDecideRetrieval,
	},
	StateDecideRetrieval: {
		EventRetrievalRequired: StateRetrieve,
		EventRetrievalSkipped:  StateGenerate,
	},
	StateRetrieve: {
		EventPassagesReady: StateGenerate,
	},
	StateGenerate: {
		EventResponseReady: StateSave,
	},
	StateSave: {
		EventCommitted: StateDone,
	},
}

// Transition is the whole turn state machine. Any non-terminal state may fail.
func Transition(from State, event Event) (State, error) {
	if event == EventFailed && !from.Terminal() {
		return StateFailed, nil
	}
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, event)
}

// TurnState is the working set of one turn. It lives only for the duration
// of the turn and is never persisted.
type TurnState struct {
	SessionID   string
	UserMessage string
	History     []entity.Turn

	RequiresRetrieval bool
	RetrievedPassages []entity.Passage
	AssembledContext  string
	AssembledHistory  string
	Response          string

	State State
}

func (s *TurnState) apply(event Event) error {
	next, err := Transition(s.State, event)
	if err != nil {
		return err
	}
	s.State = next
	return nil
}
