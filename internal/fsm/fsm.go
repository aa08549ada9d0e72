// Package fsm holds the interview session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateUninitialized   State = "uninitialized"
	StateLoadingQuestion State = "loading_question"
	StateAwaitingAnswer  State = "awaiting_answer"
	StateSubmitting      State = "submitting"
	StateCompleted       State = "completed"
	StateErrored         State = "errored"
)

const (
	EventLoad          Event = "load"
	EventQuestionReady Event = "question_ready"
	EventSubmit        Event = "submit"
	EventComplete      Event = "complete"
	EventFail          Event = "fail"
	EventResume        Event = "resume"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		switch current {
		case StateCompleted:
			return current, invalidTransition(current, event)
		case StateUninitialized, StateLoadingQuestion, StateAwaitingAnswer, StateSubmitting, StateErrored:
			return StateErrored, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateUninitialized:
		switch event {
		case EventLoad:
			return StateLoadingQuestion, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateLoadingQuestion:
		switch event {
		case EventQuestionReady:
			return StateAwaitingAnswer, nil
		case EventComplete:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAwaitingAnswer:
		switch event {
		case EventSubmit:
			return StateSubmitting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSubmitting:
		switch event {
		case EventQuestionReady:
			return StateAwaitingAnswer, nil
		case EventComplete:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateErrored:
		switch event {
		case EventLoad:
			return StateLoadingQuestion, nil
		case EventSubmit:
			return StateSubmitting, nil
		case EventResume:
			return StateAwaitingAnswer, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Interactive reports whether the user may capture or submit an answer in state.
func Interactive(state State) bool {
	return state == StateAwaitingAnswer || state == StateErrored
}

// Busy reports whether a network call is outstanding in state.
func Busy(state State) bool {
	return state == StateLoadingQuestion || state == StateSubmitting
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
