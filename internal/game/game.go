package game

import "errors"

// Status is the game-wide state machine value persisted on the games row.
type Status string

const (
	StatusWaiting        Status = "waiting"
	StatusPrompting      Status = "prompting"
	StatusInitialDrawing Status = "initial_drawing"
	StatusDrawing        Status = "drawing"
	StatusGuessing       Status = "guessing"
	StatusRevealing      Status = "revealing"
	StatusFinished       Status = "finished"
)

// StepType classifies one contributed unit of content within a thread.
type StepType string

const (
	StepPrompt  StepType = "prompt"
	StepDrawing StepType = "drawing"
	StepGuess   StepType = "guess"
)

var ErrNoTransition = errors.New("no transition from status")

// ExpectedStep returns the step number and step type every active thread is
// expected to receive while the game sits in the given status and round.
//
// The numbering contract: the prompt is step 0, the initial drawing is step 1,
// the guess of round R is step 2R, and the drawing of round R (R >= 2) is
// step 2R-1.
func ExpectedStep(status Status, round int) (int, StepType, bool) {
	switch status {
	case StatusPrompting:
		return 0, StepPrompt, true
	case StatusInitialDrawing:
		return 1, StepDrawing, true
	case StatusDrawing:
		return round*2 - 1, StepDrawing, true
	case StatusGuessing:
		return round * 2, StepGuess, true
	default:
		return 0, "", false
	}
}

// Transition describes the phase change computed from a completed phase.
type Transition struct {
	Status     Status
	StepType   StepType // empty for the reveal transition
	Round      int
	Assign     bool // whether handoff assignment is required
	SourceStep int  // step number whose content feeds the next assignment
	Reveal     bool
}

// NextPhase computes the successor phase for a game whose current phase just
// completed. It is a pure function of (status, round, numRounds).
func NextPhase(status Status, round, numRounds int) (Transition, error) {
	source, _, _ := ExpectedStep(status, round)
	switch status {
	case StatusPrompting:
		// Players draw their own prompt first.
		return Transition{Status: StatusInitialDrawing, StepType: StepDrawing, Round: 0, Assign: true, SourceStep: source}, nil
	case StatusInitialDrawing:
		return Transition{Status: StatusGuessing, StepType: StepGuess, Round: 1, Assign: true, SourceStep: source}, nil
	case StatusDrawing:
		return Transition{Status: StatusGuessing, StepType: StepGuess, Round: round, Assign: true, SourceStep: source}, nil
	case StatusGuessing:
		if round < numRounds {
			return Transition{Status: StatusDrawing, StepType: StepDrawing, Round: round + 1, Assign: true, SourceStep: source}, nil
		}
		return Transition{Status: StatusRevealing, Round: round, Reveal: true}, nil
	default:
		return Transition{}, ErrNoTransition
	}
}

// Checkable reports whether a status participates in phase-completion checks.
// Waiting, revealing and finished games are never checked.
func Checkable(status Status) bool {
	switch status {
	case StatusPrompting, StatusInitialDrawing, StatusDrawing, StatusGuessing:
		return true
	default:
		return false
	}
}
