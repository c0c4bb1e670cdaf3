package game

import "errors"

// Sentinel errors shared between the persistence gateway and the coordinator.
var (
	ErrNotFound       = errors.New("not found")
	ErrNameTaken      = errors.New("name already taken in this game")
	ErrCodeTaken      = errors.New("game code already exists")
	ErrDuplicateStep  = errors.New("step already submitted")
	ErrThreadInactive = errors.New("thread is no longer active")
)

// Game mirrors the persisted games row.
type Game struct {
	ID              uint
	Code            string
	Status          Status
	CurrentRound    int
	CurrentStepType StepType // empty when no step type applies
	NumRounds       int
	PromptSeconds   int
	DrawSeconds     int
	GuessSeconds    int
	MasterPlayerID  uint // zero until the first player is created
}

// Player is an active participant of a game.
type Player struct {
	ID        uint
	Name      string
	SessionID string // empty while disconnected
}

// PlayerSession resolves a transport session back to its player and game.
type PlayerSession struct {
	PlayerID uint
	GameID   uint
	GameCode string
	Status   Status
}

// SubmittedStep records who submitted for which thread within one phase.
type SubmittedStep struct {
	ThreadID uint
	PlayerID uint
}

// WaitingGame is one row of the joinable-games listing.
type WaitingGame struct {
	GameID      uint
	Code        string
	PlayerCount int
}

// RevealStep is one entry of a thread's full history.
type RevealStep struct {
	StepNumber   int
	StepType     StepType
	Text         string
	Image        []byte
	PlayerID     uint
	PlayerName   string
	PlayerActive bool
}

// RevealThread is the ordered history of one still-active thread.
type RevealThread struct {
	ThreadID         uint
	OriginPlayerID   uint
	OriginPlayerName string
	Steps            []RevealStep
}
