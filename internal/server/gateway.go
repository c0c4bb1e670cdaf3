package server

import "sketch-relay/internal/game"

// Gateway is the persistence surface the coordinator drives. The production
// implementation lives in internal/db; tests inject a fake.
type Gateway interface {
	CreateGame(code, playerName, sessionID string, numRounds, promptSec, drawSec, guessSec int) (gameID, playerID uint, err error)
	GameByID(id uint) (*game.Game, error)
	GameByCode(code string) (*game.Game, error)

	ActivePlayers(gameID uint) ([]game.Player, error)
	AddPlayer(gameID uint, name, sessionID string) (uint, error)
	FindInactivePlayer(gameID uint, name string) (uint, bool, error)
	ReactivatePlayer(playerID uint, sessionID string) error
	DeactivatePlayer(playerID uint) error
	PlayerBySession(sessionID string) (*game.PlayerSession, error)
	SessionID(playerID uint) (string, error)

	CreateThreads(gameID uint, playerIDs []uint) error
	ActiveThreadIDs(gameID uint) ([]uint, error)
	PromptThreadID(gameID, playerID uint) (uint, error)
	DeactivateThread(threadID uint) error

	SaveStep(threadID, playerID uint, stepNumber int, stepType game.StepType, text string, image []byte) error
	CountSteps(gameID uint, stepNumber int, stepType game.StepType) (int, error)
	StepsForPhase(gameID uint, stepNumber int) ([]game.SubmittedStep, error)
	HandoffItems(gameID uint, stepNumber int) ([]game.Handoff, error)

	SetGameState(gameID uint, status game.Status, stepType game.StepType, round int) error
	RevealThreads(gameID uint) ([]game.RevealThread, error)
	RandomPrompt() (string, error)
	WaitingGames() ([]game.WaitingGame, error)
	RecordEvent(gameID, playerID uint, eventType string, payload any) error
}
