package server

import (
	"sort"
	"sync"

	"sketch-relay/internal/game"
)

// fakeGateway is an in-memory Gateway with the same observable semantics as
// the database implementation.
type fakeGateway struct {
	mu      sync.Mutex
	nextID  uint
	games   map[uint]*game.Game
	byCode  map[string]uint
	players map[uint]*fakePlayer
	threads map[uint]*fakeThread
	steps   []fakeStep
	prompts []string
	events  []fakeEvent
}

type fakePlayer struct {
	id        uint
	gameID    uint
	name      string
	sessionID string
	active    bool
}

type fakeThread struct {
	id       uint
	gameID   uint
	originID uint
	active   bool
}

type fakeStep struct {
	threadID   uint
	playerID   uint
	stepNumber int
	stepType   game.StepType
	text       string
	image      []byte
}

type fakeEvent struct {
	gameID    uint
	playerID  uint
	eventType string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		games:   make(map[uint]*game.Game),
		byCode:  make(map[string]uint),
		players: make(map[uint]*fakePlayer),
		threads: make(map[uint]*fakeThread),
	}
}

func (f *fakeGateway) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeGateway) CreateGame(code, playerName, sessionID string, numRounds, promptSec, drawSec, guessSec int) (uint, uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.byCode[code]; taken {
		return 0, 0, game.ErrCodeTaken
	}
	gameID := f.id()
	playerID := f.id()
	f.games[gameID] = &game.Game{
		ID:             gameID,
		Code:           code,
		Status:         game.StatusWaiting,
		NumRounds:      numRounds,
		PromptSeconds:  promptSec,
		DrawSeconds:    drawSec,
		GuessSeconds:   guessSec,
		MasterPlayerID: playerID,
	}
	f.byCode[code] = gameID
	f.players[playerID] = &fakePlayer{id: playerID, gameID: gameID, name: playerName, sessionID: sessionID, active: true}
	return gameID, playerID, nil
}

func (f *fakeGateway) GameByID(id uint) (*game.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGateway) GameByCode(code string) (*game.Game, error) {
	f.mu.Lock()
	id, ok := f.byCode[code]
	f.mu.Unlock()
	if !ok {
		return nil, game.ErrNotFound
	}
	return f.GameByID(id)
}

func (f *fakeGateway) ActivePlayers(gameID uint) ([]game.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var players []game.Player
	for _, p := range f.players {
		if p.gameID == gameID && p.active {
			players = append(players, game.Player{ID: p.id, Name: p.name, SessionID: p.sessionID})
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (f *fakeGateway) AddPlayer(gameID uint, name, sessionID string) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.gameID == gameID && p.active && p.name == name {
			return 0, game.ErrNameTaken
		}
	}
	playerID := f.id()
	f.players[playerID] = &fakePlayer{id: playerID, gameID: gameID, name: name, sessionID: sessionID, active: true}
	return playerID, nil
}

func (f *fakeGateway) FindInactivePlayer(gameID uint, name string) (uint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best uint
	for _, p := range f.players {
		if p.gameID == gameID && !p.active && p.name == name && p.id > best {
			best = p.id
		}
	}
	return best, best != 0, nil
}

func (f *fakeGateway) ReactivatePlayer(playerID uint, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[playerID]; ok {
		p.active = true
		p.sessionID = sessionID
	}
	return nil
}

func (f *fakeGateway) DeactivatePlayer(playerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[playerID]; ok {
		p.active = false
		p.sessionID = ""
	}
	for _, thread := range f.threads {
		if thread.originID == playerID {
			thread.active = false
		}
	}
	return nil
}

func (f *fakeGateway) PlayerBySession(sessionID string) (*game.PlayerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.active && p.sessionID == sessionID && sessionID != "" {
			g := f.games[p.gameID]
			return &game.PlayerSession{PlayerID: p.id, GameID: p.gameID, GameCode: g.Code, Status: g.Status}, nil
		}
	}
	return nil, game.ErrNotFound
}

func (f *fakeGateway) SessionID(playerID uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[playerID]; ok && p.active {
		return p.sessionID, nil
	}
	return "", nil
}

func (f *fakeGateway) CreateThreads(gameID uint, playerIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, playerID := range playerIDs {
		id := f.id()
		f.threads[id] = &fakeThread{id: id, gameID: gameID, originID: playerID, active: true}
	}
	return nil
}

func (f *fakeGateway) ActiveThreadIDs(gameID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint
	for _, thread := range f.threads {
		if thread.gameID == gameID && thread.active {
			ids = append(ids, thread.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeGateway) PromptThreadID(gameID, playerID uint) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, thread := range f.threads {
		if thread.gameID == gameID && thread.originID == playerID && thread.active {
			return thread.id, nil
		}
	}
	return 0, game.ErrNotFound
}

func (f *fakeGateway) DeactivateThread(threadID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if thread, ok := f.threads[threadID]; ok {
		thread.active = false
	}
	return nil
}

func (f *fakeGateway) SaveStep(threadID, playerID uint, stepNumber int, stepType game.StepType, text string, image []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadID]
	if !ok {
		return game.ErrNotFound
	}
	if !thread.active {
		return game.ErrThreadInactive
	}
	for _, step := range f.steps {
		if step.threadID == threadID && step.stepNumber == stepNumber {
			return game.ErrDuplicateStep
		}
	}
	f.steps = append(f.steps, fakeStep{threadID: threadID, playerID: playerID, stepNumber: stepNumber, stepType: stepType, text: text, image: image})
	return nil
}

func (f *fakeGateway) CountSteps(gameID uint, stepNumber int, stepType game.StepType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, step := range f.steps {
		thread := f.threads[step.threadID]
		if thread != nil && thread.gameID == gameID && thread.active &&
			step.stepNumber == stepNumber && step.stepType == stepType {
			count++
		}
	}
	return count, nil
}

func (f *fakeGateway) StepsForPhase(gameID uint, stepNumber int) ([]game.SubmittedStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []game.SubmittedStep
	for _, step := range f.steps {
		thread := f.threads[step.threadID]
		if thread != nil && thread.gameID == gameID && thread.active && step.stepNumber == stepNumber {
			rows = append(rows, game.SubmittedStep{ThreadID: step.threadID, PlayerID: step.playerID})
		}
	}
	return rows, nil
}

func (f *fakeGateway) HandoffItems(gameID uint, stepNumber int) ([]game.Handoff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []game.Handoff
	for _, step := range f.steps {
		thread := f.threads[step.threadID]
		if thread != nil && thread.gameID == gameID && thread.active && step.stepNumber == stepNumber {
			items = append(items, game.Handoff{
				ThreadID:     step.threadID,
				Text:         step.text,
				Image:        step.image,
				PrevPlayerID: step.playerID,
				OriginID:     thread.originID,
			})
		}
	}
	return items, nil
}

func (f *fakeGateway) SetGameState(gameID uint, status game.Status, stepType game.StepType, round int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return game.ErrNotFound
	}
	g.Status = status
	g.CurrentStepType = stepType
	g.CurrentRound = round
	return nil
}

func (f *fakeGateway) RevealThreads(gameID uint) ([]game.RevealThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var threads []game.RevealThread
	for _, thread := range f.threads {
		if thread.gameID != gameID || !thread.active {
			continue
		}
		origin := f.players[thread.originID]
		rt := game.RevealThread{ThreadID: thread.id, OriginPlayerID: thread.originID}
		if origin != nil {
			rt.OriginPlayerName = origin.name
		}
		for _, step := range f.steps {
			if step.threadID != thread.id {
				continue
			}
			reveal := game.RevealStep{
				StepNumber: step.stepNumber,
				StepType:   step.stepType,
				Text:       step.text,
				Image:      step.image,
				PlayerID:   step.playerID,
			}
			if p := f.players[step.playerID]; p != nil {
				reveal.PlayerName = p.name
				reveal.PlayerActive = p.active
			}
			rt.Steps = append(rt.Steps, reveal)
		}
		sort.Slice(rt.Steps, func(i, j int) bool { return rt.Steps[i].StepNumber < rt.Steps[j].StepNumber })
		threads = append(threads, rt)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ThreadID < threads[j].ThreadID })
	return threads, nil
}

func (f *fakeGateway) RandomPrompt() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return "", game.ErrNotFound
	}
	return f.prompts[0], nil
}

func (f *fakeGateway) WaitingGames() ([]game.WaitingGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []game.WaitingGame
	for _, g := range f.games {
		if g.Status != game.StatusWaiting {
			continue
		}
		count := 0
		for _, p := range f.players {
			if p.gameID == g.ID && p.active {
				count++
			}
		}
		list = append(list, game.WaitingGame{GameID: g.ID, Code: g.Code, PlayerCount: count})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].GameID < list[j].GameID })
	return list, nil
}

func (f *fakeGateway) RecordEvent(gameID, playerID uint, eventType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fakeEvent{gameID: gameID, playerID: playerID, eventType: eventType})
	return nil
}

func (f *fakeGateway) eventTypes(gameID uint) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, event := range f.events {
		if event.gameID == gameID {
			types = append(types, event.eventType)
		}
	}
	return types
}
