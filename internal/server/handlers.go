package server

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"sketch-relay/internal/game"
)

type createGameRequest struct {
	PlayerName    string `json:"player_name"`
	GameCode      string `json:"game_code"`
	NumRounds     int    `json:"num_rounds"`
	PromptSeconds int    `json:"prompt_seconds"`
	DrawSeconds   int    `json:"draw_seconds"`
	GuessSeconds  int    `json:"guess_seconds"`
}

type joinGameRequest struct {
	GameCode   string `json:"game_code"`
	PlayerName string `json:"player_name"`
}

type startGameRequest struct {
	GameCode string `json:"game_code"`
	PlayerID uint   `json:"player_id"`
}

type submitPromptRequest struct {
	GameCode string `json:"game_code"`
	PlayerID uint   `json:"player_id"`
	Prompt   string `json:"prompt"`
}

type submitDrawingRequest struct {
	GameCode  string `json:"game_code"`
	PlayerID  uint   `json:"player_id"`
	ThreadID  uint   `json:"thread_id"`
	ImageData string `json:"image_data"`
}

type submitGuessRequest struct {
	GameCode string `json:"game_code"`
	PlayerID uint   `json:"player_id"`
	ThreadID uint   `json:"thread_id"`
	Guess    string `json:"guess"`
}

type getRevealRequest struct {
	GameCode string `json:"game_code"`
}

func (s *Server) handleCreateGame(c *client, data json.RawMessage) {
	var req createGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed create_game request"})
		return
	}
	name, err := validateName(req.PlayerName)
	if err != nil {
		c.send("error_message", map[string]any{"message": err.Error()})
		return
	}
	code, err := validateGameCode(req.GameCode)
	if err != nil {
		c.send("error_message", map[string]any{"message": err.Error()})
		return
	}
	if code == "" {
		code = newGameCode()
	}
	numRounds := req.NumRounds
	if numRounds <= 0 {
		numRounds = s.cfg.NumRounds
	}
	promptSec := positiveOr(req.PromptSeconds, s.cfg.PromptSeconds)
	drawSec := positiveOr(req.DrawSeconds, s.cfg.DrawSeconds)
	guessSec := positiveOr(req.GuessSeconds, s.cfg.GuessSeconds)

	gameID, playerID, err := s.gw.CreateGame(code, name, c.sessionID, numRounds, promptSec, drawSec, guessSec)
	if err != nil {
		if errors.Is(err, game.ErrCodeTaken) {
			c.send("error_message", map[string]any{"message": "Game code '" + code + "' already exists. Try joining or use a different code."})
			return
		}
		log.Printf("create game failed code=%s error=%v", code, err)
		c.send("error_message", map[string]any{"message": "Failed to create game."})
		return
	}

	s.hub.join(code, c)
	c.send("game_created", map[string]any{
		"game_code":      code,
		"game_id":        gameID,
		"player_id":      playerID,
		"player_name":    name,
		"is_game_master": true,
		"players":        []map[string]any{{"player_id": playerID, "player_name": name}},
	})
	s.recordEvent(gameID, playerID, "game_created", map[string]any{"code": code})
	log.Printf("game created game_id=%d code=%s master=%s", gameID, code, name)
	s.broadcastWaitingGames()
}

func (s *Server) handleJoinGame(c *client, data json.RawMessage) {
	var req joinGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed join_game request"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.GameCode))
	name, err := validateName(req.PlayerName)
	if code == "" || err != nil {
		c.send("error_message", map[string]any{"message": "Please provide game code and name."})
		return
	}

	g, err := s.gw.GameByCode(code)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			c.send("error_message", map[string]any{"message": "Game not found. It might have started or ended."})
			s.broadcastWaitingGames()
			return
		}
		c.send("error_message", map[string]any{"message": "Failed to join game."})
		return
	}

	inactiveID, found, err := s.gw.FindInactivePlayer(g.ID, name)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Failed to join game."})
		return
	}

	var playerID uint
	rejoined := false
	// Rejoin is allowed while the game is waiting or mid-phase; a finished
	// or revealing game takes no one back.
	if found && (g.Status == game.StatusWaiting || game.Checkable(g.Status)) {
		if err := s.gw.ReactivatePlayer(inactiveID, c.sessionID); err != nil {
			c.send("error_message", map[string]any{"message": "Failed to rejoin game."})
			return
		}
		playerID = inactiveID
		rejoined = true
		log.Printf("player rejoined game=%s player=%s player_id=%d", code, name, playerID)
	} else {
		if g.Status != game.StatusWaiting {
			c.send("error_message", map[string]any{"message": "Game has already started or finished."})
			s.broadcastWaitingGames()
			return
		}
		playerID, err = s.gw.AddPlayer(g.ID, name, c.sessionID)
		if err != nil {
			if errors.Is(err, game.ErrNameTaken) {
				c.send("error_message", map[string]any{"message": "Name '" + name + "' is already taken in this game."})
				return
			}
			log.Printf("join failed game=%s player=%s error=%v", code, name, err)
			c.send("error_message", map[string]any{"message": "Failed to add player."})
			return
		}
		log.Printf("player joined game=%s player=%s player_id=%d", code, name, playerID)
	}

	s.hub.join(code, c)
	players, err := s.gw.ActivePlayers(g.ID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Failed to join game."})
		return
	}
	c.send("game_joined", map[string]any{
		"game_code":      code,
		"game_id":        g.ID,
		"player_id":      playerID,
		"player_name":    name,
		"is_game_master": g.MasterPlayerID == playerID,
		"game_status":    string(g.Status),
		"players":        playersPayload(players),
	})
	s.hub.broadcastRoom(code, "player_joined", map[string]any{"players": playersPayload(players)})
	s.recordEvent(g.ID, playerID, "player_joined", map[string]any{"name": name, "rejoined": rejoined})
	if !rejoined {
		s.broadcastWaitingGames()
	}
}

func (s *Server) handleStartGame(c *client, data json.RawMessage) {
	var req startGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed start_game request"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.GameCode))
	g, err := s.gw.GameByCode(code)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Game not found."})
		return
	}
	if req.PlayerID != g.MasterPlayerID {
		c.send("error_message", map[string]any{"message": "Only the game master can start."})
		return
	}
	if g.Status != game.StatusWaiting {
		c.send("error_message", map[string]any{"message": "Game already started or finished."})
		return
	}
	players, err := s.gw.ActivePlayers(g.ID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Failed to start game."})
		return
	}
	if len(players) < 2 {
		c.send("error_message", map[string]any{"message": "Need at least 2 players."})
		return
	}

	// Threads exist before prompting so a missed first prompt still leaves a
	// thread to retire.
	playerIDs := make([]uint, 0, len(players))
	for _, player := range players {
		playerIDs = append(playerIDs, player.ID)
	}
	if err := s.gw.CreateThreads(g.ID, playerIDs); err != nil {
		log.Printf("thread creation failed game=%s error=%v", code, err)
		c.send("error_message", map[string]any{"message": "Failed to start game."})
		return
	}
	if err := s.gw.SetGameState(g.ID, game.StatusPrompting, game.StepPrompt, 0); err != nil {
		log.Printf("start transition failed game=%s error=%v", code, err)
		c.send("error_message", map[string]any{"message": "Failed to start game."})
		return
	}

	sess := s.sessions.create(g.ID, code)
	sess.mu.Lock()
	// Every player prompts their own thread; record that so a forced check
	// can attribute missing prompts.
	threadIDs, err := s.gw.ActiveThreadIDs(g.ID)
	if err == nil && len(threadIDs) == len(playerIDs) {
		assignments := make(map[uint]uint, len(playerIDs))
		for _, playerID := range playerIDs {
			if threadID, err := s.gw.PromptThreadID(g.ID, playerID); err == nil {
				assignments[threadID] = playerID
			}
		}
		sess.setAssignments(game.StepPrompt, assignments)
	}
	s.hub.broadcastRoom(code, "game_started", map[string]any{"players": playersPayload(players)})
	s.hub.broadcastRoom(code, "task_prompt", map[string]any{"duration": g.PromptSeconds})
	s.startPhaseTimer(sess, phaseName(game.StepPrompt), g.PromptSeconds)
	sess.mu.Unlock()

	s.recordEvent(g.ID, req.PlayerID, "game_started", map[string]any{"players": len(players)})
	log.Printf("game started game=%s players=%d", code, len(players))
	s.broadcastWaitingGames()
}

func (s *Server) handleSubmitPrompt(c *client, data json.RawMessage) {
	var req submitPromptRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed submit_prompt request"})
		return
	}
	text, err := validatePrompt(req.Prompt)
	if err != nil {
		c.send("error_message", map[string]any{"message": err.Error()})
		return
	}
	sess, ok := s.sessionForSubmission(c, req.GameCode)
	if !ok {
		return
	}
	s.savePrompt(c, sess, req.PlayerID, text)
}

// savePrompt persists a prompt step under the session lock. The thread lookup
// runs inside the lock so a forced transition that retires the thread cannot
// slip between the check and the write.
func (s *Server) savePrompt(c *client, sess *session, playerID uint, text string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.gw.GameByID(sess.gameID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Game not found. It might have ended."})
		return
	}
	_, stepType, ok := game.ExpectedStep(g.Status, g.CurrentRound)
	if !ok || stepType != game.StepPrompt {
		c.send("error_message", map[string]any{"message": "The game is not accepting that submission right now."})
		return
	}
	threadID, err := s.gw.PromptThreadID(g.ID, playerID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "No active thread for your prompt."})
		return
	}
	if err := s.gw.SaveStep(threadID, playerID, 0, game.StepPrompt, text, nil); err != nil {
		s.sendStepError(c, "prompt", err)
		return
	}
	c.send("submission_received", map[string]any{"type": "prompt"})
	s.checkPhaseCompletionLocked(sess, false)
}

func (s *Server) handleSubmitDrawing(c *client, data json.RawMessage) {
	var req submitDrawingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed submit_drawing request"})
		return
	}
	image, err := decodeImageData(req.ImageData)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Invalid drawing data."})
		return
	}
	sess, ok := s.sessionForSubmission(c, req.GameCode)
	if !ok {
		return
	}
	s.saveSubmission(c, sess, game.StepDrawing, req.ThreadID, req.PlayerID, "drawing", "", image)
}

func (s *Server) handleSubmitGuess(c *client, data json.RawMessage) {
	var req submitGuessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed submit_guess request"})
		return
	}
	text, err := validateGuess(req.Guess)
	if err != nil {
		c.send("error_message", map[string]any{"message": err.Error()})
		return
	}
	sess, ok := s.sessionForSubmission(c, req.GameCode)
	if !ok {
		return
	}
	s.saveSubmission(c, sess, game.StepGuess, req.ThreadID, req.PlayerID, "guess", text, nil)
}

// saveSubmission persists a drawing or guess step. The whole
// check-verify-write sequence holds the session lock, so it cannot interleave
// with a phase timer forcing a transition: a submission that lost the race
// finds the phase moved on or its assignment cleared and is rejected instead
// of landing on a retired thread.
func (s *Server) saveSubmission(c *client, sess *session, want game.StepType, threadID, playerID uint, kind, text string, image []byte) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.gw.GameByID(sess.gameID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Game not found. It might have ended."})
		return
	}
	stepNumber, stepType, ok := game.ExpectedStep(g.Status, g.CurrentRound)
	if !ok || stepType != want {
		c.send("error_message", map[string]any{"message": "The game is not accepting that submission right now."})
		return
	}
	if assignee, ok := sess.assignedPlayer(threadID); !ok || assignee != playerID {
		c.send("error_message", map[string]any{"message": "That thread is not assigned to you."})
		return
	}
	if err := s.gw.SaveStep(threadID, playerID, stepNumber, want, text, image); err != nil {
		s.sendStepError(c, kind, err)
		return
	}
	c.send("submission_received", map[string]any{"type": kind})
	s.checkPhaseCompletionLocked(sess, false)
}

func (s *Server) handleRandomPrompt(c *client, _ json.RawMessage) {
	prompt, err := s.gw.RandomPrompt()
	if err != nil {
		log.Printf("random prompt fetch failed error=%v", err)
		c.send("random_prompt_result", map[string]any{"prompt": "A dog wearing a top hat"})
		return
	}
	c.send("random_prompt_result", map[string]any{"prompt": prompt})
}

// handleGetReveal re-sends the reveal structure to a late or reconnecting
// client once a game has reached its terminal phases.
func (s *Server) handleGetReveal(c *client, data json.RawMessage) {
	var req getRevealRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send("error_message", map[string]any{"message": "malformed get_reveal request"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.GameCode))
	g, err := s.gw.GameByCode(code)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Game not found."})
		return
	}
	if g.Status != game.StatusRevealing && g.Status != game.StatusFinished {
		c.send("error_message", map[string]any{"message": "Game is not finished yet."})
		return
	}
	threads, err := s.buildReveal(g.ID)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Failed to load reveal data."})
		return
	}
	c.send("reveal_data", map[string]any{"threads": threads})
}

// handleDisconnect runs when a transport session closes: the player goes
// inactive, their originated threads retire with them, and the phase is
// re-checked since the remaining players may now satisfy it.
func (s *Server) handleDisconnect(c *client) {
	ps, err := s.gw.PlayerBySession(c.sessionID)
	if err != nil {
		if !errors.Is(err, game.ErrNotFound) {
			log.Printf("disconnect lookup failed session_id=%s error=%v", c.sessionID, err)
		}
		return
	}
	if err := s.gw.DeactivatePlayer(ps.PlayerID); err != nil {
		log.Printf("player deactivation failed player_id=%d error=%v", ps.PlayerID, err)
		return
	}
	log.Printf("player left game=%s player_id=%d", ps.GameCode, ps.PlayerID)

	players, err := s.gw.ActivePlayers(ps.GameID)
	if err == nil && len(players) > 0 {
		s.hub.broadcastRoom(ps.GameCode, "player_left", map[string]any{
			"player_id": ps.PlayerID,
			"players":   playersPayload(players),
		})
	}
	if ps.Status == game.StatusWaiting {
		s.broadcastWaitingGames()
		return
	}
	if game.Checkable(ps.Status) {
		if sess, ok := s.sessions.get(ps.GameID); ok {
			s.checkPhaseCompletion(sess, false)
		}
	}
}

// sessionForSubmission resolves the join code to the live session record.
// The phase and assignment checks happen later, under the session lock.
func (s *Server) sessionForSubmission(c *client, rawCode string) (*session, bool) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	g, err := s.gw.GameByCode(code)
	if err != nil {
		c.send("error_message", map[string]any{"message": "Game not found. It might have ended."})
		s.broadcastWaitingGames()
		return nil, false
	}
	sess, ok := s.sessions.get(g.ID)
	if !ok {
		c.send("error_message", map[string]any{"message": "Game session is no longer active."})
		return nil, false
	}
	return sess, true
}

func (s *Server) sendStepError(c *client, kind string, err error) {
	if errors.Is(err, game.ErrDuplicateStep) {
		c.send("error_message", map[string]any{"message": "You already submitted for this turn."})
		return
	}
	if errors.Is(err, game.ErrThreadInactive) {
		c.send("error_message", map[string]any{"message": "That thread is no longer active."})
		return
	}
	log.Printf("save %s failed error=%v", kind, err)
	c.send("error_message", map[string]any{"message": "Failed to save " + kind + ". Please try again."})
}

func (s *Server) broadcastWaitingGames() {
	games, err := s.gw.WaitingGames()
	if err != nil {
		log.Printf("waiting games fetch failed error=%v", err)
		return
	}
	s.hub.broadcastAll("active_games_list", waitingGamesPayload(games))
}

func (s *Server) recordEvent(gameID, playerID uint, eventType string, payload map[string]any) {
	if err := s.gw.RecordEvent(gameID, playerID, eventType, payload); err != nil {
		log.Printf("audit event failed game_id=%d type=%s error=%v", gameID, eventType, err)
	}
}

func playersPayload(players []game.Player) []map[string]any {
	payload := make([]map[string]any, 0, len(players))
	for _, player := range players {
		payload = append(payload, map[string]any{
			"player_id":   player.ID,
			"player_name": player.Name,
		})
	}
	return payload
}

func waitingGamesPayload(games []game.WaitingGame) []map[string]any {
	payload := make([]map[string]any, 0, len(games))
	for _, g := range games {
		payload = append(payload, map[string]any{
			"game_id":      g.GameID,
			"game_code":    g.Code,
			"player_count": g.PlayerCount,
		})
	}
	return payload
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
