package server

import (
	"log"

	"sketch-relay/internal/game"
)

// transitionToNextPhase advances the persisted game state and either hands
// content to the next set of players or triggers the reveal. Caller holds
// sess.mu.
func (s *Server) transitionToNextPhase(sess *session, g *game.Game) {
	tr, err := game.NextPhase(g.Status, g.CurrentRound, g.NumRounds)
	if err != nil {
		log.Printf("no transition game=%s status=%s round=%d error=%v", sess.code, g.Status, g.CurrentRound, err)
		return
	}
	log.Printf("phase transition game=%s from=%s/%d to=%s/%d", sess.code, g.Status, g.CurrentRound, tr.Status, tr.Round)

	if err := s.gw.SetGameState(g.ID, tr.Status, tr.StepType, tr.Round); err != nil {
		s.reportInternalError(sess.code, "phase transition", err)
		return
	}
	s.recordEvent(g.ID, 0, "phase_advanced", map[string]any{
		"from":  string(g.Status),
		"to":    string(tr.Status),
		"round": tr.Round,
	})

	if tr.Reveal {
		s.triggerReveal(sess, g)
		return
	}
	s.assignAndNotify(sess, g, tr)
}

// assignAndNotify computes the thread-to-player mapping for the phase just
// entered, delivers each task to its assignee's session, stores the mapping
// for dropout attribution, and arms the phase timer. Caller holds sess.mu.
func (s *Server) assignAndNotify(sess *session, g *game.Game, tr game.Transition) {
	players, err := s.gw.ActivePlayers(g.ID)
	if err != nil {
		s.reportInternalError(sess.code, "task assignment", err)
		return
	}
	if len(players) == 0 {
		log.Printf("no active players left game=%s revealing what exists", sess.code)
		s.triggerReveal(sess, g)
		return
	}

	items, err := s.gw.HandoffItems(g.ID, tr.SourceStep)
	if err != nil {
		s.reportInternalError(sess.code, "task assignment", err)
		return
	}

	// A thread still active but absent from the handoff set produced no
	// content last phase; it can never advance, so retire it now.
	s.dropThreadsWithoutContent(sess, g, items, tr.SourceStep)

	if len(items) == 0 {
		log.Printf("no content available for next phase game=%s step=%d revealing", sess.code, tr.SourceStep)
		s.triggerReveal(sess, g)
		return
	}

	var assignments map[uint]uint
	if tr.Status == game.StatusInitialDrawing {
		assignments = s.assignInitialDrawings(sess, g, items, players)
	} else {
		assignments = s.assignHandoffs(sess, g, items, players, tr.StepType)
	}
	if len(assignments) == 0 {
		log.Printf("no tasks could be assigned game=%s revealing", sess.code)
		s.triggerReveal(sess, g)
		return
	}
	sess.setAssignments(tr.StepType, assignments)
	log.Printf("tasks assigned game=%s phase=%s count=%d", sess.code, tr.StepType, len(assignments))

	s.startPhaseTimer(sess, phaseName(tr.StepType), s.phaseSeconds(g, tr.StepType))
}

// dropThreadsWithoutContent retires active threads that have nothing at the
// source step. Their turn was never submitted, so no later phase can feed
// them.
func (s *Server) dropThreadsWithoutContent(sess *session, g *game.Game, items []game.Handoff, sourceStep int) {
	threadIDs, err := s.gw.ActiveThreadIDs(g.ID)
	if err != nil {
		s.reportInternalError(sess.code, "task assignment", err)
		return
	}
	hasContent := make(map[uint]struct{}, len(items))
	for _, item := range items {
		hasContent[item.ThreadID] = struct{}{}
	}
	for _, threadID := range threadIDs {
		if _, ok := hasContent[threadID]; ok {
			continue
		}
		log.Printf("thread has no content at step %d game=%s thread=%d deactivating", sourceStep, sess.code, threadID)
		if err := s.gw.DeactivateThread(threadID); err != nil {
			s.reportInternalError(sess.code, "thread deactivation", err)
			continue
		}
		s.recordEvent(g.ID, 0, "thread_deactivated", map[string]any{
			"thread_id": threadID,
			"step":      sourceStep,
			"reason":    "no content",
		})
	}
}

// assignInitialDrawings hands every prompt back to its author: the first
// drawing of a thread is always the originator illustrating their own prompt.
func (s *Server) assignInitialDrawings(sess *session, g *game.Game, items []game.Handoff, players []game.Player) map[uint]uint {
	active := make(map[uint]struct{}, len(players))
	for _, player := range players {
		active[player.ID] = struct{}{}
	}
	assignments := make(map[uint]uint)
	duration := g.DrawSeconds
	for _, item := range items {
		if _, ok := active[item.OriginID]; !ok {
			log.Printf("originator inactive before first drawing game=%s thread=%d deactivating", sess.code, item.ThreadID)
			if err := s.gw.DeactivateThread(item.ThreadID); err != nil {
				s.reportInternalError(sess.code, "thread deactivation", err)
			}
			continue
		}
		assignments[item.ThreadID] = item.OriginID
		s.deliverTask(sess, item.OriginID, "task_draw", item.ThreadID, item.Text, duration)
	}
	return assignments
}

// assignHandoffs runs the randomized assignment engine for a normal drawing
// or guessing phase and delivers the resulting tasks.
func (s *Server) assignHandoffs(sess *session, g *game.Game, items []game.Handoff, players []game.Player, stepType game.StepType) map[uint]uint {
	playerIDs := make([]uint, 0, len(players))
	for _, player := range players {
		playerIDs = append(playerIDs, player.ID)
	}
	result := game.AssignThreads(items, playerIDs)

	// Players exhausted: the leftover threads would stall forever, so they
	// are retired rather than silently dropped.
	for _, threadID := range result.Unassigned {
		log.Printf("players exhausted game=%s thread=%d deactivating", sess.code, threadID)
		if err := s.gw.DeactivateThread(threadID); err != nil {
			s.reportInternalError(sess.code, "thread deactivation", err)
			continue
		}
		s.recordEvent(g.ID, 0, "thread_deactivated", map[string]any{
			"thread_id": threadID,
			"reason":    "no assignee available",
		})
	}

	byThread := make(map[uint]game.Handoff, len(items))
	for _, item := range items {
		byThread[item.ThreadID] = item
	}

	event := "task_draw"
	duration := g.DrawSeconds
	if stepType == game.StepGuess {
		event = "task_guess"
		duration = g.GuessSeconds
	}

	assignments := make(map[uint]uint, len(result.Assignments))
	for _, assignment := range result.Assignments {
		item := byThread[assignment.ThreadID]
		content := item.Text
		if stepType == game.StepGuess {
			// Guess tasks carry the prior drawing as a data URL.
			content = encodeImageData(item.Image)
		}
		assignments[assignment.ThreadID] = assignment.PlayerID
		s.deliverTask(sess, assignment.PlayerID, event, assignment.ThreadID, content, duration)
	}
	return assignments
}

// deliverTask emits a task event to the assignee's live transport session.
// A disconnected assignee simply misses the notification; the stored
// assignment still attributes the thread to them if they never submit.
func (s *Server) deliverTask(sess *session, playerID uint, event string, threadID uint, content string, duration int) {
	sessionID, err := s.gw.SessionID(playerID)
	if err != nil {
		log.Printf("session lookup failed game=%s player=%d error=%v", sess.code, playerID, err)
		return
	}
	if sessionID == "" {
		log.Printf("no live session for assignee game=%s player=%d task not sent", sess.code, playerID)
		return
	}
	s.hub.sendToSession(sessionID, event, map[string]any{
		"thread_id": threadID,
		"content":   content,
		"duration":  duration,
	})
}

// endGame finishes a game early, tears down its session record and tells the
// room. Caller holds sess.mu.
func (s *Server) endGame(sess *session, g *game.Game, message string) {
	s.cancelPhaseTimer(sess)
	sess.clearAssignments()
	if err := s.gw.SetGameState(g.ID, game.StatusFinished, "", g.CurrentRound); err != nil {
		s.reportInternalError(sess.code, "game end", err)
	}
	s.recordEvent(g.ID, 0, "game_finished", map[string]any{"reason": message})
	s.hub.broadcastRoom(sess.code, "game_over", map[string]any{"message": message})
	s.sessions.remove(sess.gameID)
	s.broadcastWaitingGames()
	log.Printf("game over game=%s reason=%q", sess.code, message)
}
