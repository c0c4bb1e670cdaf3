package server

import (
	"log"
	"time"

	"sketch-relay/internal/game"
)

// startPhaseTimer arms the countdown for the phase a game just entered,
// replacing any timer already running for that game, and announces it to the
// room. Caller holds sess.mu.
func (s *Server) startPhaseTimer(sess *session, phaseName string, seconds int) {
	if seconds <= 0 {
		seconds = 60
	}
	if sess.timer != nil {
		sess.timer.Stop()
	}
	g, err := s.gw.GameByID(sess.gameID)
	if err != nil {
		log.Printf("phase timer skipped game_id=%d error=%v", sess.gameID, err)
		return
	}
	expectedStatus, expectedRound := g.Status, g.CurrentRound
	log.Printf("phase timer started game=%s phase=%s duration=%ds", sess.code, phaseName, seconds)
	s.hub.broadcastRoom(sess.code, "start_timer", map[string]any{
		"phase":    phaseName,
		"duration": seconds,
	})
	sess.timer = time.AfterFunc(time.Duration(seconds)*time.Second, func() {
		s.phaseTimerFired(sess, phaseName, expectedStatus, expectedRound)
	})
}

// cancelPhaseTimer stops the pending timer, if any. Caller holds sess.mu.
func (s *Server) cancelPhaseTimer(sess *session) {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
}

// phaseTimerFired runs when a phase countdown expires. A timer that lost the
// race against natural completion finds the game in a different phase and
// stands down rather than forcing a transition on a fresh phase.
func (s *Server) phaseTimerFired(sess *session, phaseName string, expectedStatus game.Status, expectedRound int) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	g, err := s.gw.GameByID(sess.gameID)
	if err != nil {
		log.Printf("phase timer fired for missing game game_id=%d error=%v", sess.gameID, err)
		return
	}
	if g.Status != expectedStatus || g.CurrentRound != expectedRound {
		log.Printf("stale phase timer ignored game=%s expected=%s/%d actual=%s/%d",
			sess.code, expectedStatus, expectedRound, g.Status, g.CurrentRound)
		return
	}
	log.Printf("phase timer expired game=%s phase=%s forcing transition", sess.code, phaseName)
	s.hub.broadcastRoom(sess.code, "times_up", map[string]any{"phase": phaseName})
	s.checkPhaseCompletionLocked(sess, true)
}

func phaseName(stepType game.StepType) string {
	switch stepType {
	case game.StepPrompt:
		return "prompting"
	case game.StepDrawing:
		return "drawing"
	case game.StepGuess:
		return "guessing"
	default:
		return string(stepType)
	}
}

func (s *Server) phaseSeconds(g *game.Game, stepType game.StepType) int {
	switch stepType {
	case game.StepPrompt:
		return g.PromptSeconds
	case game.StepDrawing:
		return g.DrawSeconds
	case game.StepGuess:
		return g.GuessSeconds
	default:
		return 0
	}
}
