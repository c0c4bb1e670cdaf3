package server

import (
	"log"

	"sketch-relay/internal/game"
)

// checkPhaseCompletion decides whether the game's current phase is done and,
// if so, drives the transition. Called after every submission and, with
// forced=true, when a phase timer expires.
func (s *Server) checkPhaseCompletion(sess *session, forced bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.checkPhaseCompletionLocked(sess, forced)
}

func (s *Server) checkPhaseCompletionLocked(sess *session, forced bool) {
	g, err := s.gw.GameByID(sess.gameID)
	if err != nil {
		log.Printf("completion check failed game_id=%d error=%v", sess.gameID, err)
		return
	}
	if !game.Checkable(g.Status) {
		return
	}

	stepNumber, stepType, ok := game.ExpectedStep(g.Status, g.CurrentRound)
	if !ok {
		log.Printf("completion check with no expected step game=%s status=%s", sess.code, g.Status)
		return
	}

	threadIDs, err := s.gw.ActiveThreadIDs(g.ID)
	if err != nil {
		s.reportInternalError(sess.code, "completion check", err)
		return
	}
	required := len(threadIDs)

	if required == 0 && !forced {
		log.Printf("no active threads remain game=%s ending", sess.code)
		s.endGame(sess, g, "No active threads left.")
		return
	}

	submitted, err := s.gw.CountSteps(g.ID, stepNumber, stepType)
	if err != nil {
		s.reportInternalError(sess.code, "completion check", err)
		return
	}
	log.Printf("completion check game=%s status=%s step=%d submitted=%d required=%d forced=%t",
		sess.code, g.Status, stepNumber, submitted, required, forced)

	if submitted >= required {
		s.cancelPhaseTimer(sess)
		sess.clearAssignments()
		s.transitionToNextPhase(sess, g)
		return
	}

	if !forced {
		// Not complete and no deadline pressure: wait for more submissions.
		return
	}

	// Forced transition with missing submissions: attribute the misses via
	// the stored assignment map and deactivate the dropouts' threads.
	deactivated := s.reconcileDropouts(sess, g, stepNumber, stepType, threadIDs)
	if required-deactivated <= 0 {
		log.Printf("all threads dropped out game=%s ending", sess.code)
		s.endGame(sess, g, "All active threads ended due to missed turns.")
		return
	}
	s.cancelPhaseTimer(sess)
	sess.clearAssignments()
	s.transitionToNextPhase(sess, g)
}

// reconcileDropouts deactivates the threads whose assigned player never
// submitted. When the stored assignment map is missing or belongs to a
// different phase, attribution would be guesswork, so no thread is blamed.
func (s *Server) reconcileDropouts(sess *session, g *game.Game, stepNumber int, stepType game.StepType, activeThreads []uint) int {
	if sess.assignments == nil || sess.phase != stepType {
		log.Printf("assignment map missing or mismatched game=%s phase=%s have=%s skipping dropout attribution",
			sess.code, stepType, sess.phase)
		return 0
	}

	submittedSteps, err := s.gw.StepsForPhase(g.ID, stepNumber)
	if err != nil {
		s.reportInternalError(sess.code, "dropout reconciliation", err)
		return 0
	}
	submittedBy := make(map[uint]struct{}, len(submittedSteps))
	for _, step := range submittedSteps {
		submittedBy[step.PlayerID] = struct{}{}
	}
	active := make(map[uint]struct{}, len(activeThreads))
	for _, id := range activeThreads {
		active[id] = struct{}{}
	}

	deactivated := 0
	for threadID, playerID := range sess.assignments {
		if _, ok := active[threadID]; !ok {
			continue
		}
		if _, ok := submittedBy[playerID]; ok {
			continue
		}
		log.Printf("dropout game=%s thread=%d player=%d missed step %d", sess.code, threadID, playerID, stepNumber)
		if err := s.gw.DeactivateThread(threadID); err != nil {
			s.reportInternalError(sess.code, "thread deactivation", err)
			continue
		}
		s.recordEvent(g.ID, playerID, "thread_deactivated", map[string]any{
			"thread_id": threadID,
			"step":      stepNumber,
			"reason":    "missed turn",
		})
		deactivated++
	}
	return deactivated
}

func (s *Server) reportInternalError(code, operation string, err error) {
	log.Printf("%s failed game=%s error=%v", operation, code, err)
	s.hub.broadcastRoom(code, "error_message", map[string]any{
		"message": "Internal server error checking game progress.",
	})
}
