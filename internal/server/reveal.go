package server

import (
	"log"
	"sort"

	"sketch-relay/internal/game"
)

// buildReveal assembles the ordered history of every active thread, sorted by
// originator name for stable display. Pure over the fetched rows, so repeated
// calls for a finished game always produce the same structure.
func (s *Server) buildReveal(gameID uint) ([]map[string]any, error) {
	threads, err := s.gw.RevealThreads(gameID)
	if err != nil {
		return nil, err
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].OriginPlayerName != threads[j].OriginPlayerName {
			return threads[i].OriginPlayerName < threads[j].OriginPlayerName
		}
		return threads[i].ThreadID < threads[j].ThreadID
	})

	payload := make([]map[string]any, 0, len(threads))
	for _, thread := range threads {
		steps := make([]map[string]any, 0, len(thread.Steps))
		for _, step := range thread.Steps {
			content := step.Text
			if step.StepType == game.StepDrawing {
				content = encodeImageData(step.Image)
			}
			steps = append(steps, map[string]any{
				"step_number":   step.StepNumber,
				"step_type":     string(step.StepType),
				"content":       content,
				"player_id":     step.PlayerID,
				"player_name":   step.PlayerName,
				"player_active": step.PlayerActive,
			})
		}
		payload = append(payload, map[string]any{
			"thread_id":            thread.ThreadID,
			"original_player_id":   thread.OriginPlayerID,
			"original_player_name": thread.OriginPlayerName,
			"steps":                steps,
		})
	}
	return payload, nil
}

// triggerReveal sends the final thread histories to the room and marks the
// game finished. Caller holds sess.mu.
func (s *Server) triggerReveal(sess *session, g *game.Game) {
	s.cancelPhaseTimer(sess)
	sess.clearAssignments()

	threads, err := s.buildReveal(g.ID)
	if err != nil {
		s.reportInternalError(sess.code, "reveal", err)
		// Fall through: the game still ends, clients just miss the data.
	} else {
		s.hub.broadcastRoom(sess.code, "reveal_data", map[string]any{"threads": threads})
		log.Printf("reveal sent game=%s threads=%d", sess.code, len(threads))
	}

	if err := s.gw.SetGameState(g.ID, game.StatusFinished, "", g.CurrentRound); err != nil {
		s.reportInternalError(sess.code, "reveal", err)
	}
	s.recordEvent(g.ID, 0, "game_finished", map[string]any{"reason": "revealed"})
	s.sessions.remove(sess.gameID)
	s.broadcastWaitingGames()
}
