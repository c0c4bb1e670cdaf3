package server

import (
	"sync"
	"time"

	"sketch-relay/internal/game"
)

// session is the coordinator-owned in-memory record for one running game: the
// active phase timer and the current phase's thread-to-player assignment map.
// Created at game start, destroyed when the game finishes. Its mutex
// serializes all phase-completion work for the game; different games
// interleave freely.
type session struct {
	gameID uint
	code   string

	mu          sync.Mutex
	timer       *time.Timer
	phase       game.StepType // step type the stored assignments were made for
	assignments map[uint]uint // thread id -> assigned player id
}

// setAssignments replaces the phase assignment map. Caller holds mu.
func (sess *session) setAssignments(phase game.StepType, assignments map[uint]uint) {
	sess.phase = phase
	sess.assignments = assignments
}

// clearAssignments drops the phase assignment map. Caller holds mu.
func (sess *session) clearAssignments() {
	sess.phase = ""
	sess.assignments = nil
}

// assignedPlayer reports which player holds the task for a thread this phase.
// Caller holds mu.
func (sess *session) assignedPlayer(threadID uint) (uint, bool) {
	playerID, ok := sess.assignments[threadID]
	return playerID, ok
}

type sessionRegistry struct {
	mu     sync.Mutex
	byGame map[uint]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byGame: make(map[uint]*session)}
}

func (r *sessionRegistry) create(gameID uint, code string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.byGame[gameID]; ok {
		return sess
	}
	sess := &session{gameID: gameID, code: code}
	r.byGame[gameID] = sess
	return sess
}

func (r *sessionRegistry) get(gameID uint) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byGame[gameID]
	return sess, ok
}

func (r *sessionRegistry) remove(gameID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byGame, gameID)
}
