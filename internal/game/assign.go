package game

import "math/rand"

// Handoff is one piece of completed content waiting to be passed on: the prior
// step of an active thread together with the players it must avoid.
type Handoff struct {
	ThreadID     uint
	Text         string
	Image        []byte
	PrevPlayerID uint // immediate previous contributor
	OriginID     uint // thread's original prompt author
}

// Assignment maps a thread's handoff content to the player who acts on it next.
type Assignment struct {
	ThreadID uint
	PlayerID uint
}

// AssignResult is the outcome of one phase's assignment pass.
type AssignResult struct {
	Assignments []Assignment
	// Unassigned lists threads that could not receive an assignee because the
	// player pool was exhausted. Callers deactivate these.
	Unassigned []uint
}

// AssignThreads distributes handoff items among the active players for the next
// phase. Rules, in order:
//
//  1. No assignee is the item's previous contributor, unless a single active
//     player remains in the game.
//  2. Among eligible players, non-originators of the thread are preferred.
//  3. Each player receives at most one item; each item at most one player.
//  4. Selection among equally eligible candidates is uniform random.
//
// When a greedy pick would leave an item with only its previous contributor,
// the pick is repaired by swapping with an earlier assignment, so rule 1 only
// relaxes in the single-player case.
func AssignThreads(items []Handoff, players []uint) AssignResult {
	shuffled := make([]Handoff, len(items))
	copy(shuffled, items)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	available := make(map[uint]struct{}, len(players))
	for _, id := range players {
		available[id] = struct{}{}
	}

	var result AssignResult
	for _, item := range shuffled {
		if len(available) == 0 {
			result.Unassigned = append(result.Unassigned, item.ThreadID)
			continue
		}
		assignee, ok := pickAssignee(item, available, len(players))
		if !ok {
			// The only remaining candidate is the previous contributor.
			assignee, ok = repairPick(&result, item)
			if !ok {
				result.Unassigned = append(result.Unassigned, item.ThreadID)
				continue
			}
			// The previous contributor took over the swapped assignment.
			delete(available, item.PrevPlayerID)
		}
		delete(available, assignee)
		result.Assignments = append(result.Assignments, Assignment{ThreadID: item.ThreadID, PlayerID: assignee})
	}
	return result
}

func pickAssignee(item Handoff, available map[uint]struct{}, totalPlayers int) (uint, bool) {
	eligible := make([]uint, 0, len(available))
	for id := range available {
		if id != item.PrevPlayerID {
			eligible = append(eligible, id)
		}
	}
	if len(eligible) == 0 {
		if totalPlayers == 1 {
			// Degenerate single-player game: handing back is permitted.
			if _, ok := available[item.PrevPlayerID]; ok {
				return item.PrevPlayerID, true
			}
		}
		return 0, false
	}
	nonOrigin := eligible[:0:0]
	for _, id := range eligible {
		if id != item.OriginID {
			nonOrigin = append(nonOrigin, id)
		}
	}
	if len(nonOrigin) > 0 {
		return nonOrigin[rand.Intn(len(nonOrigin))], true
	}
	return eligible[rand.Intn(len(eligible))], true
}

// repairPick resolves a greedy dead end: the current item's only remaining
// candidate is its own previous contributor. Previous contributors are
// distinct across items (a player submits once per phase), so any earlier
// assignment can legally trade: its player takes the stuck item, and the
// stuck candidate takes the earlier item.
func repairPick(result *AssignResult, item Handoff) (uint, bool) {
	for i := range result.Assignments {
		prior := &result.Assignments[i]
		if prior.PlayerID == item.PrevPlayerID {
			continue
		}
		assignee := prior.PlayerID
		prior.PlayerID = item.PrevPlayerID
		return assignee, true
	}
	return 0, false
}
