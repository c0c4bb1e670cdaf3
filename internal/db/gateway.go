package db

import (
	"encoding/json"
	"errors"
	"fmt"

	"sketch-relay/internal/game"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gateway exposes the persistence operations the game coordinator needs.
// Multi-row writes run inside a transaction so partial state never lands.
type Gateway struct {
	conn *gorm.DB
}

func NewGateway(conn *gorm.DB) *Gateway {
	return &Gateway{conn: conn}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateGame inserts the game and its first player (the game master) in one
// transaction and returns both ids.
func (g *Gateway) CreateGame(code, playerName, sessionID string, numRounds, promptSec, drawSec, guessSec int) (uint, uint, error) {
	var gameID, playerID uint
	err := g.conn.Transaction(func(tx *gorm.DB) error {
		record := Game{
			Code:          code,
			Status:        string(game.StatusWaiting),
			NumRounds:     numRounds,
			PromptSeconds: promptSec,
			DrawSeconds:   drawSec,
			GuessSeconds:  guessSec,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		player := Player{
			GameID:    record.ID,
			Name:      playerName,
			SessionID: &sessionID,
			IsActive:  true,
		}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		if err := tx.Model(&Game{}).Where("id = ?", record.ID).
			Update("master_player_id", player.ID).Error; err != nil {
			return err
		}
		gameID, playerID = record.ID, player.ID
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, 0, game.ErrCodeTaken
		}
		return 0, 0, fmt.Errorf("create game: %w", err)
	}
	return gameID, playerID, nil
}

func (g *Gateway) GameByID(id uint) (*game.Game, error) {
	var record Game
	if err := g.conn.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	return toGame(&record), nil
}

func (g *Gateway) GameByCode(code string) (*game.Game, error) {
	var record Game
	if err := g.conn.Where("code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	return toGame(&record), nil
}

func toGame(record *Game) *game.Game {
	result := &game.Game{
		ID:            record.ID,
		Code:          record.Code,
		Status:        game.Status(record.Status),
		CurrentRound:  record.CurrentRound,
		NumRounds:     record.NumRounds,
		PromptSeconds: record.PromptSeconds,
		DrawSeconds:   record.DrawSeconds,
		GuessSeconds:  record.GuessSeconds,
	}
	if record.CurrentStepType != nil {
		result.CurrentStepType = game.StepType(*record.CurrentStepType)
	}
	if record.MasterPlayerID != nil {
		result.MasterPlayerID = *record.MasterPlayerID
	}
	return result
}

func (g *Gateway) ActivePlayers(gameID uint) ([]game.Player, error) {
	var records []Player
	if err := g.conn.Where("game_id = ? AND is_active = ?", gameID, true).
		Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	players := make([]game.Player, 0, len(records))
	for _, record := range records {
		player := game.Player{ID: record.ID, Name: record.Name}
		if record.SessionID != nil {
			player.SessionID = *record.SessionID
		}
		players = append(players, player)
	}
	return players, nil
}

// AddPlayer creates an active player, failing when the name is already held
// by an active player of the same game. The partial unique index on
// (game_id, name) among actives backs the check, so two simultaneous joins
// with the same name cannot both commit.
func (g *Gateway) AddPlayer(gameID uint, name, sessionID string) (uint, error) {
	var playerID uint
	err := g.conn.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Player{}).
			Where("game_id = ? AND name = ? AND is_active = ?", gameID, name, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return game.ErrNameTaken
		}
		player := Player{GameID: gameID, Name: name, SessionID: &sessionID, IsActive: true}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		playerID = player.ID
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, game.ErrNameTaken
		}
		return 0, err
	}
	return playerID, nil
}

// FindInactivePlayer looks up a disconnected player by name for rejoin.
func (g *Gateway) FindInactivePlayer(gameID uint, name string) (uint, bool, error) {
	var record Player
	err := g.conn.Where("game_id = ? AND name = ? AND is_active = ?", gameID, name, false).
		Order("id DESC").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return record.ID, true, nil
}

func (g *Gateway) ReactivatePlayer(playerID uint, sessionID string) error {
	return g.conn.Model(&Player{}).Where("id = ?", playerID).
		Updates(map[string]any{"is_active": true, "session_id": sessionID}).Error
}

// DeactivatePlayer flips the player inactive and deactivates the threads they
// originated, atomically.
func (g *Gateway) DeactivatePlayer(playerID uint) error {
	return g.conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Player{}).Where("id = ?", playerID).
			Updates(map[string]any{"is_active": false, "session_id": nil}).Error; err != nil {
			return err
		}
		return tx.Model(&Thread{}).Where("original_player_id = ?", playerID).
			Update("is_active", false).Error
	})
}

func (g *Gateway) PlayerBySession(sessionID string) (*game.PlayerSession, error) {
	var row struct {
		PlayerID uint
		GameID   uint
		Code     string
		Status   string
	}
	err := g.conn.Model(&Player{}).
		Select("players.id AS player_id, players.game_id, games.code, games.status").
		Joins("JOIN games ON games.id = players.game_id").
		Where("players.session_id = ? AND players.is_active = ?", sessionID, true).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.PlayerID == 0 {
		return nil, game.ErrNotFound
	}
	return &game.PlayerSession{
		PlayerID: row.PlayerID,
		GameID:   row.GameID,
		GameCode: row.Code,
		Status:   game.Status(row.Status),
	}, nil
}

// CreateThreads bulk-inserts one thread per player at game start.
func (g *Gateway) CreateThreads(gameID uint, playerIDs []uint) error {
	threads := make([]Thread, 0, len(playerIDs))
	for _, playerID := range playerIDs {
		threads = append(threads, Thread{GameID: gameID, OriginalPlayerID: playerID, IsActive: true})
	}
	return g.conn.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&threads).Error
	})
}

func (g *Gateway) ActiveThreadIDs(gameID uint) ([]uint, error) {
	var ids []uint
	err := g.conn.Model(&Thread{}).
		Where("game_id = ? AND is_active = ?", gameID, true).
		Order("id").Pluck("id", &ids).Error
	return ids, err
}

// PromptThreadID finds the active thread a player prompts for (their own).
func (g *Gateway) PromptThreadID(gameID, playerID uint) (uint, error) {
	var record Thread
	err := g.conn.Where("game_id = ? AND original_player_id = ? AND is_active = ?", gameID, playerID, true).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, game.ErrNotFound
		}
		return 0, err
	}
	return record.ID, nil
}

// SaveStep writes one immutable step. A second write for the same
// (thread, step_number) fails with ErrDuplicateStep, and a write to a
// deactivated thread fails with ErrThreadInactive. The thread row is locked
// for the duration so a concurrent deactivation cannot land between the
// check and the insert.
func (g *Gateway) SaveStep(threadID, playerID uint, stepNumber int, stepType game.StepType, text string, image []byte) error {
	err := g.conn.Transaction(func(tx *gorm.DB) error {
		var thread Thread
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&thread, threadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return game.ErrNotFound
			}
			return err
		}
		if !thread.IsActive {
			return game.ErrThreadInactive
		}
		record := Step{
			ThreadID:   threadID,
			PlayerID:   playerID,
			StepNumber: stepNumber,
			StepType:   string(stepType),
			ImageBytes: image,
		}
		if text != "" {
			record.TextContent = &text
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return game.ErrDuplicateStep
		}
		if errors.Is(err, game.ErrNotFound) || errors.Is(err, game.ErrThreadInactive) {
			return err
		}
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}

func (g *Gateway) CountSteps(gameID uint, stepNumber int, stepType game.StepType) (int, error) {
	var count int64
	err := g.conn.Model(&Step{}).
		Joins("JOIN threads ON threads.id = steps.thread_id").
		Where("threads.game_id = ? AND threads.is_active = ?", gameID, true).
		Where("steps.step_number = ? AND steps.step_type = ?", stepNumber, string(stepType)).
		Count(&count).Error
	return int(count), err
}

func (g *Gateway) StepsForPhase(gameID uint, stepNumber int) ([]game.SubmittedStep, error) {
	var rows []game.SubmittedStep
	err := g.conn.Model(&Step{}).
		Select("steps.thread_id, steps.player_id").
		Joins("JOIN threads ON threads.id = steps.thread_id").
		Where("threads.game_id = ? AND threads.is_active = ? AND steps.step_number = ?", gameID, true, stepNumber).
		Scan(&rows).Error
	return rows, err
}

// HandoffItems fetches the prior step of every active thread for assignment.
func (g *Gateway) HandoffItems(gameID uint, stepNumber int) ([]game.Handoff, error) {
	var rows []struct {
		ThreadID         uint
		PlayerID         uint
		OriginalPlayerID uint
		TextContent      *string
		ImageBytes       []byte
	}
	err := g.conn.Model(&Step{}).
		Select("steps.thread_id, steps.player_id, threads.original_player_id, steps.text_content, steps.image_bytes").
		Joins("JOIN threads ON threads.id = steps.thread_id").
		Where("threads.game_id = ? AND threads.is_active = ? AND steps.step_number = ?", gameID, true, stepNumber).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]game.Handoff, 0, len(rows))
	for _, row := range rows {
		item := game.Handoff{
			ThreadID:     row.ThreadID,
			PrevPlayerID: row.PlayerID,
			OriginID:     row.OriginalPlayerID,
			Image:        row.ImageBytes,
		}
		if row.TextContent != nil {
			item.Text = *row.TextContent
		}
		items = append(items, item)
	}
	return items, nil
}

// SetGameState updates status, step type and round in one write.
func (g *Gateway) SetGameState(gameID uint, status game.Status, stepType game.StepType, round int) error {
	updates := map[string]any{
		"status":        string(status),
		"current_round": round,
	}
	if stepType == "" {
		updates["current_step_type"] = nil
	} else {
		updates["current_step_type"] = string(stepType)
	}
	return g.conn.Model(&Game{}).Where("id = ?", gameID).Updates(updates).Error
}

func (g *Gateway) DeactivateThread(threadID uint) error {
	return g.conn.Model(&Thread{}).Where("id = ?", threadID).
		Update("is_active", false).Error
}

// RevealThreads returns the full ordered history of every active thread.
func (g *Gateway) RevealThreads(gameID uint) ([]game.RevealThread, error) {
	var rows []struct {
		ThreadID         uint
		OriginalPlayerID uint
		OriginName       string
		StepNumber       int
		StepType         string
		TextContent      *string
		ImageBytes       []byte
		StepPlayerID     uint
		StepPlayerName   string
		StepPlayerActive bool
	}
	err := g.conn.Model(&Thread{}).
		Select(`threads.id AS thread_id, threads.original_player_id, op.name AS origin_name,
			steps.step_number, steps.step_type, steps.text_content, steps.image_bytes,
			steps.player_id AS step_player_id, sp.name AS step_player_name, sp.is_active AS step_player_active`).
		Joins("JOIN steps ON steps.thread_id = threads.id").
		Joins("JOIN players op ON op.id = threads.original_player_id").
		Joins("JOIN players sp ON sp.id = steps.player_id").
		Where("threads.game_id = ? AND threads.is_active = ?", gameID, true).
		Order("threads.id, steps.step_number").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	var threads []game.RevealThread
	index := make(map[uint]int)
	for _, row := range rows {
		i, ok := index[row.ThreadID]
		if !ok {
			i = len(threads)
			index[row.ThreadID] = i
			threads = append(threads, game.RevealThread{
				ThreadID:         row.ThreadID,
				OriginPlayerID:   row.OriginalPlayerID,
				OriginPlayerName: row.OriginName,
			})
		}
		step := game.RevealStep{
			StepNumber:   row.StepNumber,
			StepType:     game.StepType(row.StepType),
			Image:        row.ImageBytes,
			PlayerID:     row.StepPlayerID,
			PlayerName:   row.StepPlayerName,
			PlayerActive: row.StepPlayerActive,
		}
		if row.TextContent != nil {
			step.Text = *row.TextContent
		}
		threads[i].Steps = append(threads[i].Steps, step)
	}
	return threads, nil
}

func (g *Gateway) RandomPrompt() (string, error) {
	var record RandomPrompt
	err := g.conn.Order("RANDOM()").First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", game.ErrNotFound
		}
		return "", err
	}
	return record.Text, nil
}

// SessionID resolves a player's current transport session, empty when the
// player is disconnected or inactive.
func (g *Gateway) SessionID(playerID uint) (string, error) {
	var record Player
	err := g.conn.Where("id = ? AND is_active = ?", playerID, true).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	if record.SessionID == nil {
		return "", nil
	}
	return *record.SessionID, nil
}

func (g *Gateway) WaitingGames() ([]game.WaitingGame, error) {
	var rows []struct {
		GameID      uint
		Code        string
		PlayerCount int
	}
	err := g.conn.Model(&Game{}).
		Select("games.id AS game_id, games.code, COUNT(players.id) AS player_count").
		Joins("LEFT JOIN players ON players.game_id = games.id AND players.is_active = ?", true).
		Where("games.status = ?", string(game.StatusWaiting)).
		Group("games.id, games.code, games.created_at").
		Order("games.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	list := make([]game.WaitingGame, 0, len(rows))
	for _, row := range rows {
		list = append(list, game.WaitingGame{GameID: row.GameID, Code: row.Code, PlayerCount: row.PlayerCount})
	}
	return list, nil
}

// RecordEvent appends one audit event. Best effort: callers log failures and
// keep going.
func (g *Gateway) RecordEvent(gameID, playerID uint, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := Event{
		GameID:  gameID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}
	if playerID != 0 {
		event.PlayerID = &playerID
	}
	return g.conn.Create(&event).Error
}
