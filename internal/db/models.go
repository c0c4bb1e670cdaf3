package db

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	ID              uint    `gorm:"primaryKey"`
	Code            string  `gorm:"size:12;uniqueIndex;not null"`
	Status          string  `gorm:"size:32;not null"`
	CurrentRound    int     `gorm:"not null;default:0"`
	CurrentStepType *string `gorm:"size:16"`
	NumRounds       int     `gorm:"not null;default:2"`
	PromptSeconds   int     `gorm:"not null;default:60"`
	DrawSeconds     int     `gorm:"not null;default:300"`
	GuessSeconds    int     `gorm:"not null;default:120"`
	MasterPlayerID  *uint   `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Players         []Player
	Threads         []Thread
	Events          []Event
}

type Player struct {
	ID        uint    `gorm:"primaryKey"`
	GameID    uint    `gorm:"index;not null;uniqueIndex:idx_players_game_name_active"`
	Name      string  `gorm:"size:64;not null;uniqueIndex:idx_players_game_name_active,where:is_active"`
	SessionID *string `gorm:"size:64;index"`
	IsActive  bool    `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Threads   []Thread `gorm:"foreignKey:OriginalPlayerID"`
	Steps     []Step
}

type Thread struct {
	ID               uint `gorm:"primaryKey"`
	GameID           uint `gorm:"index;not null"`
	OriginalPlayerID uint `gorm:"index;not null"`
	IsActive         bool `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Steps            []Step
}

type Step struct {
	ID          uint    `gorm:"primaryKey"`
	ThreadID    uint    `gorm:"not null;uniqueIndex:idx_steps_thread_number"`
	PlayerID    uint    `gorm:"index;not null"`
	StepNumber  int     `gorm:"not null;uniqueIndex:idx_steps_thread_number"`
	StepType    string  `gorm:"size:16;not null"`
	TextContent *string `gorm:"size:280"`
	ImageBytes  []byte  `gorm:"type:bytea"`
	CreatedAt   time.Time
}

type RandomPrompt struct {
	ID        uint   `gorm:"primaryKey"`
	Category  string `gorm:"size:32;not null;default:''"`
	Text      string `gorm:"size:280;not null;uniqueIndex"`
	CreatedAt time.Time
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	PlayerID  *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
}
