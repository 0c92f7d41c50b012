package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatTurn rows are append-only. (session_id, sequence) is unique so two
// writers racing on the same session cannot both claim a position.
type ChatTurn struct {
	Id                string         `gorm:"type:varchar(36);primaryKey"`
	SessionId         string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_chat_turns_session_sequence,priority:1;index:idx_chat_turns_session_created,priority:1"`
	Sequence          int64          `gorm:"not null;uniqueIndex:idx_chat_turns_session_sequence,priority:2"`
	UserMessage       string         `gorm:"type:text;not null"`
	Response          string         `gorm:"type:text;not null"`
	ReferencePassages datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"not null;index:idx_chat_turns_session_created,priority:2"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}
