package model

import (
	"time"
)

type ChatSession struct {
	Id          string    `gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
