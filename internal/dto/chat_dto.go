package dto

import (
	"time"
)

type CreateSessionRequest struct {
	Name string `json:"name" validate:"max=120"`
}

type RenameSessionRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type SessionResponse struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	TurnCount int64     `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
}

type HealthResponse struct {
	Status string `json:"status"` // "healthy" | "degraded"
	// IndexedPassages is only reported for a local passage index.
	IndexedPassages *int64 `json:"indexed_passages,omitempty"`
}

type PassageDTO struct {
	Content        string         `json:"content"`
	SourceMetadata map[string]any `json:"source_metadata"`
}

type TurnResponse struct {
	Id                string       `json:"id"`
	Sequence          int64        `json:"sequence"`
	UserMessage       string       `json:"user_message"`
	Response          string       `json:"response"`
	ReferencePassages []PassageDTO `json:"reference_passages"`
	CreatedAt         time.Time    `json:"created_at"`
}

type HistoryResponse struct {
	Session SessionResponse `json:"session"`
	Turns   []TurnResponse  `json:"turns"`
}

type SendMessageRequest struct {
	SessionId string `json:"session_id" validate:"omitempty,max=64"`
	Message   string `json:"message" validate:"required,max=8000"`
}

type SendMessageResponse struct {
	SessionId         string       `json:"session_id"`
	Response          string       `json:"response"`
	ReferencePassages []PassageDTO `json:"reference_passages"`
	Partial           bool         `json:"partial,omitempty"`
	Saved             bool         `json:"saved"`
}

// StreamFrame is one server-sent event or websocket frame of a streamed turn.
type StreamFrame struct {
	Type     string               `json:"type"` // "chunk" | "final" | "error" | "event"
	Fragment string               `json:"fragment,omitempty"`
	Result   *SendMessageResponse `json:"result,omitempty"`
	Error    string               `json:"error,omitempty"`
	Event    any                  `json:"event,omitempty"`
}

const (
	FrameChunk = "chunk"
	FrameFinal = "final"
	FrameError = "error"
	FrameEvent = "event"
)

// SocketMessage is what a websocket client sends to start a turn.
type SocketMessage struct {
	Message string `json:"message" validate:"required,max=8000"`
}
