package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.Session {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.Session{
		Id:          s.Id,
		DisplayName: s.DisplayName,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.Session) *model.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:          s.Id,
		DisplayName: s.DisplayName,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

// Turn Mappers

// storedPassage is the on-disk schema of one element of reference_passages.
type storedPassage struct {
	Content        *string        `json:"content"`
	SourceMetadata map[string]any `json:"source_metadata"`
}

func (m *ChatMapper) ChatTurnToEntity(t *model.ChatTurn) (*entity.Turn, error) {
	if t == nil {
		return nil, nil
	}

	passages, err := DecodePassages(t.ReferencePassages)
	if err != nil {
		return nil, fmt.Errorf("%w: turn %s: %v", entity.ErrMalformedTurn, t.Id, err)
	}

	return &entity.Turn{
		Id:                t.Id,
		SessionId:         t.SessionId,
		Sequence:          t.Sequence,
		UserMessage:       t.UserMessage,
		Response:          t.Response,
		ReferencePassages: passages,
		CreatedAt:         t.CreatedAt,
	}, nil
}

func (m *ChatMapper) ChatTurnToModel(t *entity.Turn) (*model.ChatTurn, error) {
	if t == nil {
		return nil, nil
	}

	raw, err := EncodePassages(t.ReferencePassages)
	if err != nil {
		return nil, err
	}

	return &model.ChatTurn{
		Id:                t.Id,
		SessionId:         t.SessionId,
		Sequence:          t.Sequence,
		UserMessage:       t.UserMessage,
		Response:          t.Response,
		ReferencePassages: raw,
		CreatedAt:         t.CreatedAt,
	}, nil
}

func (m *ChatMapper) ChatTurnsToEntities(turns []*model.ChatTurn) ([]*entity.Turn, error) {
	entities := make([]*entity.Turn, len(turns))
	for i, t := range turns {
		e, err := m.ChatTurnToEntity(t)
		if err != nil {
			return nil, err
		}
		entities[i] = e
	}
	return entities, nil
}

// EncodePassages renders passages as one JSON array. A nil slice is stored as [].
func EncodePassages(passages []entity.Passage) (datatypes.JSON, error) {
	out := make([]storedPassage, len(passages))
	for i, p := range passages {
		content := p.Content
		out[i] = storedPassage{Content: &content, SourceMetadata: p.SourceMetadata}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode passages: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodePassages accepts only a JSON array of objects with a string
// "content" and an optional object "source_metadata". Metadata numbers
// follow DecodeMetadata.
func DecodePassages(raw []byte) ([]entity.Passage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("reference passages are not a JSON array")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var stored []storedPassage
	if err := dec.Decode(&stored); err != nil {
		return nil, err
	}

	passages := make([]entity.Passage, len(stored))
	for i, sp := range stored {
		if sp.Content == nil {
			return nil, fmt.Errorf("passage %d has no content", i)
		}
		passages[i] = entity.Passage{Content: *sp.Content, SourceMetadata: NormalizeMetadata(sp.SourceMetadata)}
	}
	return passages, nil
}
