package service

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/rag/history"
	"rag-chat-be/pkg/rag/pipeline"

	"github.com/google/uuid"
)

// TurnProcessor runs turns through the pipeline.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req pipeline.TurnRequest) (*pipeline.TurnResult, error)
	ProcessTurnStream(ctx context.Context, req pipeline.TurnRequest) iter.Seq2[pipeline.StreamChunk, error]
}

type IChatService interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	ListSessions(ctx context.Context) ([]dto.SessionResponse, error)
	RenameSession(ctx context.Context, sessionID string, req *dto.RenameSessionRequest) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetHistory(ctx context.Context, sessionID string) (*dto.HistoryResponse, error)
	SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	StreamMessage(ctx context.Context, sessionID, message string) iter.Seq2[pipeline.StreamChunk, error]
	Health(ctx context.Context) (*dto.HealthResponse, error)
}

// PassageCounter reports the size of a passage index the service can reach.
type PassageCounter interface {
	CountPassages(ctx context.Context) (int64, error)
}

type ChatServiceOption func(*chatService)

func WithPassageIndex(index PassageCounter) ChatServiceOption {
	return func(cs *chatService) {
		cs.index = index
	}
}

type chatService struct {
	store     history.Store
	turns     TurnProcessor
	publisher IPublisherService
	index     PassageCounter
	logger    logger.ILogger
}

func NewChatService(store history.Store, turns TurnProcessor, publisher IPublisherService, log logger.ILogger, opts ...ChatServiceOption) IChatService {
	cs := &chatService{
		store:     store,
		turns:     turns,
		publisher: publisher,
		logger:    log,
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

func (cs *chatService) CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	name := req.Name
	if name == "" {
		count, err := cs.store.CountSessions(ctx)
		if err != nil {
			return nil, err
		}
		name = fmt.Sprintf("Chat %d", count+1)
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC()
	if err := cs.store.CreateSession(ctx, id, history.SessionMetadata{Name: name, CreatedAt: createdAt}); err != nil {
		return nil, err
	}

	if cs.publisher != nil {
		if err := cs.publisher.Publish(ctx, events.NewSessionCreated(id, name, createdAt)); err != nil {
			cs.logger.Warn("CHAT", "Failed to publish session event", map[string]interface{}{"error": err.Error()})
		}
	}

	return &dto.SessionResponse{Id: id, Name: name, CreatedAt: createdAt}, nil
}

// ListSessions returns sessions newest first.
func (cs *chatService) ListSessions(ctx context.Context) ([]dto.SessionResponse, error) {
	sessions, err := cs.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]dto.SessionResponse, 0, len(sessions))
	for id, meta := range sessions {
		res = append(res, dto.SessionResponse{Id: id, Name: meta.Name, TurnCount: meta.TurnCount, CreatedAt: meta.CreatedAt})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].Id < res[j].Id
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (cs *chatService) RenameSession(ctx context.Context, sessionID string, req *dto.RenameSessionRequest) (*dto.SessionResponse, error) {
	if err := cs.store.RenameSession(ctx, sessionID, req.Name); err != nil {
		return nil, err
	}

	session, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns, err := cs.store.CountTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := toSessionResponse(session)
	res.TurnCount = turns
	return res, nil
}

func (cs *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := cs.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	cs.logger.Info("CHAT", "Session deleted", map[string]interface{}{"session_id": sessionID})
	return nil
}

func (cs *chatService) GetHistory(ctx context.Context, sessionID string) (*dto.HistoryResponse, error) {
	session, err := cs.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turns, err := cs.store.GetAllTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := &dto.HistoryResponse{
		Session: *toSessionResponse(session),
		Turns:   make([]dto.TurnResponse, len(turns)),
	}
	res.Session.TurnCount = int64(len(turns))
	for i, t := range turns {
		res.Turns[i] = dto.TurnResponse{
			Id:                t.Id,
			Sequence:          t.Sequence,
			UserMessage:       t.UserMessage,
			Response:          t.Response,
			ReferencePassages: ToPassageDTOs(t.ReferencePassages),
			CreatedAt:         t.CreatedAt,
		}
	}
	return res, nil
}

// SendMessage returns the reply even when it could not be saved, together
// with the persistence error.
func (cs *chatService) SendMessage(ctx context.Context, req *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	result, err := cs.turns.ProcessTurn(ctx, pipeline.TurnRequest{
		SessionID:   req.SessionId,
		UserMessage: req.Message,
	})
	if result == nil {
		return nil, err
	}

	res := ToSendMessageResponse(result)
	res.Saved = err == nil
	return res, err
}

func (cs *chatService) StreamMessage(ctx context.Context, sessionID, message string) iter.Seq2[pipeline.StreamChunk, error] {
	return cs.turns.ProcessTurnStream(ctx, pipeline.TurnRequest{
		SessionID:   sessionID,
		UserMessage: message,
	})
}

// Health never fails; an unreachable index marks the service degraded.
func (cs *chatService) Health(ctx context.Context) (*dto.HealthResponse, error) {
	res := &dto.HealthResponse{Status: "healthy"}
	if cs.index == nil {
		return res, nil
	}

	count, err := cs.index.CountPassages(ctx)
	if err != nil {
		cs.logger.Warn("CHAT", "Passage index unreachable", map[string]interface{}{"error": err.Error()})
		res.Status = "degraded"
		return res, nil
	}
	res.IndexedPassages = &count
	return res, nil
}

func ToSendMessageResponse(result *pipeline.TurnResult) *dto.SendMessageResponse {
	return &dto.SendMessageResponse{
		SessionId:         result.SessionID,
		Response:          result.Response,
		ReferencePassages: ToPassageDTOs(result.ReferencePassages),
		Partial:           result.Partial,
		Saved:             true,
	}
}

func ToPassageDTOs(passages []entity.Passage) []dto.PassageDTO {
	out := make([]dto.PassageDTO, len(passages))
	for i, p := range passages {
		out[i] = dto.PassageDTO{Content: p.Content, SourceMetadata: p.SourceMetadata}
	}
	return out
}

func toSessionResponse(s *entity.Session) *dto.SessionResponse {
	return &dto.SessionResponse{Id: s.Id, Name: s.DisplayName, CreatedAt: s.CreatedAt}
}
