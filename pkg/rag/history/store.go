package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/repository/specification"
	"rag-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	// ErrMalformedTurn aliases the entity error so callers only import this package.
	ErrMalformedTurn = entity.ErrMalformedTurn
)

type SessionMetadata struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	// TurnCount is filled by ListSessions and ignored by CreateSession.
	TurnCount int64 `json:"turn_count"`
}

// Store is the durable conversation history.
type Store interface {
	// GetRecentTurns returns the last limit turns of a session, oldest first.
	GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error)
	// GetAllTurns returns the whole session, oldest first.
	GetAllTurns(ctx context.Context, sessionID string) ([]entity.Turn, error)
	// AppendTurn commits one turn atomically at the end of the session.
	AppendTurn(ctx context.Context, sessionID, userMessage, response string, passages []entity.Passage) (*entity.Turn, error)

	CreateSession(ctx context.Context, sessionID string, meta SessionMetadata) error
	GetSession(ctx context.Context, sessionID string) (*entity.Session, error)
	CountSessions(ctx context.Context) (int64, error)
	CountTurns(ctx context.Context, sessionID string) (int64, error)
	ListSessions(ctx context.Context) (map[string]SessionMetadata, error)
	RenameSession(ctx context.Context, sessionID, name string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type Option func(*GormStore)

// WithClock replaces time.Now for turn and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GormStore) {
		s.now = now
	}
}

type GormStore struct {
	uowFactory unitofwork.RepositoryFactory
	now        func() time.Time
}

func NewGormStore(uowFactory unitofwork.RepositoryFactory, opts ...Option) *GormStore {
	s := &GormStore{
		uowFactory: uowFactory,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error) {
	if limit <= 0 {
		return []entity.Turn{}, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ChatTurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.NewestTurnsFirst{},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}

	out := derefTurns(turns)
	slices.Reverse(out)
	return out, nil
}

func (s *GormStore) GetAllTurns(ctx context.Context, sessionID string) ([]entity.Turn, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ChatTurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OldestTurnsFirst{},
	)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	return derefTurns(turns), nil
}

func (s *GormStore) AppendTurn(ctx context.Context, sessionID, userMessage, response string, passages []entity.Passage) (*entity.Turn, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	seq, err := uow.ChatTurnRepository().NextSequence(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}

	turn := &entity.Turn{
		Id:                uuid.NewString(),
		SessionId:         sessionID,
		Sequence:          seq,
		UserMessage:       userMessage,
		Response:          response,
		ReferencePassages: entity.ClonePassages(passages),
		CreatedAt:         s.now().UTC(),
	}
	if err := uow.ChatTurnRepository().Create(ctx, turn); err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}
	return turn, nil
}

func (s *GormStore) CreateSession(ctx context.Context, sessionID string, meta SessionMetadata) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	existing, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrSessionExists
	}

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if err := uow.ChatSessionRepository().Create(ctx, &entity.Session{
		Id:          sessionID,
		DisplayName: meta.Name,
		CreatedAt:   createdAt.UTC(),
	}); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return uow.Commit()
}

func (s *GormStore) GetSession(ctx context.Context, sessionID string) (*entity.Session, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *GormStore) CountSessions(ctx context.Context) (int64, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().Count(ctx)
}

func (s *GormStore) CountTurns(ctx context.Context, sessionID string) (int64, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ChatTurnRepository().Count(ctx, specification.BySessionID{SessionID: sessionID})
}

func (s *GormStore) ListSessions(ctx context.Context) (map[string]SessionMetadata, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]SessionMetadata, len(sessions))
	for _, sess := range sessions {
		turns, err := uow.ChatTurnRepository().Count(ctx, specification.BySessionID{SessionID: sess.Id})
		if err != nil {
			return nil, err
		}
		out[sess.Id] = SessionMetadata{Name: sess.DisplayName, CreatedAt: sess.CreatedAt, TurnCount: turns}
	}
	return out, nil
}

// RenameSession only touches the display name; turns are never rewritten.
func (s *GormStore) RenameSession(ctx context.Context, sessionID, name string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.ChatSessionRepository()

	session, err := repo.FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	session.DisplayName = name
	return repo.Update(ctx, session)
}

func (s *GormStore) DeleteSession(ctx context.Context, sessionID string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}

	if err := uow.ChatTurnRepository().DeleteBySessionId(ctx, sessionID); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionID); err != nil {
		return err
	}
	return uow.Commit()
}

func derefTurns(turns []*entity.Turn) []entity.Turn {
	out := make([]entity.Turn, len(turns))
	for i, t := range turns {
		out[i] = *t
	}
	return out
}
