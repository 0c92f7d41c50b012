package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/events"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/lock"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/history"
	"rag-chat-be/pkg/rag/prompt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultHistoryDepth   = 5
	DefaultPersistTimeout = 10 * time.Second
)

var ErrEmptyMessage = errors.New("user message is empty")

// Store is the part of the history store a turn needs.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*entity.Session, error)
	CountSessions(ctx context.Context) (int64, error)
	CreateSession(ctx context.Context, sessionID string, meta history.SessionMetadata) error
	GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]entity.Turn, error)
	AppendTurn(ctx context.Context, sessionID, userMessage, response string, passages []entity.Passage) (*entity.Turn, error)
}

type Gate interface {
	Decide(ctx context.Context, userMessage string, history []entity.Turn) bool
}

// Retriever never fails; an unusable index yields no passages.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []entity.Passage
}

type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error)
	Stream(ctx context.Context, messages []llm.Message, opts ...llm.Option) iter.Seq2[string, error]
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Config struct {
	HistoryDepth int
	// PersistPartialOnCancel commits the text already streamed when a
	// streamed turn is abandoned or fails midway.
	PersistPartialOnCancel bool
	PersistTimeout         time.Duration
}

type TurnRequest struct {
	SessionID   string
	UserMessage string
}

type TurnResult struct {
	SessionID         string
	Response          string
	ReferencePassages []entity.Passage
	// Partial marks a response cut short and committed as-is.
	Partial bool
}

// StreamChunk carries one fragment of a streamed turn. The last chunk has
// Final set and no fragment.
type StreamChunk struct {
	Fragment    string
	Accumulated string
	Final       *TurnResult
}

type Option func(*Orchestrator)

func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) {
		o.locker = l
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator runs turns through Start, DecideRetrieval, Retrieve, Generate
// and Save. Turns of one session never overlap.
type Orchestrator struct {
	store     Store
	gate      Gate
	retriever Retriever
	completer Completer
	locker    lock.Locker
	publisher EventPublisher
	cfg       Config
	logger    logger.ILogger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewOrchestrator(
	store Store,
	gate Gate,
	retriever Retriever,
	completer Completer,
	cfg Config,
	log logger.ILogger,
	opts ...Option,
) *Orchestrator {
	if cfg.HistoryDepth < 0 {
		cfg.HistoryDepth = 0
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}

	o := &Orchestrator{
		store:     store,
		gate:      gate,
		retriever: retriever,
		completer: completer,
		locker:    lock.NewMemoryLocker(),
		cfg:       cfg,
		logger:    log,
		tracer:    otel.Tracer("rag-chat-be/pkg/rag/pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn runs one turn and blocks for the whole response. When the
// turn cannot be saved both the result and a persistence error are returned.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	ctx, span := o.startSpan(ctx, "rag.turn")
	defer span.End()

	st, unlock, err := o.start(ctx, span, req)
	if err != nil {
		o.fail(span, st, err)
		return nil, err
	}
	defer unlock()

	if err := o.prepare(ctx, span, st); err != nil {
		o.fail(span, st, err)
		return nil, err
	}

	messages := prompt.BuildCompletionMessages(st.AssembledContext, st.AssembledHistory, st.UserMessage)
	response, err := o.completer.Complete(ctx, messages)
	if err != nil {
		o.fail(span, st, err)
		return nil, err
	}

	st.Response = response
	if err := o.advance(span, st, EventResponseReady); err != nil {
		o.fail(span, st, err)
		return nil, err
	}
	return o.save(ctx, span, st, false)
}

// ProcessTurnStream runs one turn and yields the response as it is produced.
// After the last fragment a chunk with Final set is yielded. A failure is
// yielded as an error and ends the sequence.
//
// Stopping the range early abandons the turn. It is committed with the text
// already yielded only when PersistPartialOnCancel is set.
func (o *Orchestrator) ProcessTurnStream(ctx context.Context, req TurnRequest) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		ctx, span := o.startSpan(ctx, "rag.turn.stream")
		defer span.End()

		st, unlock, err := o.start(ctx, span, req)
		if err != nil {
			o.fail(span, st, err)
			yield(StreamChunk{}, err)
			return
		}
		defer unlock()

		if err := o.prepare(ctx, span, st); err != nil {
			o.fail(span, st, err)
			yield(StreamChunk{}, err)
			return
		}

		messages := prompt.BuildCompletionMessages(st.AssembledContext, st.AssembledHistory, st.UserMessage)

		var acc strings.Builder
		for fragment, err := range o.completer.Stream(ctx, messages) {
			if err != nil {
				o.streamFailed(ctx, span, st, acc.String(), err, yield)
				return
			}

			acc.WriteString(fragment)
			if !yield(StreamChunk{Fragment: fragment, Accumulated: acc.String()}, nil) {
				o.streamAbandoned(ctx, span, st, acc.String())
				return
			}
		}

		st.Response = acc.String()
		if err := o.advance(span, st, EventResponseReady); err != nil {
			o.fail(span, st, err)
			yield(StreamChunk{}, err)
			return
		}

		result, err := o.save(ctx, span, st, false)
		if !yield(StreamChunk{Accumulated: result.Response, Final: result}, nil) {
			return
		}
		if err != nil {
			yield(StreamChunk{}, err)
		}
	}
}

func (o *Orchestrator) streamFailed(ctx context.Context, span trace.Span, st *TurnState, partial string, cause error, yield func(StreamChunk, error) bool) {
	if !o.cfg.PersistPartialOnCancel || partial == "" {
		o.fail(span, st, cause)
		yield(StreamChunk{}, cause)
		return
	}

	o.logger.Warn("PIPELINE", "Stream interrupted, committing partial response", map[string]interface{}{
		"session_id": st.SessionID,
		"chars":      len(partial),
		"error":      cause.Error(),
	})

	st.Response = partial
	if err := o.advance(span, st, EventResponseReady); err != nil {
		o.fail(span, st, err)
		yield(StreamChunk{}, err)
		return
	}

	result, err := o.save(ctx, span, st, true)
	if !yield(StreamChunk{Accumulated: result.Response, Final: result}, nil) {
		return
	}
	if err != nil {
		yield(StreamChunk{}, err)
		return
	}
	yield(StreamChunk{}, cause)
}

func (o *Orchestrator) streamAbandoned(ctx context.Context, span trace.Span, st *TurnState, partial string) {
	if !o.cfg.PersistPartialOnCancel || partial == "" {
		o.logger.Info("PIPELINE", "Stream abandoned by consumer, nothing committed", map[string]interface{}{
			"session_id": st.SessionID,
		})
		o.fail(span, st, context.Canceled)
		return
	}

	st.Response = partial
	if err := o.advance(span, st, EventResponseReady); err != nil {
		o.fail(span, st, err)
		return
	}
	// Nobody is listening any more; a save failure is only logged by save.
	_, _ = o.save(ctx, span, st, true)
}

// start resolves the session, takes the session lock and loads history.
// On success the caller owns unlock.
func (o *Orchestrator) start(ctx context.Context, span trace.Span, req TurnRequest) (*TurnState, func(), error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	st := &TurnState{
		SessionID:   sessionID,
		UserMessage: req.UserMessage,
		State:       StateStart,
	}
	span.SetAttributes(attribute.String("session.id", sessionID))

	if strings.TrimSpace(req.UserMessage) == "" {
		return st, nil, ErrEmptyMessage
	}

	unlock, err := o.locker.Lock(ctx, sessionID)
	if err != nil {
		return st, nil, fmt.Errorf("acquire session lock: %w", err)
	}

	if err := o.ensureSession(ctx, sessionID); err != nil {
		unlock()
		return st, nil, err
	}

	turns, err := o.store.GetRecentTurns(ctx, sessionID, o.cfg.HistoryDepth)
	if err != nil {
		unlock()
		return st, nil, rag.NewError(rag.KindPersistence, "load history", err)
	}
	st.History = turns

	if err := o.advance(span, st, EventSessionReady); err != nil {
		unlock()
		return st, nil, err
	}
	return st, unlock, nil
}

func (o *Orchestrator) ensureSession(ctx context.Context, sessionID string) error {
	_, err := o.store.GetSession(ctx, sessionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, history.ErrSessionNotFound) {
		return rag.NewError(rag.KindPersistence, "get session", err)
	}

	count, err := o.store.CountSessions(ctx)
	if err != nil {
		return rag.NewError(rag.KindPersistence, "count sessions", err)
	}

	name := fmt.Sprintf("Chat %d", count+1)
	createdAt := o.now()
	err = o.store.CreateSession(ctx, sessionID, history.SessionMetadata{Name: name, CreatedAt: createdAt})
	if errors.Is(err, history.ErrSessionExists) {
		return nil
	}
	if err != nil {
		return rag.NewError(rag.KindPersistence, "create session", err)
	}

	o.logger.Info("PIPELINE", "Session created", map[string]interface{}{
		"session_id": sessionID,
		"name":       name,
	})
	o.publish(ctx, events.NewSessionCreated(sessionID, name, createdAt))
	return nil
}

// prepare runs DecideRetrieval, the optional Retrieve and assembles the prompt.
func (o *Orchestrator) prepare(ctx context.Context, span trace.Span, st *TurnState) error {
	st.RequiresRetrieval = o.gate.Decide(ctx, st.UserMessage, st.History)
	span.SetAttributes(attribute.Bool("turn.requires_retrieval", st.RequiresRetrieval))

	st.RetrievedPassages = []entity.Passage{}
	if st.RequiresRetrieval {
		if err := o.advance(span, st, EventRetrievalRequired); err != nil {
			return err
		}
		st.RetrievedPassages = o.retriever.Retrieve(ctx, st.UserMessage)
		span.SetAttributes(attribute.Int("turn.passages", len(st.RetrievedPassages)))
		if err := o.advance(span, st, EventPassagesReady); err != nil {
			return err
		}
	} else if err := o.advance(span, st, EventRetrievalSkipped); err != nil {
		return err
	}

	st.AssembledContext, st.AssembledHistory = prompt.Assemble(st.RetrievedPassages, st.History, st.UserMessage)
	return nil
}

// save commits the turn. It is detached from ctx so a turn that reached Save
// is not lost to a caller that has gone away.
func (o *Orchestrator) save(ctx context.Context, span trace.Span, st *TurnState, partial bool) (*TurnResult, error) {
	result := &TurnResult{
		SessionID:         st.SessionID,
		Response:          st.Response,
		ReferencePassages: entity.ClonePassages(st.RetrievedPassages),
		Partial:           partial,
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()

	turn, err := o.store.AppendTurn(saveCtx, st.SessionID, st.UserMessage, st.Response, st.RetrievedPassages)
	if err != nil {
		perr := rag.NewError(rag.KindPersistence, "append turn", err)
		o.fail(span, st, perr)
		return result, perr
	}

	if err := o.advance(span, st, EventCommitted); err != nil {
		o.fail(span, st, err)
		return result, err
	}

	o.logger.Info("PIPELINE", "Turn committed", map[string]interface{}{
		"session_id": st.SessionID,
		"turn_id":    turn.Id,
		"sequence":   turn.Sequence,
		"retrieval":  st.RequiresRetrieval,
		"passages":   len(st.RetrievedPassages),
		"partial":    partial,
	})
	o.publish(saveCtx, events.NewTurnCommitted(st.SessionID, turn.Id, turn.Sequence, len(turn.ReferencePassages), partial, turn.CreatedAt))
	return result, nil
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("PIPELINE", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name)
}

func (o *Orchestrator) advance(span trace.Span, st *TurnState, event Event) error {
	if err := st.apply(event); err != nil {
		return err
	}
	span.AddEvent("state."+st.State.String(), trace.WithAttributes(attribute.String("event", event.String())))
	return nil
}

func (o *Orchestrator) fail(span trace.Span, st *TurnState, err error) {
	from := st.State
	if !st.State.Terminal() {
		st.State = StateFailed
		span.AddEvent("state."+StateFailed.String(), trace.WithAttributes(attribute.String("from", from.String())))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, context.Canceled) {
		return
	}
	o.logger.Error("PIPELINE", "Turn failed", map[string]interface{}{
		"session_id": st.SessionID,
		"state":      from.String(),
		"error":      err.Error(),
	})
}
