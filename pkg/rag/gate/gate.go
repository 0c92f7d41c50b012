package gate

import (
	"context"
	"strings"
	"time"

	"rag-chat-be/internal/entity"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/llm"
	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/prompt"
)

const DefaultTimeout = 15 * time.Second

const classificationMaxTokens = 8

// Completer is the blocking side of the completion client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error)
}

// Gate decides whether a message needs passages from the index before
// answering.
type Gate struct {
	completer Completer
	timeout   time.Duration
	logger    logger.ILogger
}

func NewGate(completer Completer, timeout time.Duration, log logger.ILogger) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{
		completer: completer,
		timeout:   timeout,
		logger:    log,
	}
}

// Decide never fails. A classifier that cannot be reached means retrieval.
func (g *Gate) Decide(ctx context.Context, userMessage string, history []entity.Turn) bool {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []llm.Message{
		{Role: "system", Content: classificationInstruction},
		{Role: "user", Content: buildClassificationPrompt(userMessage, history)},
	}

	raw, err := g.completer.Complete(ctx, messages,
		llm.WithTemperature(0.0),
		llm.WithMaxTokens(classificationMaxTokens),
	)
	if err != nil {
		cerr := rag.NewError(rag.KindClassification, "decide retrieval", err)
		g.logger.Warn("GATE", "Classification failed, defaulting to retrieval", map[string]interface{}{
			"error": cerr.Error(),
		})
		return true
	}

	decision := Normalize(raw)
	g.logger.Debug("GATE", "Retrieval decision", map[string]interface{}{
		"raw":      raw,
		"retrieve": decision,
	})
	return decision
}

// Normalize reads the classifier's answer. Only an answer mentioning "true"
// asks for retrieval; anything unrecognized does not.
func Normalize(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "true")
}

const classificationInstruction = `You decide whether answering a user's message requires looking up documents from a knowledge base.
Answer with exactly one word: true or false.

Rules:
- Greetings, thanks, small talk or questions about the conversation itself: false.
- Questions asking for facts, definitions, procedures or specific details: true.
- Follow-ups that only make sense with the recent conversation: judge them together with that conversation.
- If you are unsure: true.`

func buildClassificationPrompt(userMessage string, history []entity.Turn) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		b.WriteString(prompt.RenderHistory(history))
		b.WriteString("\n\n")
	}
	b.WriteString("Message:\n")
	b.WriteString(userMessage)
	b.WriteString("\n\nDoes this message require document retrieval? (true/false)")
	return b.String()
}
