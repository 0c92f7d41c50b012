package prompt

import (
	"strings"

	"rag-chat-be/internal/entity"
	"rag-chat-be/pkg/llm"
)

const SystemInstruction = "You are an AI assistant. Use the provided context to generate accurate answers. " +
	"If the context is insufficient, state that you are unsure rather than guessing."

const noContextNotice = "(No context was retrieved for this query. Answer from general knowledge and say so if you are unsure.)"

const noHistoryNotice = "(This is the start of the conversation.)"

// Assemble renders passages and history into the two prompt sections.
// It performs no I/O and is deterministic in its inputs.
func Assemble(passages []entity.Passage, history []entity.Turn, userMessage string) (context string, historyText string) {
	return RenderContext(passages), RenderHistory(history)
}

// RenderContext joins passage contents in retrieval order with a blank line.
func RenderContext(passages []entity.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, "\n\n")
}

// RenderHistory renders each turn as a "User:"/"Bot:" line pair, oldest first.
func RenderHistory(history []entity.Turn) string {
	parts := make([]string, len(history))
	for i, t := range history {
		parts[i] = "User: " + t.UserMessage + "\nBot: " + t.Response
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt always emits every section so the model can tell an empty
// context from a missing one.
func BuildUserPrompt(context, historyText, userMessage string) string {
	if context == "" {
		context = noContextNotice
	}
	if historyText == "" {
		historyText = noHistoryNotice
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nConversation History:\n")
	b.WriteString(historyText)
	b.WriteString("\n\nUser Query:\n")
	b.WriteString(userMessage)
	b.WriteString("\n\nResponse:")
	return b.String()
}

func BuildCompletionMessages(context, historyText, userMessage string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: SystemInstruction},
		{Role: "user", Content: BuildUserPrompt(context, historyText, userMessage)},
	}
}
