package prompt

import (
	"testing"

	"rag-chat-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	passages := []entity.Passage{
		{Content: "Negligence is a failure to take reasonable care."},
		{Content: "A duty of care must be owed."},
		{Content: "Damage must not be too remote."},
	}
	history := []entity.Turn{
		{UserMessage: "Hi", Response: "Hello! How can I help?"},
		{UserMessage: "I study law", Response: "Great."},
	}

	context, historyText := Assemble(passages, history, "What is negligence?")

	assert.Equal(t, "Negligence is a failure to take reasonable care.\n\nA duty of care must be owed.\n\nDamage must not be too remote.", context)
	assert.Equal(t, "User: Hi\nBot: Hello! How can I help?\nUser: I study law\nBot: Great.", historyText)
}

func TestAssemble_Empty(t *testing.T) {
	context, historyText := Assemble(nil, nil, "Hi there")
	assert.Equal(t, "", context)
	assert.Equal(t, "", historyText)
}

func TestAssemble_Deterministic(t *testing.T) {
	passages := []entity.Passage{{Content: "a", SourceMetadata: map[string]any{"k": 1}}, {Content: "b"}}
	history := []entity.Turn{{UserMessage: "q", Response: "r"}}

	c1, h1 := Assemble(passages, history, "x")
	for i := 0; i < 20; i++ {
		c2, h2 := Assemble(passages, history, "x")
		assert.Equal(t, c1, c2)
		assert.Equal(t, h1, h2)
	}
}

func TestBuildCompletionMessages(t *testing.T) {
	msgs := BuildCompletionMessages("ctx text", "User: a\nBot: b", "What now?")
	require.Len(t, msgs, 2)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, SystemInstruction, msgs[0].Content)

	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "Context:\nctx text\n\nConversation History:\nUser: a\nBot: b\n\nUser Query:\nWhat now?\n\nResponse:", msgs[1].Content)
}

func TestBuildUserPrompt_ExplicitWhenContextAbsent(t *testing.T) {
	p := BuildUserPrompt("", "", "Hi there")
	assert.Contains(t, p, "Context:\n"+noContextNotice)
	assert.Contains(t, p, "Conversation History:\n"+noHistoryNotice)
	assert.Contains(t, p, "User Query:\nHi there")
}
