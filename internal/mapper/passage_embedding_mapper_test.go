package mapper

import (
	"testing"

	"rag-chat-be/internal/model"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassageEmbeddingToEntity(t *testing.T) {
	m := NewPassageEmbeddingMapper()

	e, err := m.ToEntity(&model.PassageEmbedding{
		Id:             uuid.New(),
		Content:        "Negligence is a failure to take reasonable care.",
		SourceMetadata: []byte(`{"source":"torts.pdf","page":12,"offset":9007199254740993}`),
		EmbeddingValue: pgvector.NewVector([]float32{0.1, 0.2}),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"source": "torts.pdf", "page": int64(12), "offset": int64(9007199254740993)}, e.SourceMetadata)
	assert.Equal(t, []float32{0.1, 0.2}, e.EmbeddingValue)

	empty, err := m.ToEntity(&model.PassageEmbedding{Id: uuid.New(), Content: "x"})
	require.NoError(t, err)
	assert.Nil(t, empty.SourceMetadata)
}

func TestPassageEmbeddingToEntity_MalformedMetadata(t *testing.T) {
	id := uuid.New()
	_, err := NewPassageEmbeddingMapper().ToEntity(&model.PassageEmbedding{
		Id:             id,
		Content:        "x",
		SourceMetadata: []byte(`{"source":`),
	})
	assert.ErrorContains(t, err, "passage "+id.String()+": malformed source metadata")
}

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{name: "empty", raw: ``, want: nil},
		{name: "integer", raw: `{"page":3}`, want: map[string]any{"page": int64(3)}},
		{name: "beyond float precision", raw: `{"id":9007199254740993}`, want: map[string]any{"id": int64(9007199254740993)}},
		{name: "fraction", raw: `{"score":0.5}`, want: map[string]any{"score": 0.5}},
		{name: "beyond int64", raw: `{"big":18446744073709551616}`, want: map[string]any{"big": 1.8446744073709552e19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMetadata([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
