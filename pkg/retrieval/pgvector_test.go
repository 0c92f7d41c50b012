package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgvectorRetriever_CountPassages(t *testing.T) {
	db, err := database.NewSqliteDB(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	// The vector column only matters to the similarity search; a plain
	// table is enough to count rows.
	require.NoError(t, db.Exec(`CREATE TABLE passage_embeddings (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source_metadata TEXT,
		embedding_value TEXT,
		created_at DATETIME
	)`).Error)

	r := NewPgvectorRetriever(unitofwork.NewRepositoryFactory(db), stubEmbedder{})

	n, err := r.CountPassages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, db.Exec(`INSERT INTO passage_embeddings (id, content) VALUES (?, ?)`, id, "text "+id).Error)
	}

	n, err = r.CountPassages(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
