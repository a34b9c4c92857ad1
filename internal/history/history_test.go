package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutpulse/pulse/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDigestRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := DigestRecord{
		ID:           uuid.NewString(),
		Title:        "Portfolio Digest",
		ArticleCount: 2,
		Raw:          "Article 1 - A\nArticle 2 - B",
		CreatedAt:    time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC),
	}
	newer := DigestRecord{
		ID:           uuid.NewString(),
		Title:        "Scout Pulse Portfolio Digest - March 5",
		ArticleCount: 3,
		Raw:          "Article 1 - C",
		CreatedAt:    time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveDigest(ctx, older))
	require.NoError(t, store.SaveDigest(ctx, newer))

	last, err := store.LastDigest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, last)

	all, err := store.ListDigests(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	limited, err := store.ListDigests(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}

func TestLastDigestEmptyStore(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LastDigest(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTranscriptRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := session.New("pulse-1")
	sess.Append(session.RoleUser, "how did energy do?")
	sess.Append(session.RoleAssistant, "crude dragged the sector lower")
	require.NoError(t, store.SaveMessages(ctx, sess.ID(), sess.Messages()))

	got, err := store.Transcript(ctx, sess.ID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, session.RoleUser, got[0].Role)
	assert.Equal(t, "how did energy do?", got[0].Content)
	assert.Equal(t, session.RoleAssistant, got[1].Role)

	// Another session's transcript stays separate.
	other, err := store.Transcript(ctx, session.New("pulse-1").ID())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSaveMessagesEmptyBatch(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.SaveMessages(context.Background(), "s", nil))
}
