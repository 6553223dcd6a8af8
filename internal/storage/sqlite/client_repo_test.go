package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn.Exec(`
		CREATE TABLE clients (
			id TEXT PRIMARY KEY,
			webhook_url TEXT,
			device_jid TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = db.Conn.Exec(`
		CREATE TABLE messages (
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			chat_jid TEXT NOT NULL,
			sender_jid TEXT,
			from_me INTEGER NOT NULL DEFAULT 0,
			type TEXT NOT NULL,
			body TEXT,
			timestamp TEXT NOT NULL,
			PRIMARY KEY (session_id, id)
		)
	`)
	require.NoError(t, err)

	return db
}

func TestClientRepoCreateAndGet(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, model.Client{ID: "s1", WebhookURL: "https://example.test/hook"})
	require.NoError(t, err)
	require.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
	require.Equal(t, "https://example.test/hook", got.WebhookURL)
	require.Empty(t, got.DeviceJID)
}

func TestClientRepoCreateDuplicate(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Client{ID: "s1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.Client{ID: "s1"})
	require.ErrorIs(t, err, storage.ErrConflict)
}

func TestClientRepoGetMissing(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClientRepoUpdateWebhook(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Client{ID: "s1"})
	require.NoError(t, err)

	updated, err := repo.UpdateWebhook(ctx, "s1", "https://a.test|https://b.test")
	require.NoError(t, err)
	require.Equal(t, "https://a.test|https://b.test", updated.WebhookURL)

	_, err = repo.UpdateWebhook(ctx, "missing", "https://a.test")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClientRepoUpdateDeviceJID(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Client{ID: "s1"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateDeviceJID(ctx, "s1", "5511999999999.0:1@s.whatsapp.net"))

	got, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "5511999999999.0:1@s.whatsapp.net", got.DeviceJID)

	require.ErrorIs(t, repo.UpdateDeviceJID(ctx, "missing", "x"), storage.ErrNotFound)
}

func TestClientRepoDelete(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Client{ID: "s1"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "s1"))
	require.ErrorIs(t, repo.Delete(ctx, "s1"), storage.ErrNotFound)

	_, err = repo.GetByID(ctx, "s1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClientRepoList(t *testing.T) {
	repo := NewClientRepo(newTestDB(t))
	ctx := context.Background()

	require.Empty(t, mustList(t, repo, ctx))

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, model.Client{ID: id})
		require.NoError(t, err)
	}

	clients := mustList(t, repo, ctx)
	require.Len(t, clients, 3)
}

func mustList(t *testing.T, repo *ClientRepo, ctx context.Context) []model.Client {
	t.Helper()
	clients, err := repo.List(ctx)
	require.NoError(t, err)
	return clients
}

func TestMessageRepoCreateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepo(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"m1", "m2", "m3"} {
		err := repo.Create(ctx, model.Message{
			ID:        id,
			SessionID: "s1",
			ChatJID:   "123@s.whatsapp.net",
			SenderJID: "456@s.whatsapp.net",
			Type:      "text",
			Body:      "message " + id,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	// Duplicate delivery of the same message id is ignored.
	require.NoError(t, repo.Create(ctx, model.Message{
		ID:        "m1",
		SessionID: "s1",
		ChatJID:   "123@s.whatsapp.net",
		SenderJID: "456@s.whatsapp.net",
		Type:      "text",
		Timestamp: base,
	}))

	msgs, err := repo.ListByChat(ctx, "s1", "123@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Newest first.
	require.Equal(t, "m3", msgs[0].ID)
	require.Equal(t, "m1", msgs[2].ID)

	limited, err := repo.ListByChat(ctx, "s1", "123@s.whatsapp.net", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, "m3", limited[0].ID)
}

func TestMessageRepoGetByID(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.Message{
		ID:        "m1",
		SessionID: "s1",
		ChatJID:   "123@s.whatsapp.net",
		FromMe:    true,
		Type:      "text",
		Body:      "hello",
		Timestamp: time.Now().UTC(),
	}))

	got, err := repo.GetByID(ctx, "s1", "m1")
	require.NoError(t, err)
	require.True(t, got.FromMe)
	require.Equal(t, "hello", got.Body)

	_, err = repo.GetByID(ctx, "other-session", "m1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMessageRepoDeleteBySession(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	for _, session := range []string{"s1", "s2"} {
		require.NoError(t, repo.Create(ctx, model.Message{
			ID:        "m1",
			SessionID: session,
			ChatJID:   "123@s.whatsapp.net",
			Type:      "text",
			Timestamp: time.Now().UTC(),
		}))
	}

	require.NoError(t, repo.DeleteBySession(ctx, "s1"))

	_, err := repo.GetByID(ctx, "s1", "m1")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.GetByID(ctx, "s2", "m1")
	require.NoError(t, err)
}
