package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
)

type ClientRepo struct {
	db *sql.DB
}

func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db.Conn}
}

func (r *ClientRepo) Create(ctx context.Context, client model.Client) (model.Client, error) {
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, webhook_url, device_jid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, client.ID, nullIfEmpty(client.WebhookURL), nullIfEmpty(client.DeviceJID), formatTime(now), formatTime(now))
	if err != nil {
		return model.Client{}, fmt.Errorf("client create: %w", mapError(err))
	}

	return client, nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, webhook_url, device_jid, created_at, updated_at
		FROM clients
		WHERE id = ?
	`, id)

	client, err := scanClient(row)
	if err != nil {
		return model.Client{}, fmt.Errorf("client get: %w", mapError(err))
	}
	return client, nil
}

func (r *ClientRepo) UpdateWebhook(ctx context.Context, id, webhookURL string) (model.Client, error) {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET webhook_url = ?, updated_at = ? WHERE id = ?
	`, nullIfEmpty(webhookURL), formatTime(now), id)
	if err != nil {
		return model.Client{}, fmt.Errorf("client update webhook: %w", mapError(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return model.Client{}, fmt.Errorf("client update webhook: %w", storage.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *ClientRepo) UpdateDeviceJID(ctx context.Context, id, deviceJID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET device_jid = ?, updated_at = ? WHERE id = ?
	`, nullIfEmpty(deviceJID), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("client update device jid: %w", mapError(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("client update device jid: %w", storage.ErrNotFound)
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("client delete: %w", mapError(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("client delete: %w", storage.ErrNotFound)
	}
	return nil
}

func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, webhook_url, device_jid, created_at, updated_at
		FROM clients
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("client list: %w", mapError(err))
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("client list: %w", err)
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (model.Client, error) {
	var (
		client     model.Client
		webhookURL sql.NullString
		deviceJID  sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&client.ID, &webhookURL, &deviceJID, &createdAt, &updatedAt); err != nil {
		return model.Client{}, err
	}
	client.WebhookURL = webhookURL.String
	client.DeviceJID = deviceJID.String
	client.CreatedAt = parseTime(createdAt)
	client.UpdatedAt = parseTime(updatedAt)
	return client, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
