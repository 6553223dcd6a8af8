package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
)

type ClientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{pool: db.Pool}
}

func (r *ClientRepo) Create(ctx context.Context, client model.Client) (model.Client, error) {
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (id, webhook_url, device_jid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, client.ID, nullIfEmpty(client.WebhookURL), nullIfEmpty(client.DeviceJID), now, now)
	if err != nil {
		return model.Client{}, fmt.Errorf("client create: %w", mapError(err))
	}

	return client, nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, webhook_url, device_jid, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)

	client, err := scanClient(row)
	if err != nil {
		return model.Client{}, fmt.Errorf("client get: %w", mapError(err))
	}
	return client, nil
}

func (r *ClientRepo) UpdateWebhook(ctx context.Context, id, webhookURL string) (model.Client, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET webhook_url = $1, updated_at = NOW() WHERE id = $2
	`, nullIfEmpty(webhookURL), id)
	if err != nil {
		return model.Client{}, fmt.Errorf("client update webhook: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return model.Client{}, fmt.Errorf("client update webhook: %w", storage.ErrNotFound)
	}

	return r.GetByID(ctx, id)
}

func (r *ClientRepo) UpdateDeviceJID(ctx context.Context, id, deviceJID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET device_jid = $1, updated_at = NOW() WHERE id = $2
	`, nullIfEmpty(deviceJID), id)
	if err != nil {
		return fmt.Errorf("client update device jid: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("client update device jid: %w", storage.ErrNotFound)
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("client delete: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("client delete: %w", storage.ErrNotFound)
	}
	return nil
}

func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx, `
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
	)
	if err := row.Scan(&client.ID, &webhookURL, &deviceJID, &client.CreatedAt, &client.UpdatedAt); err != nil {
		return model.Client{}, err
	}
	client.WebhookURL = webhookURL.String
	client.DeviceJID = deviceJID.String
	return client, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
