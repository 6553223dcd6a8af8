package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wagate/wagate/internal/storage/model"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{pool: db.Pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg model.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, id) DO NOTHING
	`, msg.ID, msg.SessionID, msg.ChatJID, nullIfEmpty(msg.SenderJID),
		msg.FromMe, msg.Type, nullIfEmpty(msg.Body), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("message create: %w", mapError(err))
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, sessionID, id string) (model.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp
		FROM messages
		WHERE session_id = $1 AND id = $2
	`, sessionID, id)

	msg, err := scanMessage(row)
	if err != nil {
		return model.Message{}, fmt.Errorf("message get: %w", mapError(err))
	}
	return msg, nil
}

func (r *MessageRepo) ListByChat(ctx context.Context, sessionID, chatJID string, limit int) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp
		FROM messages
		WHERE session_id = $1 AND chat_jid = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`, sessionID, chatJID, limit)
	if err != nil {
		return nil, fmt.Errorf("message list: %w", mapError(err))
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("message list: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (r *MessageRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("message delete by session: %w", mapError(err))
	}
	return nil
}

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		msg       model.Message
		senderJID sql.NullString
		body      sql.NullString
	)
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.ChatJID, &senderJID, &msg.FromMe, &msg.Type, &body, &msg.Timestamp); err != nil {
		return model.Message{}, err
	}
	msg.SenderJID = senderJID.String
	msg.Body = body.String
	return msg, nil
}
