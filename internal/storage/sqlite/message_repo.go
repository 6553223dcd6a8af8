package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wagate/wagate/internal/storage/model"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db.Conn}
}

func (r *MessageRepo) Create(ctx context.Context, msg model.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.ChatJID, nullIfEmpty(msg.SenderJID),
		boolToInt(msg.FromMe), msg.Type, nullIfEmpty(msg.Body), formatTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("message create: %w", mapError(err))
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, sessionID, id string) (model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp
		FROM messages
		WHERE session_id = ? AND id = ?
	`, sessionID, id)

	msg, err := scanMessage(row)
	if err != nil {
		return model.Message{}, fmt.Errorf("message get: %w", mapError(err))
	}
	return msg, nil
}

func (r *MessageRepo) ListByChat(ctx context.Context, sessionID, chatJID string, limit int) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, chat_jid, sender_jid, from_me, type, body, timestamp
		FROM messages
		WHERE session_id = ? AND chat_jid = ?
		ORDER BY timestamp DESC
		LIMIT ?
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
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("message delete by session: %w", mapError(err))
	}
	return nil
}

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		msg       model.Message
		senderJID sql.NullString
		fromMe    int
		body      sql.NullString
		timestamp string
	)
	if err := row.Scan(&msg.ID, &msg.SessionID, &msg.ChatJID, &senderJID, &fromMe, &msg.Type, &body, &timestamp); err != nil {
		return model.Message{}, err
	}
	msg.SenderJID = senderJID.String
	msg.FromMe = fromMe != 0
	msg.Body = body.String
	msg.Timestamp = parseTime(timestamp)
	return msg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
