package storage

import (
	"context"
	"errors"

	"github.com/wagate/wagate/internal/storage/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a record with the same id already exists.
var ErrConflict = errors.New("record already exists")

// ClientRepository persists session registry records.
type ClientRepository interface {
	// Create inserts a new record; ErrConflict when the id is taken.
	Create(ctx context.Context, client model.Client) (model.Client, error)
	GetByID(ctx context.Context, id string) (model.Client, error)
	// UpdateWebhook replaces the delivery destination for a record.
	UpdateWebhook(ctx context.Context, id, webhookURL string) (model.Client, error)
	// UpdateDeviceJID records the engine device identity captured at pairing.
	UpdateDeviceJID(ctx context.Context, id, deviceJID string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Client, error)
}

// MessageRepository records chat traffic so history reads do not depend on
// the remote engine keeping messages around.
type MessageRepository interface {
	Create(ctx context.Context, msg model.Message) error
	GetByID(ctx context.Context, sessionID, id string) (model.Message, error)
	// ListByChat returns the most recent messages of a chat, newest first.
	ListByChat(ctx context.Context, sessionID, chatJID string, limit int) ([]model.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}
