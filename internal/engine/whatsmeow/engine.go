// Package whatsmeow adapts go.mau.fi/whatsmeow to the engine interface.
// Each session keeps its own credential store: a sqlite file under the data
// dir by default, or a device row in a shared PostgreSQL store.
package whatsmeow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"          // postgres driver for credential stores
	_ "github.com/mattn/go-sqlite3" // sqlite driver for credential stores
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/storage"
)

// The protocol library is chatty; its logs go nowhere and ours come from zap.
type noopLogger struct{}

func (n *noopLogger) Debugf(msg string, args ...interface{}) {}
func (n *noopLogger) Infof(msg string, args ...interface{})  {}
func (n *noopLogger) Warnf(msg string, args ...interface{})  {}
func (n *noopLogger) Errorf(msg string, args ...interface{}) {}
func (n *noopLogger) Sub(module string) waLog.Logger         { return n }

type Engine struct {
	log           *zap.Logger
	storageDriver string
	baseDir       string
	pgConnString  string
	clients       storage.ClientRepository
	messages      storage.MessageRepository
}

// NewEngine builds the adapter. baseDir receives the per-session sqlite
// credential stores; pgConnString is only used when storageDriver is
// "postgres".
func NewEngine(log *zap.Logger, storageDriver, baseDir, pgConnString string, clients storage.ClientRepository, messages storage.MessageRepository) *Engine {
	if storageDriver != "postgres" {
		if baseDir == "" {
			baseDir = "./data/sessions"
			log.Warn("session dir not set, using default", zap.String("dir", baseDir))
		}
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			log.Error("failed to create session dir; credential stores will not open",
				zap.String("dir", baseDir),
				zap.Error(err),
			)
		}
	}

	return &Engine{
		log:           log,
		storageDriver: storageDriver,
		baseDir:       baseDir,
		pgConnString:  pgConnString,
		clients:       clients,
		messages:      messages,
	}
}

func (e *Engine) Start(ctx context.Context, sessionID string, sink engine.EventSink) (engine.Handle, error) {
	device, err := e.deviceStore(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, &noopLogger{})

	h := &handle{
		id:     sessionID,
		client: client,
		sink:   sink,
		log:    e.log,
		repo:   e.clients,
		msgs:   e.messages,
	}
	h.handlerID = client.AddEventHandler(h.route)

	// A QR channel can only be opened while the store has no paired device.
	if device.ID == nil || device.ID.IsEmpty() {
		qrCtx, qrCancel := context.WithCancel(context.Background())
		qrChan, err := client.GetQRChannel(qrCtx)
		if err != nil {
			qrCancel()
			client.RemoveEventHandler(h.handlerID)
			return nil, fmt.Errorf("whatsmeow: open QR channel: %w", err)
		}
		h.qrCancel = qrCancel
		go h.watchQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		if h.qrCancel != nil {
			h.qrCancel()
		}
		client.RemoveEventHandler(h.handlerID)
		return nil, fmt.Errorf("whatsmeow: connect: %w", err)
	}

	e.log.Info("engine handle started",
		zap.String("session_id", sessionID),
		zap.Bool("paired", device.ID != nil && !device.ID.IsEmpty()),
	)

	return h, nil
}

// Erase drops the session's credential material: the sqlite store file, or
// the device row in the shared PostgreSQL store.
func (e *Engine) Erase(sessionID string) error {
	if e.storageDriver == "postgres" && e.pgConnString != "" {
		return e.erasePostgres(sessionID)
	}

	base := filepath.Join(e.baseDir, sessionID+".db")
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("whatsmeow: remove credential store: %w", err)
		}
	}
	return nil
}

func (e *Engine) erasePostgres(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rec, err := e.clients.GetByID(ctx, sessionID)
	if err != nil || rec.DeviceJID == "" {
		return nil // nothing paired, nothing to erase
	}
	jid, err := types.ParseJID(rec.DeviceJID)
	if err != nil {
		return nil
	}

	container, err := sqlstore.New(ctx, "postgres", e.pgConnString, &noopLogger{})
	if err != nil {
		return fmt.Errorf("whatsmeow: open credential store: %w", err)
	}
	device, err := container.GetDevice(ctx, jid)
	if err != nil || device == nil {
		return nil
	}
	if err := container.DeleteDevice(ctx, device); err != nil {
		return fmt.Errorf("whatsmeow: delete device: %w", err)
	}
	return nil
}

func (e *Engine) deviceStore(ctx context.Context, sessionID string) (*store.Device, error) {
	if e.storageDriver == "postgres" && e.pgConnString != "" {
		container, err := sqlstore.New(ctx, "postgres", e.pgConnString, &noopLogger{})
		if err != nil {
			return nil, fmt.Errorf("whatsmeow: open credential store: %w", err)
		}
		// The shared store holds one device row per session; find ours by
		// the JID recorded at pairing time.
		if rec, err := e.clients.GetByID(ctx, sessionID); err == nil && rec.DeviceJID != "" {
			if jid, jerr := types.ParseJID(rec.DeviceJID); jerr == nil {
				if device, derr := container.GetDevice(ctx, jid); derr == nil && device != nil {
					return device, nil
				}
			}
		}
		return container.NewDevice(), nil
	}

	dbPath := filepath.Join(e.baseDir, sessionID+".db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", dbPath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, &noopLogger{})
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: open credential store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsmeow: load device: %w", err)
	}
	return device, nil
}
