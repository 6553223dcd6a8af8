// Package session owns the lifecycle of messaging sessions: registry-backed
// creation and removal, restore on boot, QR pairing state, and the bridge
// from engine events to webhook delivery.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/storage/model"
	storeredis "github.com/wagate/wagate/internal/storage/redis"
)

const qrImageSize = 256

// Notifier receives every engine event for webhook fan-out. Implementations
// must return quickly; delivery happens elsewhere.
type Notifier interface {
	Notify(sessionID string, evt engine.Event)
}

type entry struct {
	handle engine.Handle
	state  model.SessionState
}

type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	repo     storage.ClientRepository
	messages storage.MessageRepository
	engine   engine.Engine
	qr       *QRCache
	notifier Notifier
	log      *zap.Logger

	// Optional: keeps overlapping replicas from both restoring on boot.
	restoreLock *storeredis.Lock
}

func NewManager(repo storage.ClientRepository, messages storage.MessageRepository, eng engine.Engine, log *zap.Logger) *Manager {
	return &Manager{
		entries:  make(map[string]*entry),
		repo:     repo,
		messages: messages,
		engine:   eng,
		qr:       NewQRCache(),
		log:      log,
	}
}

// SetNotifier registers the webhook bridge. Must be called before sessions
// are started; events from earlier are dropped.
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

func (m *Manager) SetRestoreLock(lock *storeredis.Lock) {
	m.restoreLock = lock
}

// Initialize restores a handle for every registry record. One session
// failing to start never stops the others.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.restoreLock != nil {
		acquired, err := m.restoreLock.Acquire(ctx)
		if err != nil {
			m.log.Warn("restore lock unavailable, restoring anyway", zap.Error(err))
		} else if !acquired {
			m.log.Info("another replica is restoring sessions, skipping")
			return nil
		} else {
			defer func() {
				if err := m.restoreLock.Release(context.Background()); err != nil {
					m.log.Warn("restore lock release failed", zap.Error(err))
				}
			}()
		}
	}

	records, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("session: list registry: %w", err)
	}

	for _, rec := range records {
		if err := m.startHandle(ctx, rec.ID); err != nil {
			m.log.Error("session restore failed",
				zap.String("session_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		m.log.Info("session restored", zap.String("session_id", rec.ID))
	}
	return nil
}

// AddSession registers the session and brings its handle up. The registry
// write happens first so a duplicate id fails before any engine work; when
// the engine fails to start, the fresh record is rolled back.
func (m *Manager) AddSession(ctx context.Context, id, webhookURL string) error {
	if _, err := m.repo.Create(ctx, model.Client{ID: id, WebhookURL: webhookURL}); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}

	if err := m.startHandle(ctx, id); err != nil {
		if delErr := m.repo.Delete(ctx, id); delErr != nil {
			m.log.Error("registry rollback failed",
				zap.String("session_id", id),
				zap.Error(delErr),
			)
		}
		return fmt.Errorf("session %s: start: %w", id, err)
	}
	return nil
}

func (m *Manager) startHandle(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, exists := m.entries[id]; exists {
		m.mu.Unlock()
		m.log.Warn("handle already exists, skipping start", zap.String("session_id", id))
		return nil
	}
	// Reserve the slot so a concurrent start for the same id backs off.
	m.entries[id] = &entry{state: model.SessionInitializing}
	m.mu.Unlock()

	h, err := m.engine.Start(ctx, id, func(evt engine.Event) {
		m.handleEvent(id, evt)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		// Removed while starting; tear the orphan down.
		m.mu.Unlock()
		h.Destroy()
		return nil
	}
	e.handle = h
	m.mu.Unlock()
	return nil
}

// RemoveSession tears the session down everywhere: live handle, registry
// record, cached QR, stored history, and engine credential material. It
// fails with not-found only when neither a handle nor a record existed.
func (m *Manager) RemoveSession(ctx context.Context, id string) error {
	m.mu.Lock()
	e, had := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()

	if had && e.handle != nil {
		logoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		if err := e.handle.Logout(logoutCtx); err != nil {
			m.log.Warn("logout failed during removal",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
		cancel()
		e.handle.Destroy()
	}

	m.qr.Delete(id)

	repoErr := m.repo.Delete(ctx, id)
	if repoErr != nil && !errors.Is(repoErr, storage.ErrNotFound) {
		return repoErr
	}

	if err := m.engine.Erase(id); err != nil {
		m.log.Warn("credential erase failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
	if err := m.messages.DeleteBySession(ctx, id); err != nil {
		m.log.Warn("history cleanup failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}

	if !had && errors.Is(repoErr, storage.ErrNotFound) {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}

	m.log.Info("session removed", zap.String("session_id", id))
	return nil
}

// Restart tears down the live handle and starts a fresh one, keeping the
// registry record and credential material.
func (m *Manager) Restart(ctx context.Context, id string) error {
	m.mu.Lock()
	e, had := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()

	if !had {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	if e.handle != nil {
		e.handle.Destroy()
	}
	m.qr.Delete(id)

	return m.startHandle(ctx, id)
}

// Status derives the lifecycle state. A pending QR wins over everything;
// an engine that has not yet reported a connection state is reported as
// qr_pending as well, since the two are indistinguishable from outside.
func (m *Manager) Status(id string) (model.SessionState, error) {
	// Copy the fields under the lock; startHandle writes entry.handle
	// concurrently.
	m.mu.RLock()
	e, ok := m.entries[id]
	var h engine.Handle
	var state model.SessionState
	if ok {
		h = e.handle
		state = e.state
	}
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}

	if m.qr.Has(id) {
		return model.SessionQRPending, nil
	}
	if h == nil {
		return model.SessionInitializing, nil
	}
	if h.Authenticated() {
		return model.SessionReady, nil
	}
	if _, reported := h.State(); !reported {
		return model.SessionQRPending, nil
	}

	switch state {
	case model.SessionDisconnected, model.SessionAuthFailed:
		return state, nil
	default:
		return model.SessionInitializing, nil
	}
}

// QR returns the latest pairing artifact for the session.
func (m *Manager) QR(id string) (model.QRArtifact, error) {
	artifact, ok := m.qr.Get(id)
	if !ok {
		return model.QRArtifact{}, fmt.Errorf("session %s: qr: %w", id, storage.ErrNotFound)
	}
	return artifact, nil
}

// Handle returns the live engine handle for the session.
func (m *Manager) Handle(id string) (engine.Handle, error) {
	m.mu.RLock()
	var h engine.Handle
	if e, ok := m.entries[id]; ok {
		h = e.handle
	}
	m.mu.RUnlock()
	if h == nil {
		return nil, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return h, nil
}

// UpdateWebhook reconfigures the delivery destination for the session.
func (m *Manager) UpdateWebhook(ctx context.Context, id, webhookURL string) (model.Client, error) {
	return m.repo.UpdateWebhook(ctx, id, webhookURL)
}

// SessionInfo is one row of the session listing.
type SessionInfo struct {
	ID    string             `json:"id"`
	State model.SessionState `json:"state"`
}

func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		state, err := m.Status(id)
		if err != nil {
			continue
		}
		infos = append(infos, SessionInfo{ID: id, State: state})
	}
	return infos
}

// Shutdown disconnects every handle without logging out, so sessions come
// back on the next boot.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for id, e := range entries {
		if e.handle != nil {
			e.handle.Destroy()
		}
		m.log.Debug("session disconnected", zap.String("session_id", id))
	}
}

func (m *Manager) handleEvent(id string, evt engine.Event) {
	switch e := evt.(type) {
	case engine.QREvent:
		png, err := qrcode.Encode(e.Code, qrcode.Medium, qrImageSize)
		if err != nil {
			m.log.Error("qr render failed", zap.String("session_id", id), zap.Error(err))
		} else {
			m.qr.Set(id, base64.StdEncoding.EncodeToString(png))
		}
		m.setState(id, model.SessionQRPending)
	case engine.ReadyEvent:
		m.qr.Delete(id)
		m.setState(id, model.SessionReady)
		m.log.Info("session ready", zap.String("session_id", id))
	case engine.DisconnectedEvent:
		m.setState(id, model.SessionDisconnected)
		m.log.Warn("session disconnected",
			zap.String("session_id", id),
			zap.String("reason", e.Reason),
		)
	case engine.AuthFailureEvent:
		m.setState(id, model.SessionAuthFailed)
		m.log.Error("session authentication failed",
			zap.String("session_id", id),
			zap.String("message", e.Message),
		)
	}

	m.mu.RLock()
	notifier := m.notifier
	m.mu.RUnlock()
	if notifier != nil {
		notifier.Notify(id, evt)
	}
}

func (m *Manager) setState(id string, state model.SessionState) {
	m.mu.Lock()
	if e, ok := m.entries[id]; ok {
		e.state = state
	}
	m.mu.Unlock()
}
