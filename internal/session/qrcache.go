package session

import (
	"sync"
	"time"

	"github.com/wagate/wagate/internal/storage/model"
)

// QRCache holds the latest pairing artifact per session. Artifacts are
// volatile: each new code overwrites the previous one and authentication
// clears the slot.
type QRCache struct {
	mu    sync.RWMutex
	items map[string]model.QRArtifact
}

func NewQRCache() *QRCache {
	return &QRCache{items: make(map[string]model.QRArtifact)}
}

func (c *QRCache) Set(sessionID, imageData string) {
	c.mu.Lock()
	c.items[sessionID] = model.QRArtifact{
		SessionID:  sessionID,
		ImageData:  imageData,
		CapturedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
}

func (c *QRCache) Get(sessionID string) (model.QRArtifact, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	artifact, ok := c.items[sessionID]
	return artifact, ok
}

func (c *QRCache) Has(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[sessionID]
	return ok
}

func (c *QRCache) Delete(sessionID string) {
	c.mu.Lock()
	delete(c.items, sessionID)
	c.mu.Unlock()
}
