package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/pkg/queue"
	"github.com/wagate/wagate/internal/storage"
)

// TargetDelimiter separates multiple destinations in a session's webhook URL.
const TargetDelimiter = "|"

const (
	defaultMaxAttempts   = 5
	defaultRetryInterval = time.Second
)

// Dispatcher resolves a session's webhook destinations at dispatch time and
// delivers the event to each of them independently. Delivery is best-effort:
// after the attempts are exhausted the event is logged and gone.
type Dispatcher struct {
	repo          storage.ClientRepository
	client        *http.Client
	log           *zap.Logger
	maxAttempts   int
	retryInterval time.Duration
}

func NewDispatcher(repo storage.ClientRepository, log *zap.Logger, maxAttempts int, retryInterval time.Duration) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Dispatcher{
		repo:          repo,
		client:        &http.Client{Timeout: 30 * time.Second},
		log:           log,
		maxAttempts:   maxAttempts,
		retryInterval: retryInterval,
	}
}

// Dispatch fans the event out to every configured target and returns when
// all of them finished. Sessions without a webhook drop the event silently.
func (d *Dispatcher) Dispatch(ctx context.Context, evt queue.Event) {
	rec, err := d.repo.GetByID(ctx, evt.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.log.Debug("session gone, dropping event",
				zap.String("session_id", evt.SessionID),
				zap.String("type", evt.Type),
			)
		} else {
			d.log.Warn("webhook lookup failed, dropping event",
				zap.String("session_id", evt.SessionID),
				zap.Error(err),
			)
		}
		return
	}

	targets := SplitTargets(rec.WebhookURL)
	if len(targets) == 0 {
		d.log.Debug("no webhook configured, dropping event",
			zap.String("session_id", evt.SessionID),
			zap.String("type", evt.Type),
		)
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		d.log.Error("event marshal failed", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			d.deliver(ctx, url, body, evt)
		}(target)
	}
	wg.Wait()
}

// SplitTargets parses the stored webhook URL field into its destinations.
func SplitTargets(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, TargetDelimiter)
	targets := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

func (d *Dispatcher) deliver(ctx context.Context, url string, body []byte, evt queue.Event) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff: attempt n waits (n-1) intervals.
			backoff := time.Duration(attempt-1) * d.retryInterval
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			d.log.Error("webhook request build failed",
				zap.String("url", url),
				zap.Error(err),
			)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Event", evt.Type)

		resp, err := d.client.Do(req)
		if err != nil {
			d.log.Debug("webhook attempt failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status >= 200 && status < 300 {
			d.log.Debug("webhook delivered",
				zap.String("url", url),
				zap.String("type", evt.Type),
				zap.Int("attempt", attempt),
			)
			return
		}

		d.log.Debug("webhook attempt rejected",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
		)
	}

	d.log.Error("webhook delivery failed, giving up",
		zap.String("url", url),
		zap.String("session_id", evt.SessionID),
		zap.String("type", evt.Type),
		zap.Int("attempts", d.maxAttempts),
	)
}
