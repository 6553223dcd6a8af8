package webhook

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/pkg/queue"
)

// Pool runs the delivery workers that drain the event queue.
type Pool struct {
	queue      queue.Queue
	dispatcher *Dispatcher
	workers    int
	log        *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(q queue.Queue, dispatcher *Dispatcher, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      q,
		dispatcher: dispatcher,
		workers:    workers,
		log:        log,
	}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}

	p.log.Info("webhook pool started", zap.Int("workers", p.workers))
}

// Stop cancels the workers and waits for in-flight deliveries to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info("webhook pool stopped")
}
