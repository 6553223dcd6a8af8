package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const dequeueTimeout = 5 * time.Second

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.log.With(zap.Int("worker", id))
	log.Debug("webhook worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("webhook worker stopping")
			return
		default:
		}

		evt, err := p.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if evt == nil {
			continue
		}

		p.dispatcher.Dispatch(ctx, *evt)
	}
}
