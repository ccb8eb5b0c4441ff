package queue

import (
	"context"
	"sync"

	"github.com/evalgo/rangedb/rlog"
)

// ConsumerPool runs size independent Transport.Subscribe loops against the
// same handler, adapted from worker/pool.go's Pool/Worker split. Unlike
// that package's per-queue-name dispatch, a ConsumerPool needs no shared
// dispatch of its own: on a list-backed Transport (queue/redisq) each
// loop's blocking dequeue already fans work out across the pool, and on a
// broker-backed one (queue/amqpq) the broker does the same.
type ConsumerPool struct {
	transport Transport
	handler   Handler
	size      int
	logger    *rlog.ContextLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumerPool returns a pool of size subscriber loops over transport,
// each invoking handler for every queue.Message received. logger may be
// nil. size below 1 is treated as 1.
func NewConsumerPool(transport Transport, handler Handler, size int, logger *rlog.ContextLogger) *ConsumerPool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = rlog.Default()
	}
	return &ConsumerPool{transport: transport, handler: handler, size: size, logger: logger}
}

// Start launches the pool's subscriber goroutines and returns immediately.
// Calling Start twice without an intervening Stop is a programming error.
func (p *ConsumerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.size; i++ {
		id := i
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			log := p.logger.WithField("consumer_id", id)
			log.Info("consumer started")
			if err := p.transport.Subscribe(ctx, p.handler); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("consumer exited")
			}
			log.Info("consumer stopped")
		}()
	}
}

// Stop cancels every subscriber loop and waits for them to return.
func (p *ConsumerPool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
