// Package publisher delivers audit events to a Store either inline or through
// a buffered background worker.
package publisher

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	audit "brick/pkg/platform/audit"
	"brick/pkg/platform/audit/worker"
)

// ErrBufferFull is returned in async mode when the inbox cannot take more events.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher implements audit.Emitter.
type Publisher struct {
	store  audit.Store
	buffer int

	inbox  chan audit.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches to async delivery with an inbox of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.inbox = make(chan audit.Event, p.buffer)
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		w := worker.NewWorker(store, p.inbox)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = w.Run(ctx)
		}()
	}
	return p
}

// Emit assigns an id if missing and delivers the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops the async worker after draining buffered events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox == nil {
			return
		}
		close(p.inbox)
		p.wg.Wait()
		p.cancel()
	})
}
