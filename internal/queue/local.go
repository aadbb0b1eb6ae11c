package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/songmigrate/internal/shared"
)

// LocalBroker is an in-process queue backed by a buffered channel.
type LocalBroker struct {
	mu     sync.RWMutex
	jobs   chan Job
	closed bool
}

func NewLocalBroker(size int) *LocalBroker {
	return &LocalBroker{jobs: make(chan Job, max(size, 1))}
}

// Publish blocks while the buffer is full until ctx is done.
func (b *LocalBroker) Publish(ctx context.Context, job Job) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("%w: local broker closed", shared.ErrServiceUnavailable)
	}

	select {
	case b.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume streams jobs until ctx is done or the broker is closed. Nack with
// requeue puts the job back on the queue.
func (b *LocalBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-b.jobs:
				if !ok {
					return
				}
				d := Delivery{
					Job: job,
					Ack: func() error { return nil },
					Nack: func(requeue bool) error {
						if !requeue {
							return nil
						}
						return b.Publish(context.Background(), job)
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Len returns the number of buffered jobs.
func (b *LocalBroker) Len() int {
	return len(b.jobs)
}

// Close stops accepting jobs; consumers drain what is buffered and exit.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.jobs)
	}
	return nil
}
