package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/emrgen/linkstore/internal/index"
)

var ErrQueueClosed = errors.New("queue closed")

// ChannelQueue fans index changes out to in-process subscribers. Used when no
// broker is configured and in tests.
type ChannelQueue struct {
	mu     sync.Mutex
	subs   []chan index.Change
	buffer int
	closed bool
}

func NewChannelQueue(buffer int) *ChannelQueue {
	return &ChannelQueue{buffer: buffer}
}

func (q *ChannelQueue) Publish(ctx context.Context, changes []index.Change) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for _, change := range changes {
		for _, sub := range q.subs {
			select {
			case sub <- change:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

func (q *ChannelQueue) Subscribe(ctx context.Context) (<-chan index.Change, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	sub := make(chan index.Change, q.buffer)
	q.subs = append(q.subs, sub)

	go func() {
		<-ctx.Done()
		q.unsubscribe(sub)
	}()

	return sub, nil
}

func (q *ChannelQueue) unsubscribe(sub chan index.Change) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, s := range q.subs {
		if s == sub {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (q *ChannelQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, sub := range q.subs {
		close(sub)
	}
	q.subs = nil

	return nil
}
