package queue

import (
	"context"

	"github.com/emrgen/linkstore/internal/index"
)

// IndexQueue carries committed index changes to other processes.
type IndexQueue interface {
	// Publish appends the changes of one commit to the queue.
	Publish(ctx context.Context, changes []index.Change) error
	// Subscribe streams changes until ctx is done.
	Subscribe(ctx context.Context) (<-chan index.Change, error)
	Close() error
}

var (
	_ IndexQueue = (*KafkaIndexQueue)(nil)
	_ IndexQueue = (*ChannelQueue)(nil)
)
