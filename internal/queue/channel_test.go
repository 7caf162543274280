package queue

import (
	"context"
	"testing"

	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewChannelQueue(8)
	sub, err := q.Subscribe(ctx)
	require.NoError(t, err)

	changes := []index.Change{
		{Index: "friends", Key: "#2:1", Record: rid.New(1, 1), Op: index.OpPut},
		{Index: "friends", Key: "#2:2", Record: rid.New(1, 1), Op: index.OpDelete},
	}
	require.NoError(t, q.Publish(ctx, changes))

	assert.Equal(t, changes[0], <-sub)
	assert.Equal(t, changes[1], <-sub)

	require.NoError(t, q.Close())
	_, ok := <-sub
	assert.False(t, ok)
	assert.ErrorIs(t, q.Publish(ctx, changes), ErrQueueClosed)
	require.NoError(t, q.Close())
}
