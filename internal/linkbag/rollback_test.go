package linkbag

import (
	"context"
	"testing"

	"github.com/emrgen/linkstore/internal/rid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBag_RollbackToCheckpoint(t *testing.T) {
	for _, tc := range representations() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.TODO()
			x, y := rid.New(5, 1), rid.New(5, 2)
			b := tc.newBag(t)

			require.NoError(t, b.EnableTracking(nil))
			require.NoError(t, b.Add(ctx, x))
			cp := b.MarkCheckpoint()
			require.True(t, cp.IsValid())

			require.NoError(t, b.Add(ctx, y))
			_, err := b.Remove(ctx, x)
			require.NoError(t, err)
			assert.Len(t, b.TransactionTimeline(), 2)

			require.NoError(t, b.RollbackChanges(ctx, cp))

			assert.Equal(t, map[rid.RID]int{x: 1}, bagCounts(t, b))
			assert.Equal(t, 1, b.Size())
			assert.Empty(t, b.TransactionTimeline())
			assert.Len(t, b.Timeline(), 1)
		})
	}
}

func TestBag_RollbackCancelsCycles(t *testing.T) {
	tests := []struct {
		name   string
		before []rid.RID
		after  func(ctx context.Context, b *Bag) error
	}{
		{
			name:   "net zero add remove chain",
			before: []rid.RID{rid.New(1, 1)},
			after: func(ctx context.Context, b *Bag) error {
				for i := 0; i < 3; i++ {
					if err := b.Add(ctx, rid.New(1, 2)); err != nil {
						return err
					}
					if _, err := b.Remove(ctx, rid.New(1, 2)); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			name:   "duplicates removed more than once",
			before: []rid.RID{rid.New(1, 1), rid.New(1, 1), rid.New(1, 1), rid.New(1, 3)},
			after: func(ctx context.Context, b *Bag) error {
				for i := 0; i < 4; i++ {
					if _, err := b.Remove(ctx, rid.New(1, 1)); err != nil {
						return err
					}
				}
				return b.Add(ctx, rid.New(1, 1))
			},
		},
		{
			name:   "remove then add back",
			before: []rid.RID{rid.New(1, 1), rid.New(1, 2)},
			after: func(ctx context.Context, b *Bag) error {
				if _, err := b.Remove(ctx, rid.New(1, 1)); err != nil {
					return err
				}
				if err := b.Add(ctx, rid.New(1, 1)); err != nil {
					return err
				}
				_, err := b.Remove(ctx, rid.New(1, 2))
				return err
			},
		},
	}

	for _, tc := range representations() {
		for _, tt := range tests {
			t.Run(tc.name+"/"+tt.name, func(t *testing.T) {
				ctx := context.TODO()
				b := tc.newBag(t)
				require.NoError(t, b.EnableTracking(nil))
				require.NoError(t, b.AddAll(ctx, tt.before))

				want := bagCounts(t, b)
				cp := b.MarkCheckpoint()
				require.NoError(t, tt.after(ctx, b))
				require.NoError(t, b.RollbackChanges(ctx, cp))

				assert.Equal(t, want, bagCounts(t, b))
				assert.Equal(t, len(tt.before), b.Size())
			})
		}
	}
}

func TestBag_RollbackRestoresSecondary(t *testing.T) {
	ctx := context.TODO()
	b := New(newBadgerTrees(t), Thresholds{EmbeddedToExternal: 3, ExternalToEmbedded: -1})
	k := rid.New(1, 1)

	require.NoError(t, b.EnableTracking(nil))
	require.NoError(t, b.AddPair(ctx, k, rid.New(7, 1)))
	require.NoError(t, b.AddPair(ctx, k, rid.New(7, 2)))
	cp := b.MarkCheckpoint()

	_, err := b.Remove(ctx, k)
	require.NoError(t, err)
	require.NoError(t, b.AddPair(ctx, k, rid.New(7, 3)))
	require.NoError(t, b.AddPair(ctx, k, rid.New(7, 4)))
	require.False(t, b.IsEmbedded())

	require.NoError(t, b.RollbackChanges(ctx, cp))

	entries, err := b.Entries(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Entry{
		{Primary: k, Secondary: rid.New(7, 1)},
		{Primary: k, Secondary: rid.New(7, 2)},
	}, entries)
}

func TestBag_StaleCheckpoint(t *testing.T) {
	ctx := context.TODO()
	b := New(nil, DefaultThresholds())

	assert.False(t, b.MarkCheckpoint().IsValid())
	assert.ErrorIs(t, b.RollbackChanges(ctx, Checkpoint{}), ErrInvalidCheckpoint)

	require.NoError(t, b.EnableTracking(nil))
	older := b.MarkCheckpoint()
	require.NoError(t, b.Add(ctx, rid.New(1, 1)))
	newer := b.MarkCheckpoint()

	assert.ErrorIs(t, b.RollbackChanges(ctx, older), ErrInvalidCheckpoint)
	assert.NoError(t, b.RollbackChanges(ctx, newer))
	assert.Equal(t, 1, b.Size())

	// a new tracking scope invalidates every checkpoint of the previous one
	require.NoError(t, b.EnableTracking(nil))
	assert.ErrorIs(t, b.RollbackChanges(ctx, newer), ErrInvalidCheckpoint)
	assert.Empty(t, b.Timeline())
}

func TestBag_TransactionTimelineWithoutCheckpoint(t *testing.T) {
	ctx := context.TODO()
	b := New(nil, DefaultThresholds())

	require.NoError(t, b.Add(ctx, rid.New(1, 1)))
	assert.Empty(t, b.Timeline())

	require.NoError(t, b.EnableTracking(nil))
	require.NoError(t, b.Add(ctx, rid.New(1, 2)))
	assert.Equal(t, b.Timeline(), b.TransactionTimeline())

	b.DisableTracking()
	require.NoError(t, b.Add(ctx, rid.New(1, 3)))
	assert.Empty(t, b.Timeline())
	assert.False(t, b.IsTracking())
}

func TestBag_OriginalEntries(t *testing.T) {
	for _, tc := range representations() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.TODO()
			a, c := rid.New(2, 1), rid.New(2, 2)
			b := tc.newBag(t)
			require.NoError(t, b.AddAll(ctx, []rid.RID{a, a, c}))

			require.NoError(t, b.EnableTracking(nil))
			_, err := b.Remove(ctx, a)
			require.NoError(t, err)
			require.NoError(t, b.Add(ctx, rid.New(2, 3)))
			b.MarkCheckpoint()
			_, err = b.Remove(ctx, c)
			require.NoError(t, err)

			original, err := b.OriginalEntries(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[rid.RID]int{a: 2, c: 1}, counts(original))

			// the current state is untouched
			assert.Equal(t, map[rid.RID]int{a: 1, rid.New(2, 3): 1}, bagCounts(t, b))
		})
	}
}
