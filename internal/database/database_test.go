package database

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/emrgen/linkstore/internal/compress"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/queue"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/emrgen/linkstore/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDatabases opens a database per backend with its own index manager.
func testDatabases(t *testing.T, thresholds linkbag.Thresholds) map[string]*Database {
	t.Helper()

	bs, err := store.NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]*Database{
		"gorm":   New(store.NewGormStore(tester.NewTestDB(t)), Options{Thresholds: &thresholds, Compression: compress.NewLZ4()}),
		"badger": New(bs, Options{Thresholds: &thresholds}),
	}
}

func link(i int) rid.RID {
	return rid.New(10, int64(i))
}

func bagEntries(t *testing.T, ctx context.Context, b *linkbag.Bag) []rid.RID {
	t.Helper()

	entries, err := b.Entries(ctx)
	require.NoError(t, err)

	out := make([]rid.RID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Primary)
	}

	return out
}

func TestDatabase_CreateAndLoad(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.DefaultThresholds()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var created *Record
			err := db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				assert.True(t, r.ID().IsTemporary())

				require.NoError(t, r.Set("name", "alice"))
				require.NoError(t, r.Set("age", 31))

				friends, err := r.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.AddAll(ctx, []rid.RID{link(2), link(1), link(2)}))

				created = r
				return nil
			})
			require.NoError(t, err)

			// commit gives the record its final identity
			id := created.ID()
			require.True(t, id.IsPersistent())
			assert.Equal(t, rid.New(1, 0), id)

			err = db.View(ctx, func(tx *Tx) error {
				r, err := tx.Load(ctx, id)
				require.NoError(t, err)
				assert.True(t, r.ID().IsPersistent())
				assert.Equal(t, "Person", r.Class())
				assert.Equal(t, int64(1), r.Version())
				assert.Equal(t, []string{"age", "name"}, r.Fields())

				v, ok := r.Get("name")
				assert.True(t, ok)
				assert.Equal(t, "alice", v)
				v, _ = r.Get("age")
				assert.Equal(t, int64(31), v)

				friends, err := r.Bag("friends")
				require.NoError(t, err)
				assert.Equal(t, 3, friends.Size())
				assert.True(t, friends.IsEmbedded())
				assert.Equal(t, []rid.RID{link(1), link(2), link(2)}, bagEntries(t, ctx, friends))

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDatabase_PromotionFollowsNewOwner(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.Thresholds{EmbeddedToExternal: 3, ExternalToEmbedded: 1}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var created *Record
			err := db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(2, "Group")
				require.NoError(t, err)

				members, err := r.Bag("members")
				require.NoError(t, err)
				for i := 0; i < 5; i++ {
					require.NoError(t, members.Add(ctx, link(i)))
				}
				assert.False(t, members.IsEmbedded())

				created = r
				return nil
			})
			require.NoError(t, err)
			id := created.ID()
			require.True(t, id.IsPersistent())

			// allocated under the temporary identity, retargeted at commit
			trees, err := db.Store().ListTrees(ctx)
			require.NoError(t, err)
			require.Len(t, trees, 1)
			assert.Equal(t, id, trees[0].Owner())
			assert.Equal(t, "members", trees[0].Field)

			err = db.Update(ctx, func(tx *Tx) error {
				r, err := tx.Load(ctx, id)
				require.NoError(t, err)

				members, err := r.Bag("members")
				require.NoError(t, err)
				assert.Equal(t, 5, members.Size())
				for i := 0; i < 4; i++ {
					ok, err := members.Remove(ctx, link(i))
					require.NoError(t, err)
					assert.True(t, ok)
				}
				assert.True(t, members.IsEmbedded())

				return nil
			})
			require.NoError(t, err)

			trees, err = db.Store().ListTrees(ctx)
			require.NoError(t, err)
			assert.Empty(t, trees)
		})
	}
}

func TestDatabase_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds *linkbag.Thresholds
		// embedded after one add, then after removing it
		added, emptied bool
	}{
		{name: "defaults", thresholds: nil, added: true, emptied: true},
		{name: "zero", thresholds: &linkbag.Thresholds{}, added: false, emptied: true},
		{name: "zero without demotion", thresholds: &linkbag.Thresholds{ExternalToEmbedded: -1}, added: false, emptied: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.TODO()
			db := New(store.NewGormStore(tester.NewTestDB(t)), Options{Thresholds: tt.thresholds})

			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)

				require.NoError(t, friends.Add(ctx, link(1)))
				assert.Equal(t, tt.added, friends.IsEmbedded())
				_, err = friends.Remove(ctx, link(1))
				require.NoError(t, err)
				assert.Equal(t, tt.emptied, friends.IsEmbedded())

				return nil
			}))
		})
	}
}

func TestDatabase_ReconcilesTemporaryLinks(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.Thresholds{EmbeddedToExternal: 2, ExternalToEmbedded: -1}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var alice, bob, carol *Record
			err := db.Update(ctx, func(tx *Tx) error {
				var err error
				alice, err = tx.NewRecord(1, "Person")
				require.NoError(t, err)
				bob, err = tx.NewRecord(1, "Person")
				require.NoError(t, err)

				friends, err := alice.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.Add(ctx, bob.ID()))
				require.NoError(t, friends.Add(ctx, link(1)))
				assert.False(t, friends.IsEmbedded())

				require.NoError(t, tx.Checkpoint(ctx))
				assert.True(t, alice.ID().IsPersistent())
				assert.True(t, bob.ID().IsPersistent())
				assert.NotEqual(t, alice.ID(), bob.ID())

				contains, err := friends.Contains(ctx, bob.ID())
				require.NoError(t, err)
				assert.True(t, contains)

				// created after the checkpoint, assigned at commit
				carol, err = tx.NewRecord(1, "Person")
				require.NoError(t, err)
				require.NoError(t, friends.Add(ctx, carol.ID()))

				return nil
			})
			require.NoError(t, err)
			require.True(t, carol.ID().IsPersistent())

			err = db.View(ctx, func(tx *Tx) error {
				r, err := tx.Load(ctx, alice.ID())
				require.NoError(t, err)

				friends, err := r.Bag("friends")
				require.NoError(t, err)
				assert.ElementsMatch(t, []rid.RID{bob.ID(), carol.ID(), link(1)}, bagEntries(t, ctx, friends))

				_, err = tx.Load(ctx, bob.ID())
				assert.NoError(t, err)

				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDatabase_RollbackToCheckpoint(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.Thresholds{EmbeddedToExternal: 4, ExternalToEmbedded: 2}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var id rid.RID
			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.AddAll(ctx, []rid.RID{link(1), link(2), link(2)}))

				require.NoError(t, tx.Checkpoint(ctx))
				id = r.ID()

				return nil
			}))
			require.True(t, id.IsPersistent())

			err := db.Update(ctx, func(tx *Tx) error {
				assert.ErrorIs(t, tx.RollbackToCheckpoint(ctx), linkbag.ErrInvalidCheckpoint)

				r, err := tx.Load(ctx, id)
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)

				require.NoError(t, tx.Checkpoint(ctx))

				// crosses the promotion threshold and back
				require.NoError(t, friends.AddAll(ctx, []rid.RID{link(3), link(4)}))
				assert.False(t, friends.IsEmbedded())
				_, err = friends.Remove(ctx, link(2))
				require.NoError(t, err)

				// bags attached after the checkpoint roll back to empty
				tags, err := r.Bag("tags")
				require.NoError(t, err)
				require.NoError(t, tags.Add(ctx, link(9)))

				require.NoError(t, tx.RollbackToCheckpoint(ctx))
				assert.Equal(t, 3, friends.Size())
				assert.Equal(t, []rid.RID{link(1), link(2), link(2)}, bagEntries(t, ctx, friends))
				assert.Zero(t, tags.Size())

				return nil
			})
			require.NoError(t, err)

			require.NoError(t, db.View(ctx, func(tx *Tx) error {
				r, err := tx.Load(ctx, id)
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)
				assert.Equal(t, []rid.RID{link(1), link(2), link(2)}, bagEntries(t, ctx, friends))

				return nil
			}))
		})
	}
}

func TestDatabase_DeleteReleasesTrees(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.Thresholds{EmbeddedToExternal: 2, ExternalToEmbedded: -1}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var id rid.RID
			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.AddAll(ctx, []rid.RID{link(1), link(2), link(3)}))

				require.NoError(t, tx.Checkpoint(ctx))
				id = r.ID()

				return nil
			}))
			require.True(t, id.IsPersistent())

			trees, err := db.Store().ListTrees(ctx)
			require.NoError(t, err)
			require.Len(t, trees, 1)

			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.Load(ctx, id)
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)

				require.NoError(t, tx.Delete(ctx, id))

				// the tree is gone before the commit
				_, err = tx.store.GetTree(ctx, uuid.MustParse(trees[0].ID))
				assert.ErrorIs(t, err, store.ErrTreeNotFound)

				_, err = friends.Contains(ctx, link(1))
				assert.ErrorIs(t, err, linkbag.ErrBagReleased)
				assert.ErrorIs(t, r.Set("name", "x"), ErrRecordDeleted)

				_, err = tx.Load(ctx, id)
				assert.ErrorIs(t, err, store.ErrRecordNotFound)

				return nil
			}))

			trees, err = db.Store().ListTrees(ctx)
			require.NoError(t, err)
			assert.Empty(t, trees)

			_, err = db.Store().GetRecord(ctx, id)
			assert.ErrorIs(t, err, store.ErrRecordNotFound)
		})
	}
}

func TestDatabase_OwnerHandleGoesStale(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.DefaultThresholds()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var (
				friends *linkbag.Bag
				closed  *Tx
			)
			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err = r.Bag("friends")
				require.NoError(t, err)
				closed = tx

				return friends.Add(ctx, link(1))
			}))

			assert.ErrorIs(t, friends.Add(ctx, link(2)), linkbag.ErrOwnerDetached)
			_, err := friends.Remove(ctx, link(1))
			assert.ErrorIs(t, err, linkbag.ErrOwnerDetached)

			_, err = closed.NewRecord(1, "Person")
			assert.ErrorIs(t, err, ErrTxClosed)
		})
	}
}

func TestDatabase_OwnerConflict(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.DefaultThresholds()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				a, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				b, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)

				friends, err := a.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.Add(ctx, link(2)))
				assert.ErrorIs(t, b.SetBag(ctx, "friends", friends), linkbag.ErrOwnerConflict)

				// one bag never backs two fields
				assert.ErrorIs(t, a.SetBag(ctx, "colleagues", friends), ErrBagInUse)
				assert.Equal(t, []string{"friends"}, a.BagFields())
				assert.Equal(t, "friends", friends.Field())
				assert.Len(t, friends.Timeline(), 1)
				require.NoError(t, a.SetBag(ctx, "friends", friends))

				fresh := tx.NewBag()
				require.NoError(t, fresh.Add(ctx, link(1)))
				require.NoError(t, b.SetBag(ctx, "friends", fresh))
				assert.Equal(t, []string{"friends"}, b.BagFields())
				assert.ErrorIs(t, b.Set("friends", "x"), ErrFieldIsBag)

				return nil
			}))
		})
	}
}

func TestDatabase_FailedUpdateLeavesNothing(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.Thresholds{EmbeddedToExternal: 1, ExternalToEmbedded: -1}) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			err := db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)
				require.NoError(t, friends.Add(ctx, link(1)))
				require.NoError(t, tx.Checkpoint(ctx))

				return assert.AnError
			})
			assert.ErrorIs(t, err, assert.AnError)

			records, err := db.Store().ListRecords(ctx, "Person")
			require.NoError(t, err)
			assert.Empty(t, records)

			trees, err := db.Store().ListTrees(ctx)
			require.NoError(t, err)
			assert.Empty(t, trees)
		})
	}
}

func TestDatabase_ViewIsReadOnly(t *testing.T) {
	for name, db := range testDatabases(t, linkbag.DefaultThresholds()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.TODO()

			var created *Record
			require.NoError(t, db.Update(ctx, func(tx *Tx) error {
				r, err := tx.NewRecord(1, "Person")
				require.NoError(t, err)
				friends, err := r.Bag("friends")
				require.NoError(t, err)
				created = r

				return friends.Add(ctx, link(1))
			}))
			id := created.ID()

			err := db.View(ctx, func(tx *Tx) error {
				_, err := tx.NewRecord(1, "Person")
				assert.ErrorIs(t, err, ErrReadOnly)

				r, err := tx.Load(ctx, id)
				require.NoError(t, err)
				assert.ErrorIs(t, r.Set("name", "x"), ErrReadOnly)
				assert.ErrorIs(t, tx.Delete(ctx, id), ErrReadOnly)

				friends, err := r.Bag("friends")
				require.NoError(t, err)

				// refused before the bag changes, every time
				for i := 0; i < 2; i++ {
					assert.ErrorIs(t, friends.Add(ctx, link(2)), ErrReadOnly)
					ok, err := friends.Remove(ctx, link(1))
					assert.ErrorIs(t, err, ErrReadOnly)
					assert.False(t, ok)
				}

				assert.Equal(t, 1, friends.Size())
				assert.Equal(t, []rid.RID{link(1)}, bagEntries(t, ctx, friends))
				assert.Empty(t, friends.Timeline())
				assert.False(t, r.IsDirty())

				// reads still work
				it := friends.Iterator()
				require.True(t, it.Next(ctx))
				assert.Equal(t, link(1), it.Entry().Primary)
				assert.ErrorIs(t, it.Remove(ctx), ErrReadOnly)

				return nil
			})
			require.NoError(t, err)

			err = db.View(ctx, func(tx *Tx) error {
				return assert.AnError
			})
			assert.ErrorIs(t, err, assert.AnError)
		})
	}
}

func TestDatabase_UnsupportedValue(t *testing.T) {
	db := New(store.NewGormStore(tester.NewTestDB(t)), Options{})

	err := db.Update(context.TODO(), func(tx *Tx) error {
		_, err := tx.NewRecord(-1, "Person")
		assert.ErrorIs(t, err, ErrInvalidCluster)

		r, err := tx.NewRecord(1, "Person")
		require.NoError(t, err)
		assert.ErrorIs(t, r.Set("tags", []string{"a"}), ErrUnsupportedValue)
		assert.ErrorIs(t, r.Set("", "a"), ErrInvalidField)

		assert.ErrorIs(t, r.Set("count", uint64(math.MaxUint64)), ErrUnsupportedValue)
		_, ok := r.Get("count")
		assert.False(t, ok)
		require.NoError(t, r.Set("count", uint64(math.MaxInt64)))
		v, _ := r.Get("count")
		assert.Equal(t, int64(math.MaxInt64), v)

		return errors.New("discard")
	})
	assert.EqualError(t, err, "discard")
}

// memCache is a map backed record cache.
type memCache struct {
	records map[rid.RID]*model.Record
	hits    int
}

func (c *memCache) GetRecord(_ context.Context, id rid.RID) (*model.Record, error) {
	r, ok := c.records[id]
	if ok {
		c.hits++
	}
	return r, nil
}

func (c *memCache) SetRecord(_ context.Context, record *model.Record) error {
	c.records[record.RID()] = record
	return nil
}

func (c *memCache) DeleteRecord(_ context.Context, id rid.RID) error {
	delete(c.records, id)
	return nil
}

func TestDatabase_CacheAndQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc := &memCache{records: make(map[rid.RID]*model.Record)}
	q := queue.NewChannelQueue(64)
	changes, err := q.Subscribe(ctx)
	require.NoError(t, err)

	db := New(store.NewGormStore(tester.NewTestDB(t)), Options{Cache: mc, Queue: q})
	require.NoError(t, db.DefineIndex(ctx, index.Definition{Name: "person_friends", Class: "Person", Fields: []string{"friends"}}))

	var created *Record
	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		r, err := tx.NewRecord(1, "Person")
		require.NoError(t, err)
		friends, err := r.Bag("friends")
		require.NoError(t, err)
		created = r

		return friends.AddAll(ctx, []rid.RID{link(1), link(1)})
	}))
	id := created.ID()
	require.True(t, id.IsPersistent())

	assert.Contains(t, mc.records, id)
	assert.Equal(t, index.Change{Index: "person_friends", Key: link(1).String(), Record: id, Op: index.OpPut}, <-changes)

	require.NoError(t, db.View(ctx, func(tx *Tx) error {
		_, err := tx.Load(ctx, id)
		return err
	}))
	assert.Equal(t, 1, mc.hits)

	require.NoError(t, db.Update(ctx, func(tx *Tx) error {
		return tx.Delete(ctx, id)
	}))
	assert.NotContains(t, mc.records, id)
	assert.Equal(t, index.Change{Index: "person_friends", Key: link(1).String(), Record: id, Op: index.OpDelete}, <-changes)
}
