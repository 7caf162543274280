// Package database runs record transactions on top of a store. A transaction
// owns the live records it loaded or created, their link bags see them
// through non-owning handles.
package database

import (
	"context"
	"errors"
	"sync"

	"github.com/emrgen/linkstore/internal/cache"
	"github.com/emrgen/linkstore/internal/compress"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/queue"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/sirupsen/logrus"
)

// errViewDone ends the store transaction of a View without committing it.
var errViewDone = errors.New("view done")

type Options struct {
	// Thresholds of every bag, nil selects linkbag.DefaultThresholds.
	Thresholds *linkbag.Thresholds
	// Compression encodes new payloads, stored payloads name their own codec.
	Compression compress.Compress
	Indexes     *index.Manager
	Cache       cache.RecordCache
	// Queue receives the index changes of every commit, nil disables publishing.
	Queue queue.IndexQueue
}

type Database struct {
	store      store.Store
	opts       Options
	thresholds linkbag.Thresholds
	// mu serializes write transactions
	mu sync.Mutex
}

func New(s store.Store, opts Options) *Database {
	thresholds := linkbag.DefaultThresholds()
	if opts.Thresholds != nil {
		thresholds = *opts.Thresholds
	}
	if opts.Compression == nil {
		opts.Compression = compress.NewNop()
	}
	if opts.Indexes == nil {
		opts.Indexes = index.NewManager()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}

	return &Database{store: s, opts: opts, thresholds: thresholds}
}

func (d *Database) Store() store.Store {
	return d.store
}

func (d *Database) Indexes() *index.Manager {
	return d.opts.Indexes
}

// commitResult is what a committed transaction hands to the index, the queue
// and the cache once the store transaction is durable.
type commitResult struct {
	changes []index.Change
	saved   []*model.Record
	deleted []rid.RID
}

// Update runs fn in a write transaction and commits every dirty record when
// fn returns nil. Any error rolls the store back.
func (d *Database) Update(ctx context.Context, fn func(tx *Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result *commitResult
	err := d.store.Transaction(ctx, func(st store.Store) error {
		tx := newTx(d, st, true)
		defer tx.close()

		if err := fn(tx); err != nil {
			return err
		}

		res, err := tx.commit(ctx)
		if err != nil {
			return err
		}
		result = res

		return nil
	})
	if err != nil {
		return err
	}

	d.publish(ctx, result)

	return nil
}

// View runs fn in a read transaction. Records come from the cache when it
// has them, anything fn changes in the store is discarded.
func (d *Database) View(ctx context.Context, fn func(tx *Tx) error) error {
	err := d.view(ctx, fn)
	if errors.Is(err, errViewDone) {
		return nil
	}

	return err
}

func (d *Database) view(ctx context.Context, fn func(tx *Tx) error) error {
	return d.store.Transaction(ctx, func(st store.Store) error {
		tx := newTx(d, st, false)
		defer tx.close()

		if err := fn(tx); err != nil {
			return err
		}

		return errViewDone
	})
}

// publish hands a durable commit to the index, the queue and the cache.
// Failures are logged, the commit stands.
func (d *Database) publish(ctx context.Context, res *commitResult) {
	d.opts.Indexes.Apply(res.changes)

	if d.opts.Queue != nil && len(res.changes) > 0 {
		if err := d.opts.Queue.Publish(ctx, res.changes); err != nil {
			logrus.Errorf("failed to publish %d index changes: %v", len(res.changes), err)
		}
	}

	for _, record := range res.saved {
		if err := d.opts.Cache.SetRecord(ctx, record); err != nil {
			logrus.Warnf("failed to cache record %s: %v", record.RID(), err)
		}
	}
	for _, id := range res.deleted {
		if err := d.opts.Cache.DeleteRecord(ctx, id); err != nil {
			logrus.Warnf("failed to evict record %s: %v", id, err)
		}
	}

	logrus.Debugf("committed %d records, deleted %d, %d index changes", len(res.saved), len(res.deleted), len(res.changes))
}

// DefineIndex adds an index and fills it from the stored records of its class.
func (d *Database) DefineIndex(ctx context.Context, def index.Definition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.opts.Indexes.Define(def); err != nil {
		return err
	}

	var changes []index.Change
	err := d.view(ctx, func(tx *Tx) error {
		records, err := tx.store.ListRecords(ctx, def.Class)
		if err != nil {
			return err
		}

		for _, m := range records {
			r, err := tx.decode(ctx, m)
			if err != nil {
				return err
			}

			after, err := r.components(ctx, def, r.currentValues)
			if err != nil {
				return err
			}
			changes = append(changes, index.Diff(def, r.id, nil, after)...)
		}

		return nil
	})
	if err != nil && !errors.Is(err, errViewDone) {
		return err
	}

	d.opts.Indexes.Apply(changes)
	logrus.Infof("index %s filled with %d keys", def.Name, d.opts.Indexes.Size(def.Name))

	return nil
}
