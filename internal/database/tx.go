package database

import (
	"bytes"
	"context"
	"sort"

	"github.com/emrgen/linkstore/internal/compress"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// payload is the stored form of a record.
type payload struct {
	Fields map[string]any             `msgpack:"fields,omitempty"`
	Bags   map[string]linkbag.Encoded `msgpack:"bags,omitempty"`
}

// Tx is a single goroutine transaction. It keeps every record it touched in
// a slot table, handles given to link bags point into that table.
type Tx struct {
	db       *Database
	store    store.Store
	writable bool
	closed   bool

	records  []*Record
	byID     map[rid.RID]*Record
	nextTemp int64

	checkpointed bool
	checkpoints  map[*linkbag.Bag]linkbag.Checkpoint
}

func newTx(db *Database, st store.Store, writable bool) *Tx {
	return &Tx{
		db:          db,
		store:       st,
		writable:    writable,
		byID:        make(map[rid.RID]*Record),
		nextTemp:    -1,
		checkpoints: make(map[*linkbag.Bag]linkbag.Checkpoint),
	}
}

func (tx *Tx) close() {
	tx.closed = true
}

func (tx *Tx) checkOpen() error {
	if tx.closed {
		return ErrTxClosed
	}

	return nil
}

func (tx *Tx) checkWritable() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrReadOnly
	}

	return nil
}

// NewBag creates an empty bag backed by the store of the transaction.
func (tx *Tx) NewBag() *linkbag.Bag {
	return linkbag.New(tx.store, tx.db.thresholds)
}

// NewRecord creates a record with a temporary identity. The final position is
// assigned by Checkpoint or at commit.
func (tx *Tx) NewRecord(cluster int32, class string) (*Record, error) {
	if err := tx.checkWritable(); err != nil {
		return nil, err
	}
	if cluster < 0 {
		return nil, ErrInvalidCluster
	}

	r := tx.track(rid.New(cluster, tx.nextTemp), class)
	tx.nextTemp--
	r.created = true
	r.dirty = true

	return r, nil
}

func (tx *Tx) track(id rid.RID, class string) *Record {
	r := &Record{
		tx:     tx,
		id:     id,
		class:  class,
		fields: make(map[string]any),
		bags:   make(map[string]*linkbag.Bag),
	}
	r.handle = &ownerHandle{tx: tx, slot: len(tx.records)}
	tx.records = append(tx.records, r)
	tx.byID[id] = r

	return r
}

// Load returns the live record of id, reading it from the store on first use.
func (tx *Tx) Load(ctx context.Context, id rid.RID) (*Record, error) {
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}

	if r, ok := tx.byID[id]; ok {
		return r, nil
	}

	var m *model.Record
	if !tx.writable {
		cached, err := tx.db.opts.Cache.GetRecord(ctx, id)
		if err != nil {
			logrus.Warnf("failed to read record %s from cache: %v", id, err)
		}
		m = cached
	}

	if m == nil {
		stored, err := tx.store.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		m = stored

		if !tx.writable {
			if err := tx.db.opts.Cache.SetRecord(ctx, m); err != nil {
				logrus.Warnf("failed to cache record %s: %v", id, err)
			}
		}
	}

	return tx.decode(ctx, m)
}

func (tx *Tx) decode(ctx context.Context, m *model.Record) (*Record, error) {
	codec, err := compress.ByName(m.Compression)
	if err != nil {
		return nil, err
	}
	data, err := codec.Decode(m.Payload)
	if err != nil {
		return nil, err
	}

	var p payload
	if len(data) > 0 {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
	}

	r := tx.track(m.RID(), m.Class)
	r.version = m.Version
	r.loadedFields = make(map[string]any, len(p.Fields))
	for field, value := range p.Fields {
		v, err := normalize(value)
		if err != nil {
			return nil, err
		}
		r.fields[field] = v
		r.loadedFields[field] = v
	}

	r.loadedBags = make(map[string]*linkbag.Bag, len(p.Bags))
	for field, enc := range p.Bags {
		b, err := linkbag.Decode(enc, tx.store, tx.db.thresholds)
		if err != nil {
			return nil, err
		}
		if err := tx.attach(r, field, b); err != nil {
			return nil, err
		}
		r.loadedBags[field] = b
	}

	return r, nil
}

// attach binds a bag to a record field and starts tracking it.
func (tx *Tx) attach(r *Record, field string, b *linkbag.Bag) error {
	if err := b.Attach(r.handle, field); err != nil {
		return err
	}
	if err := b.EnableTracking(r.handle); err != nil {
		return err
	}
	if tx.checkpointed {
		tx.checkpoints[b] = b.MarkCheckpoint()
	}
	r.bags[field] = b

	return nil
}

// Delete removes a record and releases the trees of its bags right away.
func (tx *Tx) Delete(ctx context.Context, id rid.RID) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	r, err := tx.Load(ctx, id)
	if err != nil {
		return err
	}

	for _, field := range r.BagFields() {
		if err := r.release(ctx, field); err != nil {
			return err
		}
	}

	if !r.created {
		if err := tx.store.DeleteRecord(ctx, id); err != nil {
			return err
		}
	}
	r.deleted = true
	delete(tx.byID, id)

	return nil
}

// Checkpoint gives every new record its final identity, rewrites the links
// to them and starts the rollback scope of every live bag.
func (tx *Tx) Checkpoint(ctx context.Context) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	if err := tx.assignIdentities(ctx); err != nil {
		return err
	}

	for _, r := range tx.live() {
		for _, field := range r.BagFields() {
			b := r.bags[field]
			tx.checkpoints[b] = b.MarkCheckpoint()
		}
	}
	tx.checkpointed = true

	return nil
}

// RollbackToCheckpoint restores every bag to its state at the last
// Checkpoint. Scalar fields and deletions are not rolled back.
func (tx *Tx) RollbackToCheckpoint(ctx context.Context) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if !tx.checkpointed {
		return linkbag.ErrInvalidCheckpoint
	}

	for _, r := range tx.live() {
		for _, field := range r.BagFields() {
			b := r.bags[field]
			cp, ok := tx.checkpoints[b]
			if !ok {
				continue
			}
			if err := b.RollbackChanges(ctx, cp); err != nil {
				return err
			}
		}
	}

	return nil
}

func (tx *Tx) live() []*Record {
	live := make([]*Record, 0, len(tx.records))
	for _, r := range tx.records {
		if !r.deleted {
			live = append(live, r)
		}
	}

	return live
}

func (tx *Tx) assignIdentities(ctx context.Context) error {
	mapping := make(map[rid.RID]rid.RID)
	for _, r := range tx.live() {
		if !r.id.IsTemporary() {
			continue
		}

		position, err := tx.store.NextPosition(ctx, r.id.Cluster)
		if err != nil {
			return err
		}

		final := rid.New(r.id.Cluster, position)
		mapping[r.id] = final
		delete(tx.byID, r.id)
		tx.byID[final] = r
		r.id = final
	}

	if len(mapping) == 0 {
		return nil
	}

	for _, r := range tx.live() {
		for _, field := range r.BagFields() {
			if err := r.bags[field].ReconcileIdentities(ctx, mapping); err != nil {
				return err
			}
		}
	}

	logrus.Debugf("assigned %d record identities", len(mapping))

	return nil
}

func (tx *Tx) commit(ctx context.Context) (*commitResult, error) {
	if err := tx.assignIdentities(ctx); err != nil {
		return nil, err
	}

	res := &commitResult{}
	for _, r := range tx.records {
		if r.deleted {
			if r.created {
				continue
			}

			changes, err := tx.indexChanges(ctx, r)
			if err != nil {
				return nil, err
			}
			res.changes = append(res.changes, changes...)
			res.deleted = append(res.deleted, r.id)
			continue
		}

		if !r.dirty {
			continue
		}

		m, err := tx.save(ctx, r)
		if err != nil {
			return nil, err
		}
		res.saved = append(res.saved, m)

		changes, err := tx.indexChanges(ctx, r)
		if err != nil {
			return nil, err
		}
		res.changes = append(res.changes, changes...)
	}

	return res, nil
}

func (tx *Tx) save(ctx context.Context, r *Record) (*model.Record, error) {
	p := payload{Fields: r.fields, Bags: make(map[string]linkbag.Encoded, len(r.bags))}
	for field, b := range r.bags {
		enc, err := b.Encode(ctx)
		if err != nil {
			return nil, err
		}
		p.Bags[field] = enc
	}

	data, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, err
	}

	codec := tx.db.opts.Compression
	data, err = codec.Encode(data)
	if err != nil {
		return nil, err
	}

	m := &model.Record{
		Cluster:     r.id.Cluster,
		Position:    r.id.Position,
		Class:       r.class,
		Version:     r.version + 1,
		Payload:     data,
		Compression: codec.Name(),
	}

	if r.created {
		err = tx.store.CreateRecord(ctx, m)
	} else {
		err = tx.store.UpdateRecord(ctx, m)
	}
	if err != nil {
		return nil, err
	}

	r.version = m.Version
	r.dirty = false
	for _, b := range r.bags {
		b.TransactionClear()
	}

	return m, nil
}

// indexChanges diffs the indexed values of a record as loaded against its
// values now, a deleted record has no values now.
func (tx *Tx) indexChanges(ctx context.Context, r *Record) ([]index.Change, error) {
	var changes []index.Change
	for _, def := range tx.db.opts.Indexes.Definitions(r.class) {
		before, err := r.components(ctx, def, r.beforeValues)
		if err != nil {
			return nil, err
		}

		var after index.Components
		if !r.deleted {
			after, err = r.components(ctx, def, r.currentValues)
			if err != nil {
				return nil, err
			}
		}

		changes = append(changes, index.Diff(def, r.id, before, after)...)
	}

	return changes, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
