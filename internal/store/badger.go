package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// Key prefixes of the badger layout.
const (
	prefixRecord     byte = 'r' // r + cluster + position -> record
	prefixClass      byte = 'k' // k + class + 0x00 + cluster + position -> nil
	prefixCounter    byte = 'c' // c + cluster -> next position
	prefixTree       byte = 't' // t + tree id -> tree header
	prefixEntry      byte = 'e' // e + tree id + primary + seq -> entry
	prefixEntryBySeq byte = 's' // s + tree id + seq -> entry key
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore keeps records and link trees in an ordered key value store.
// Entry keys sort by (tree, primary, seq) so seeking a tree is a prefix scan.
type BadgerStore struct {
	db  *badger.DB
	txn *badger.Txn
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens a store that lives as long as the process.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

// sortable encodings flip the sign bit so negative values sort first.
func appendInt32(key []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(key, uint32(v)^(1<<31))
}

func appendInt64(key []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(key, uint64(v)^(1<<63))
}

func appendRID(key []byte, id rid.RID) []byte {
	return appendInt64(appendInt32(key, id.Cluster), id.Position)
}

func recordKey(id rid.RID) []byte {
	return appendRID([]byte{prefixRecord}, id)
}

func classKey(class string, id rid.RID) []byte {
	key := make([]byte, 0, 1+len(class)+1+12)
	key = append(key, prefixClass)
	key = append(key, class...)
	key = append(key, 0x00)
	return appendRID(key, id)
}

func classPrefix(class string) []byte {
	key := make([]byte, 0, 1+len(class)+1)
	key = append(key, prefixClass)
	key = append(key, class...)
	return append(key, 0x00)
}

func counterKey(cluster int32) []byte {
	return appendInt32([]byte{prefixCounter}, cluster)
}

func treeKey(id uuid.UUID) []byte {
	return append([]byte{prefixTree}, id[:]...)
}

func entryPrefix(id uuid.UUID) []byte {
	return append([]byte{prefixEntry}, id[:]...)
}

func entryKey(id uuid.UUID, primary rid.RID, seq int64) []byte {
	return appendInt64(appendRID(entryPrefix(id), primary), seq)
}

func entryPrimaryPrefix(id uuid.UUID, primary rid.RID) []byte {
	return appendRID(entryPrefix(id), primary)
}

func seqKey(id uuid.UUID, seq int64) []byte {
	return appendInt64(append([]byte{prefixEntryBySeq}, id[:]...), seq)
}

func seqPrefix(id uuid.UUID) []byte {
	return append([]byte{prefixEntryBySeq}, id[:]...)
}

// update runs f in the open transaction or in a fresh read write one.
func (b *BadgerStore) update(f func(txn *badger.Txn) error) error {
	if b.txn != nil {
		return f(b.txn)
	}

	return b.db.Update(f)
}

func (b *BadgerStore) view(f func(txn *badger.Txn) error) error {
	if b.txn != nil {
		return f(b.txn)
	}

	return b.db.View(f)
}

func getValue(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, v)
	})
}

func setValue(txn *badger.Txn, key []byte, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}

	return txn.Set(key, data)
}

// scan visits the values under prefix starting at from, stopping when f returns false.
func scan(txn *badger.Txn, prefix, from []byte, f func(key, val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(from); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		more, err := f(item.KeyCopy(nil), val)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}

	return nil
}

func (b *BadgerStore) NextPosition(ctx context.Context, cluster int32) (int64, error) {
	var next int64
	err := b.update(func(txn *badger.Txn) error {
		err := getValue(txn, counterKey(cluster), &next)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return setValue(txn, counterKey(cluster), next+1)
	})

	return next, err
}

func (b *BadgerStore) CreateRecord(ctx context.Context, record *model.Record) error {
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	return b.update(func(txn *badger.Txn) error {
		key := recordKey(record.RID())
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("record %s already exists", record.RID())
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setValue(txn, key, record); err != nil {
			return err
		}

		return txn.Set(classKey(record.Class, record.RID()), []byte{})
	})
}

func (b *BadgerStore) GetRecord(ctx context.Context, id rid.RID) (*model.Record, error) {
	var record model.Record
	err := b.view(func(txn *badger.Txn) error {
		return getValue(txn, recordKey(id), &record)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (b *BadgerStore) ListRecords(ctx context.Context, class string) ([]*model.Record, error) {
	var ids []rid.RID
	err := b.view(func(txn *badger.Txn) error {
		prefix := classPrefix(class)
		return scan(txn, prefix, prefix, func(key, _ []byte) (bool, error) {
			ids = append(ids, decodeRID(key[len(prefix):]))
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}

	records := make([]*model.Record, 0, len(ids))
	for _, id := range ids {
		record, err := b.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (b *BadgerStore) UpdateRecord(ctx context.Context, record *model.Record) error {
	return b.update(func(txn *badger.Txn) error {
		var stored model.Record
		err := getValue(txn, recordKey(record.RID()), &stored)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		if stored.Class != record.Class {
			if err := txn.Delete(classKey(stored.Class, stored.RID())); err != nil {
				return err
			}
			if err := txn.Set(classKey(record.Class, record.RID()), []byte{}); err != nil {
				return err
			}
		}

		stored.Class = record.Class
		stored.Version = record.Version
		stored.Payload = record.Payload
		stored.Compression = record.Compression
		stored.UpdatedAt = time.Now()

		return setValue(txn, recordKey(record.RID()), &stored)
	})
}

func (b *BadgerStore) DeleteRecord(ctx context.Context, id rid.RID) error {
	return b.update(func(txn *badger.Txn) error {
		var stored model.Record
		err := getValue(txn, recordKey(id), &stored)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(classKey(stored.Class, id)); err != nil {
			return err
		}

		return txn.Delete(recordKey(id))
	})
}

func (b *BadgerStore) CreateTree(ctx context.Context, owner rid.RID, field string) (*model.LinkTree, error) {
	id := uuid.New()
	now := time.Now()
	tree := &model.LinkTree{
		ID:            id.String(),
		OwnerCluster:  owner.Cluster,
		OwnerPosition: owner.Position,
		Field:         field,
		NextSeq:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := b.update(func(txn *badger.Txn) error {
		return setValue(txn, treeKey(id), tree)
	})
	if err != nil {
		return nil, err
	}

	logrus.Debugf("allocated link tree %s for %s.%s", tree.ID, owner, field)

	return tree, nil
}

func (b *BadgerStore) getTree(txn *badger.Txn, id uuid.UUID) (*model.LinkTree, error) {
	var tree model.LinkTree
	err := getValue(txn, treeKey(id), &tree)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrTreeNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tree, nil
}

func (b *BadgerStore) GetTree(ctx context.Context, id uuid.UUID) (*model.LinkTree, error) {
	var tree *model.LinkTree
	err := b.view(func(txn *badger.Txn) error {
		var err error
		tree, err = b.getTree(txn, id)
		return err
	})

	return tree, err
}

func (b *BadgerStore) ListTrees(ctx context.Context) ([]*model.LinkTree, error) {
	var trees []*model.LinkTree
	err := b.view(func(txn *badger.Txn) error {
		prefix := []byte{prefixTree}
		return scan(txn, prefix, prefix, func(_, val []byte) (bool, error) {
			var tree model.LinkTree
			if err := msgpack.Unmarshal(val, &tree); err != nil {
				return false, err
			}
			trees = append(trees, &tree)
			return true, nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(trees, func(i, j int) bool {
		return trees[i].CreatedAt.Before(trees[j].CreatedAt)
	})

	return trees, nil
}

// DropTree deletes the entries before the header so no entry outlives its tree.
func (b *BadgerStore) DropTree(ctx context.Context, id uuid.UUID) error {
	return b.update(func(txn *badger.Txn) error {
		if _, err := b.getTree(txn, id); err != nil {
			return err
		}

		var keys [][]byte
		for _, prefix := range [][]byte{entryPrefix(id), seqPrefix(id)} {
			err := scan(txn, prefix, prefix, func(key, _ []byte) (bool, error) {
				keys = append(keys, key)
				return true, nil
			})
			if err != nil {
				return err
			}
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		if err := txn.Delete(treeKey(id)); err != nil {
			return err
		}

		logrus.Debugf("released link tree %s", id)

		return nil
	})
}

func (b *BadgerStore) RetargetTree(ctx context.Context, id uuid.UUID, owner rid.RID) error {
	return b.update(func(txn *badger.Txn) error {
		tree, err := b.getTree(txn, id)
		if err != nil {
			return err
		}

		tree.OwnerCluster = owner.Cluster
		tree.OwnerPosition = owner.Position
		tree.UpdatedAt = time.Now()

		return setValue(txn, treeKey(id), tree)
	})
}

func putEntry(txn *badger.Txn, id uuid.UUID, entry *model.LinkTreeEntry) error {
	key := entryKey(id, entry.Primary(), entry.Seq)
	if err := setValue(txn, key, entry); err != nil {
		return err
	}

	return txn.Set(seqKey(id, entry.Seq), key)
}

func (b *BadgerStore) InsertEntries(ctx context.Context, id uuid.UUID, entries []*model.LinkTreeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return b.update(func(txn *badger.Txn) error {
		tree, err := b.getTree(txn, id)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			entry.TreeID = tree.ID
			if entry.Seq == 0 {
				entry.Seq = tree.NextSeq
			}
			if entry.Seq >= tree.NextSeq {
				tree.NextSeq = entry.Seq + 1
			}

			if err := putEntry(txn, id, entry); err != nil {
				return err
			}
		}

		tree.EntryCount += int64(len(entries))
		tree.UpdatedAt = time.Now()

		return setValue(txn, treeKey(id), tree)
	})
}

func decodeRID(key []byte) rid.RID {
	cluster := int32(binary.BigEndian.Uint32(key[0:4]) ^ (1 << 31))
	position := int64(binary.BigEndian.Uint64(key[4:12]) ^ (1 << 63))
	return rid.New(cluster, position)
}

func decodeEntry(val []byte) (*model.LinkTreeEntry, error) {
	var entry model.LinkTreeEntry
	if err := msgpack.Unmarshal(val, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (b *BadgerStore) FirstEntry(ctx context.Context, id uuid.UUID, primary rid.RID) (*model.LinkTreeEntry, error) {
	entries, err := b.findEntries(id, primary, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEntryNotFound
	}

	return entries[0], nil
}

func (b *BadgerStore) FindEntries(ctx context.Context, id uuid.UUID, primary rid.RID) ([]*model.LinkTreeEntry, error) {
	return b.findEntries(id, primary, 0)
}

func (b *BadgerStore) findEntries(id uuid.UUID, primary rid.RID, limit int) ([]*model.LinkTreeEntry, error) {
	var entries []*model.LinkTreeEntry
	err := b.view(func(txn *badger.Txn) error {
		prefix := entryPrimaryPrefix(id, primary)
		return scan(txn, prefix, prefix, func(_, val []byte) (bool, error) {
			entry, err := decodeEntry(val)
			if err != nil {
				return false, err
			}
			entries = append(entries, entry)
			return limit == 0 || len(entries) < limit, nil
		})
	})

	return entries, err
}

func (b *BadgerStore) SeekEntries(ctx context.Context, id uuid.UUID, primary *rid.RID, seq int64, limit int) ([]*model.LinkTreeEntry, error) {
	prefix := entryPrefix(id)
	from := prefix
	if primary != nil {
		from = entryKey(id, *primary, seq)
	}

	var entries []*model.LinkTreeEntry
	err := b.view(func(txn *badger.Txn) error {
		return scan(txn, prefix, from, func(key, val []byte) (bool, error) {
			if primary != nil && bytes.Equal(key, from) {
				return true, nil
			}

			entry, err := decodeEntry(val)
			if err != nil {
				return false, err
			}
			entries = append(entries, entry)
			return len(entries) < limit, nil
		})
	})

	return entries, err
}

func (b *BadgerStore) DeleteEntry(ctx context.Context, id uuid.UUID, seq int64) error {
	return b.update(func(txn *badger.Txn) error {
		tree, err := b.getTree(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(seqKey(id, seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}

		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := txn.Delete(key); err != nil {
			return err
		}
		if err := txn.Delete(seqKey(id, seq)); err != nil {
			return err
		}

		tree.EntryCount--
		tree.UpdatedAt = time.Now()

		return setValue(txn, treeKey(id), tree)
	})
}

func (b *BadgerStore) RekeyEntries(ctx context.Context, id uuid.UUID, from, to rid.RID) error {
	return b.update(func(txn *badger.Txn) error {
		var stale [][]byte
		var rewritten []*model.LinkTreeEntry

		prefix := entryPrefix(id)
		err := scan(txn, prefix, prefix, func(key, val []byte) (bool, error) {
			entry, err := decodeEntry(val)
			if err != nil {
				return false, err
			}

			changed := false
			if entry.Primary() == from {
				entry.PrimaryCluster, entry.PrimaryPosition = to.Cluster, to.Position
				changed = true
			}
			if entry.Secondary() == from {
				entry.SecondaryCluster, entry.SecondaryPosition = to.Cluster, to.Position
				changed = true
			}
			if changed {
				stale = append(stale, key)
				rewritten = append(rewritten, entry)
			}

			return true, nil
		})
		if err != nil {
			return err
		}

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for _, entry := range rewritten {
			if err := putEntry(txn, id, entry); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *BadgerStore) CountEntries(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := b.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := entryPrefix(id)
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			count++
		}

		return nil
	})

	return count, err
}

// Migrate is a no-op, the key layout needs no schema.
func (b *BadgerStore) Migrate() error {
	return nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// Transaction runs f inside a read write transaction. Badger has no savepoints,
// so a nested call joins the outer transaction.
func (b *BadgerStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	if b.txn != nil {
		return f(b)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := f(&BadgerStore{db: b.db, txn: txn}); err != nil {
		return err
	}

	return txn.Commit()
}
