package store

import (
	"context"

	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/google/uuid"
)

type Store interface {
	RecordStore
	TreeStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
	Close() error
}

type RecordStore interface {
	// NextPosition reserves the next free position of a cluster.
	NextPosition(ctx context.Context, cluster int32) (int64, error)
	// CreateRecord stores a new record.
	CreateRecord(ctx context.Context, record *model.Record) error
	// GetRecord retrieves a record by rid.
	GetRecord(ctx context.Context, id rid.RID) (*model.Record, error)
	// ListRecords retrieves the records of a class.
	ListRecords(ctx context.Context, class string) ([]*model.Record, error)
	// UpdateRecord replaces the payload of a record.
	UpdateRecord(ctx context.Context, record *model.Record) error
	// DeleteRecord erases a record by rid.
	DeleteRecord(ctx context.Context, id rid.RID) error
}

// TreeStore is the multi value tree used by external link bags. Entries are
// ordered by (primary, seq) inside a tree.
type TreeStore interface {
	// CreateTree allocates an empty tree for the field of an owner record.
	CreateTree(ctx context.Context, owner rid.RID, field string) (*model.LinkTree, error)
	// GetTree retrieves a tree header.
	GetTree(ctx context.Context, id uuid.UUID) (*model.LinkTree, error)
	// ListTrees retrieves all tree headers.
	ListTrees(ctx context.Context) ([]*model.LinkTree, error)
	// DropTree deletes a tree with all of its entries.
	DropTree(ctx context.Context, id uuid.UUID) error
	// RetargetTree moves a tree to a new owner identity.
	RetargetTree(ctx context.Context, id uuid.UUID, owner rid.RID) error
	// InsertEntries adds entries, entries with a zero Seq get the next free one.
	InsertEntries(ctx context.Context, id uuid.UUID, entries []*model.LinkTreeEntry) error
	// FirstEntry retrieves the lowest entry of a primary.
	FirstEntry(ctx context.Context, id uuid.UUID, primary rid.RID) (*model.LinkTreeEntry, error)
	// FindEntries retrieves all entries of a primary in seq order.
	FindEntries(ctx context.Context, id uuid.UUID, primary rid.RID) ([]*model.LinkTreeEntry, error)
	// SeekEntries retrieves up to limit entries strictly after (primary, seq).
	// A nil primary starts from the beginning of the tree.
	SeekEntries(ctx context.Context, id uuid.UUID, primary *rid.RID, seq int64, limit int) ([]*model.LinkTreeEntry, error)
	// DeleteEntry removes a single entry by seq.
	DeleteEntry(ctx context.Context, id uuid.UUID, seq int64) error
	// RekeyEntries rewrites every occurrence of a rid, as primary or secondary.
	RekeyEntries(ctx context.Context, id uuid.UUID, from, to rid.RID) error
	// CountEntries counts the stored entries, used by audits only.
	CountEntries(ctx context.Context, id uuid.UUID) (int64, error)
}
