package cache

import (
	"context"

	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
)

// RecordCache keeps committed records for read transactions. A miss returns
// nil without error.
type RecordCache interface {
	// GetRecord gets a record from the cache.
	GetRecord(ctx context.Context, id rid.RID) (*model.Record, error)
	// SetRecord stores a committed record.
	SetRecord(ctx context.Context, record *model.Record) error
	// DeleteRecord drops a record from the cache.
	DeleteRecord(ctx context.Context, id rid.RID) error
}

var (
	_ RecordCache = (*RedisRecordCache)(nil)
	_ RecordCache = Nop{}
)

// Nop caches nothing.
type Nop struct{}

func (Nop) GetRecord(context.Context, rid.RID) (*model.Record, error) {
	return nil, nil
}

func (Nop) SetRecord(context.Context, *model.Record) error {
	return nil
}

func (Nop) DeleteRecord(context.Context, rid.RID) error {
	return nil
}
