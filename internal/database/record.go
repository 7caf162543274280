package database

import (
	"context"
	"fmt"
	"math"

	"github.com/emrgen/linkstore/internal/index"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/rid"
)

// Record is a live record of a transaction. Scalar fields hold strings,
// int64, float64 or bool values, link fields hold bags.
type Record struct {
	tx      *Tx
	handle  *ownerHandle
	id      rid.RID
	class   string
	version int64

	fields map[string]any
	bags   map[string]*linkbag.Bag

	created bool
	dirty   bool
	deleted bool

	// values as loaded, used to diff index keys on commit
	loadedFields map[string]any
	loadedBags   map[string]*linkbag.Bag
	beforeBags   map[string][]string
}

// ID is temporary for a new record until Checkpoint or commit assigns the
// final one, the record keeps reporting it after Update returns.
func (r *Record) ID() rid.RID {
	return r.id
}

func (r *Record) Class() string {
	return r.class
}

func (r *Record) Version() int64 {
	return r.version
}

func (r *Record) IsNew() bool {
	return r.created
}

func (r *Record) IsDirty() bool {
	return r.dirty
}

func (r *Record) Fields() []string {
	return sortedKeys(r.fields)
}

func (r *Record) BagFields() []string {
	return sortedKeys(r.bags)
}

func (r *Record) check(write bool) error {
	if write {
		if err := r.tx.checkWritable(); err != nil {
			return err
		}
	} else if err := r.tx.checkOpen(); err != nil {
		return err
	}
	if r.deleted {
		return ErrRecordDeleted
	}

	return nil
}

func (r *Record) Get(field string) (any, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Set assigns a scalar field, nil removes it.
func (r *Record) Set(field string, value any) error {
	if err := r.check(true); err != nil {
		return err
	}
	if field == "" {
		return ErrInvalidField
	}
	if _, ok := r.bags[field]; ok {
		return ErrFieldIsBag
	}

	v, err := normalize(value)
	if err != nil {
		return err
	}

	if v == nil {
		delete(r.fields, field)
	} else {
		r.fields[field] = v
	}
	r.dirty = true

	return nil
}

// Bag returns the bag of a field, creating an empty one on first use.
func (r *Record) Bag(field string) (*linkbag.Bag, error) {
	if err := r.check(false); err != nil {
		return nil, err
	}
	if field == "" {
		return nil, ErrInvalidField
	}

	if b, ok := r.bags[field]; ok {
		return b, nil
	}
	if _, ok := r.fields[field]; ok {
		return nil, fmt.Errorf("field %s holds a scalar: %w", field, ErrUnsupportedValue)
	}

	b := r.tx.NewBag()
	if err := r.tx.attach(r, field, b); err != nil {
		return nil, err
	}

	return b, nil
}

// SetBag assigns a bag to a field. A bag owned by another record is refused
// with linkbag.ErrOwnerConflict, a bag of another field of this record with
// ErrBagInUse. The bag replaced by it is released.
func (r *Record) SetBag(ctx context.Context, field string, b *linkbag.Bag) error {
	if err := r.check(true); err != nil {
		return err
	}
	if field == "" {
		return ErrInvalidField
	}

	old, ok := r.bags[field]
	if ok && old == b {
		return nil
	}
	if owner := b.Owner(); owner != nil {
		if owner != linkbag.Owner(r.handle) {
			return linkbag.ErrOwnerConflict
		}
		if b.Field() != field {
			return fmt.Errorf("%w: %s", ErrBagInUse, b.Field())
		}
	}

	if ok {
		if err := r.release(ctx, field); err != nil {
			return err
		}
	}

	if err := r.tx.attach(r, field, b); err != nil {
		return err
	}
	delete(r.fields, field)
	r.dirty = true

	return nil
}

// release drops the bag of a field, keeping its loaded values for the index.
func (r *Record) release(ctx context.Context, field string) error {
	b := r.bags[field]
	if r.loadedBags[field] == b && r.indexed(field) {
		if _, err := r.beforeValues(ctx, field); err != nil {
			return err
		}
	}

	if err := b.Release(ctx); err != nil {
		return err
	}
	delete(r.bags, field)
	delete(r.tx.checkpoints, b)
	r.dirty = true

	return nil
}

func (r *Record) indexed(field string) bool {
	for _, def := range r.tx.db.opts.Indexes.Definitions(r.class) {
		for _, f := range def.Fields {
			if f == field {
				return true
			}
		}
	}

	return false
}

func (r *Record) components(ctx context.Context, def index.Definition, values func(context.Context, string) ([]string, error)) (index.Components, error) {
	components := make(index.Components, len(def.Fields))
	for i, field := range def.Fields {
		v, err := values(ctx, field)
		if err != nil {
			return nil, err
		}
		components[i] = v
	}

	return components, nil
}

func (r *Record) currentValues(ctx context.Context, field string) ([]string, error) {
	if b, ok := r.bags[field]; ok {
		entries, err := b.Entries(ctx)
		if err != nil {
			return nil, err
		}
		return primaries(entries), nil
	}

	return scalarValues(r.fields[field]), nil
}

func (r *Record) beforeValues(ctx context.Context, field string) ([]string, error) {
	if r.created {
		return nil, nil
	}
	if v, ok := r.beforeBags[field]; ok {
		return v, nil
	}

	if b, ok := r.loadedBags[field]; ok {
		entries, err := b.OriginalEntries(ctx)
		if err != nil {
			return nil, err
		}
		if r.beforeBags == nil {
			r.beforeBags = make(map[string][]string)
		}
		r.beforeBags[field] = primaries(entries)

		return r.beforeBags[field], nil
	}

	return scalarValues(r.loadedFields[field]), nil
}

func primaries(entries []linkbag.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Primary.String())
	}

	return out
}

func scalarValues(v any) []string {
	if v == nil {
		return nil
	}

	return []string{fmt.Sprint(v)}
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int64, float64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
		}
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, v)
		}
		return int64(v), nil
	case float32:
		return float64(v), nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}

// ownerHandle is the owner a bag sees. It reaches the record through the slot
// table of the transaction and goes stale once the record is deleted or the
// transaction ends.
type ownerHandle struct {
	tx   *Tx
	slot int
}

var _ linkbag.Owner = (*ownerHandle)(nil)

func (h *ownerHandle) record() (*Record, error) {
	if h.tx.closed || h.slot >= len(h.tx.records) {
		return nil, linkbag.ErrOwnerDetached
	}

	r := h.tx.records[h.slot]
	if r.deleted {
		return nil, linkbag.ErrOwnerDetached
	}

	return r, nil
}

func (h *ownerHandle) Identity() (rid.RID, error) {
	r, err := h.record()
	if err != nil {
		return rid.Invalid, err
	}

	return r.id, nil
}

func (h *ownerHandle) CheckWritable() error {
	if _, err := h.record(); err != nil {
		return err
	}

	return h.tx.checkWritable()
}

func (h *ownerHandle) SetDirty() error {
	r, err := h.record()
	if err != nil {
		return err
	}
	if err := h.tx.checkWritable(); err != nil {
		return err
	}
	r.dirty = true

	return nil
}
