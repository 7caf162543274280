package linkbag

import (
	"context"
	"errors"

	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/google/uuid"
)

const scanPageSize = 512

var _ representation = (*external)(nil)

// external keeps the occurrences in a tree of the store, the owner payload
// only carries the tree id and the size.
type external struct {
	trees store.TreeStore
	id    uuid.UUID
}

func newExternal(trees store.TreeStore, id uuid.UUID) *external {
	return &external{trees: trees, id: id}
}

func (e *external) mode() Mode {
	return External
}

func fromRow(row *model.LinkTreeEntry) occurrence {
	return occurrence{
		Entry: Entry{Primary: row.Primary(), Secondary: row.Secondary()},
		seq:   row.Seq,
	}
}

func fromRows(rows []*model.LinkTreeEntry) []occurrence {
	occs := make([]occurrence, 0, len(rows))
	for _, row := range rows {
		occs = append(occs, fromRow(row))
	}

	return occs
}

func (e *external) insert(ctx context.Context, occ occurrence) (occurrence, error) {
	row := model.NewLinkTreeEntry(e.id.String(), occ.seq, occ.Primary, occ.Secondary)
	if err := e.trees.InsertEntries(ctx, e.id, []*model.LinkTreeEntry{row}); err != nil {
		return occurrence{}, err
	}

	return fromRow(row), nil
}

// insertAll keeps the sequences of the given occurrences.
func (e *external) insertAll(ctx context.Context, occs []occurrence) error {
	rows := make([]*model.LinkTreeEntry, 0, len(occs))
	for _, occ := range occs {
		rows = append(rows, model.NewLinkTreeEntry(e.id.String(), occ.seq, occ.Primary, occ.Secondary))
	}

	return e.trees.InsertEntries(ctx, e.id, rows)
}

func (e *external) removeFirst(ctx context.Context, primary rid.RID) (occurrence, bool, error) {
	row, err := e.trees.FirstEntry(ctx, e.id, primary)
	if errors.Is(err, store.ErrEntryNotFound) {
		return occurrence{}, false, nil
	}
	if err != nil {
		return occurrence{}, false, err
	}

	if err := e.trees.DeleteEntry(ctx, e.id, row.Seq); err != nil {
		return occurrence{}, false, err
	}

	return fromRow(row), true, nil
}

func (e *external) removeSeq(ctx context.Context, _ rid.RID, seq int64) (bool, error) {
	err := e.trees.DeleteEntry(ctx, e.id, seq)
	if errors.Is(err, store.ErrEntryNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (e *external) contains(ctx context.Context, primary rid.RID) (bool, error) {
	_, err := e.trees.FirstEntry(ctx, e.id, primary)
	if errors.Is(err, store.ErrEntryNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (e *external) find(ctx context.Context, primary rid.RID) ([]occurrence, error) {
	rows, err := e.trees.FindEntries(ctx, e.id, primary)
	if err != nil {
		return nil, err
	}

	return fromRows(rows), nil
}

func (e *external) seek(ctx context.Context, c *cursor, limit int) ([]occurrence, error) {
	var rows []*model.LinkTreeEntry
	var err error
	if c == nil {
		rows, err = e.trees.SeekEntries(ctx, e.id, nil, 0, limit)
	} else {
		primary := c.primary
		rows, err = e.trees.SeekEntries(ctx, e.id, &primary, c.seq, limit)
	}
	if err != nil {
		return nil, err
	}

	return fromRows(rows), nil
}

// all scans the whole tree, only demotion and encoding of the original state need it.
func (e *external) all(ctx context.Context) ([]occurrence, error) {
	var occs []occurrence
	var c *cursor
	for {
		page, err := e.seek(ctx, c, scanPageSize)
		if err != nil {
			return nil, err
		}
		occs = append(occs, page...)
		if len(page) < scanPageSize {
			return occs, nil
		}

		last := page[len(page)-1].cursor()
		c = &last
	}
}

func (e *external) rekey(ctx context.Context, from, to rid.RID) error {
	return e.trees.RekeyEntries(ctx, e.id, from, to)
}

func (e *external) release(ctx context.Context) error {
	return e.trees.DropTree(ctx, e.id)
}
