package linkbag

import (
	"context"

	"github.com/emrgen/linkstore/internal/rid"
)

// representation is where a bag keeps its occurrences. The bag decides when
// to switch between the embedded and the external one.
type representation interface {
	mode() Mode
	// insert stores an occurrence, a zero seq gets the next free one.
	insert(ctx context.Context, occ occurrence) (occurrence, error)
	// removeFirst removes the lowest occurrence of primary.
	removeFirst(ctx context.Context, primary rid.RID) (occurrence, bool, error)
	// removeSeq removes one exact occurrence.
	removeSeq(ctx context.Context, primary rid.RID, seq int64) (bool, error)
	contains(ctx context.Context, primary rid.RID) (bool, error)
	// find returns the occurrences of primary in seq order.
	find(ctx context.Context, primary rid.RID) ([]occurrence, error)
	// seek returns up to limit occurrences strictly after c in (primary, seq) order.
	seek(ctx context.Context, c *cursor, limit int) ([]occurrence, error)
	all(ctx context.Context) ([]occurrence, error)
	rekey(ctx context.Context, from, to rid.RID) error
	release(ctx context.Context) error
}
