package linkbag

import (
	"context"
	"sort"

	"github.com/emrgen/linkstore/internal/rid"
)

var _ representation = (*embedded)(nil)

// embedded keeps the occurrences inline with the owner payload, in insertion order.
type embedded struct {
	entries []occurrence
	next    int64
}

func newEmbedded(entries []occurrence) *embedded {
	e := &embedded{next: 1}
	for _, occ := range entries {
		e.put(occ)
	}

	return e
}

func (e *embedded) mode() Mode {
	return Embedded
}

func (e *embedded) put(occ occurrence) occurrence {
	if occ.seq == 0 {
		occ.seq = e.next
	}
	if occ.seq >= e.next {
		e.next = occ.seq + 1
	}
	e.entries = append(e.entries, occ)

	return occ
}

func (e *embedded) insert(_ context.Context, occ occurrence) (occurrence, error) {
	return e.put(occ), nil
}

func (e *embedded) drop(i int) occurrence {
	occ := e.entries[i]
	e.entries = append(e.entries[:i], e.entries[i+1:]...)

	return occ
}

// removeFirst drops the lowest seq, which is also the earliest inserted.
func (e *embedded) removeFirst(_ context.Context, primary rid.RID) (occurrence, bool, error) {
	best := -1
	for i, occ := range e.entries {
		if occ.Primary != primary {
			continue
		}
		if best < 0 || occ.seq < e.entries[best].seq {
			best = i
		}
	}
	if best < 0 {
		return occurrence{}, false, nil
	}

	return e.drop(best), true, nil
}

func (e *embedded) removeSeq(_ context.Context, primary rid.RID, seq int64) (bool, error) {
	for i, occ := range e.entries {
		if occ.Primary == primary && occ.seq == seq {
			e.drop(i)
			return true, nil
		}
	}

	return false, nil
}

func (e *embedded) contains(_ context.Context, primary rid.RID) (bool, error) {
	for _, occ := range e.entries {
		if occ.Primary == primary {
			return true, nil
		}
	}

	return false, nil
}

func (e *embedded) find(_ context.Context, primary rid.RID) ([]occurrence, error) {
	var found []occurrence
	for _, occ := range e.entries {
		if occ.Primary == primary {
			found = append(found, occ)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	return found, nil
}

func (e *embedded) seek(_ context.Context, c *cursor, limit int) ([]occurrence, error) {
	var found []occurrence
	for _, occ := range e.entries {
		if occ.after(c) {
			found = append(found, occ)
		}
	}
	sort.Slice(found, func(i, j int) bool { return lessOccurrence(found[i], found[j]) })

	if len(found) > limit {
		found = found[:limit]
	}

	return found, nil
}

func (e *embedded) all(_ context.Context) ([]occurrence, error) {
	entries := make([]occurrence, len(e.entries))
	copy(entries, e.entries)

	return entries, nil
}

func (e *embedded) rekey(_ context.Context, from, to rid.RID) error {
	for i := range e.entries {
		if e.entries[i].Primary == from {
			e.entries[i].Primary = to
		}
		if e.entries[i].Secondary == from {
			e.entries[i].Secondary = to
		}
	}

	return nil
}

func (e *embedded) release(_ context.Context) error {
	e.entries = nil
	return nil
}
