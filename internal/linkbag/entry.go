package linkbag

import (
	"github.com/emrgen/linkstore/internal/rid"
)

// Entry is one occurrence of a link. Secondary tells apart links to the same
// primary and defaults to it.
type Entry struct {
	Primary   rid.RID
	Secondary rid.RID
}

func NewEntry(primary rid.RID) Entry {
	return Entry{Primary: primary, Secondary: primary}
}

type Mode int

const (
	Embedded Mode = iota
	External
)

func (m Mode) String() string {
	if m == External {
		return "external"
	}

	return "embedded"
}

// occurrence is an entry with the sequence that makes duplicates distinct.
// Sequences are unique inside a bag and survive transitions.
type occurrence struct {
	Entry
	seq int64
}

// cursor is the position of an occurrence in (primary, seq) order.
type cursor struct {
	primary rid.RID
	seq     int64
}

func (o occurrence) cursor() cursor {
	return cursor{primary: o.Primary, seq: o.seq}
}

func (o occurrence) after(c *cursor) bool {
	if c == nil {
		return true
	}
	if cmp := o.Primary.Compare(c.primary); cmp != 0 {
		return cmp > 0
	}

	return o.seq > c.seq
}

func lessOccurrence(a, b occurrence) bool {
	if cmp := a.Primary.Compare(b.Primary); cmp != 0 {
		return cmp < 0
	}

	return a.seq < b.seq
}
