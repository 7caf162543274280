package linkbag

import (
	"context"
	"sort"
)

const iteratorPageSize = 64

// Iterator walks a bag in (primary, occurrence) order. It keeps the position
// of the last yielded occurrence and fetches the next page from there, so
// removals ahead of it are never visited and removals behind it skip nothing.
type Iterator struct {
	bag      *Bag
	page     []occurrence
	pos      int
	cursor   *cursor
	current  *occurrence
	modCount uint64
	done     bool
	err      error
}

func (b *Bag) Iterator() *Iterator {
	return &Iterator{bag: b}
}

// Next advances to the next occurrence, false at the end or on error.
func (it *Iterator) Next(ctx context.Context) bool {
	it.current = nil
	if it.done || it.err != nil {
		return false
	}

	if err := it.bag.checkAttached(); err != nil {
		it.err = err
		return false
	}

	if it.pos >= len(it.page) || it.modCount != it.bag.modCount {
		page, err := it.bag.rep.seek(ctx, it.cursor, iteratorPageSize)
		if err != nil {
			it.err = err
			return false
		}
		it.page = page
		it.pos = 0
		it.modCount = it.bag.modCount
	}

	if len(it.page) == 0 {
		it.done = true
		return false
	}

	occ := it.page[it.pos]
	it.pos++
	c := occ.cursor()
	it.cursor = &c
	it.current = &occ

	return true
}

func (it *Iterator) Entry() Entry {
	if it.current == nil {
		return Entry{}
	}

	return it.current.Entry
}

// Remove removes the occurrence returned by the last Next.
func (it *Iterator) Remove(ctx context.Context) error {
	if it.current == nil {
		return ErrNoCurrentEntry
	}

	occ := *it.current
	it.current = nil
	if _, err := it.bag.removeOccurrence(ctx, occ); err != nil {
		it.err = err
		return err
	}

	return nil
}

func (it *Iterator) Err() error {
	return it.err
}

func sortedEntries(occs []occurrence) []Entry {
	sort.SliceStable(occs, func(i, j int) bool { return lessOccurrence(occs[i], occs[j]) })

	entries := make([]Entry, 0, len(occs))
	for _, occ := range occs {
		entries = append(entries, occ.Entry)
	}

	return entries
}
