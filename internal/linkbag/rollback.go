package linkbag

import (
	"context"
	"fmt"

	"github.com/emrgen/linkstore/internal/rid"
	"github.com/sirupsen/logrus"
)

// RollbackChanges undoes every event recorded after cp, newest first, then
// clears them. Replaying records no new events.
func (b *Bag) RollbackChanges(ctx context.Context, cp Checkpoint) error {
	if err := b.checkReadable(); err != nil {
		return err
	}
	if err := b.timeline.validate(cp); err != nil {
		return err
	}

	events := b.timeline.scoped()
	if len(events) == 0 {
		return nil
	}

	for i := len(events) - 1; i >= 0; i-- {
		if err := b.undo(ctx, events[i]); err != nil {
			return err
		}
	}
	b.timeline.truncate()
	b.modCount++
	b.modified = true

	logrus.Debugf("link bag %s.%s rolled back %d changes", b.ownerIdentity(), b.field, len(events))

	return b.convert(ctx, true, true)
}

func (b *Bag) undo(ctx context.Context, event ChangeEvent) error {
	switch event.Kind {
	case EventAdd:
		occ, ok, err := latestMatching(ctx, b.rep, event.Key, event.Value)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no occurrence of %s to undo", ErrTimelineMismatch, event.Key)
		}
		if _, err := b.rep.removeSeq(ctx, occ.Primary, occ.seq); err != nil {
			return err
		}
		b.size--
	case EventRemove:
		if _, err := b.rep.insert(ctx, occurrence{Entry: Entry{Primary: event.Key, Secondary: event.OldValue}}); err != nil {
			return err
		}
		b.size++
	}

	return nil
}

// latestMatching picks the newest occurrence of key carrying value, or the
// newest occurrence of key when none carries it.
func latestMatching(ctx context.Context, rep representation, key, value rid.RID) (occurrence, bool, error) {
	occs, err := rep.find(ctx, key)
	if err != nil || len(occs) == 0 {
		return occurrence{}, false, err
	}

	for i := len(occs) - 1; i >= 0; i-- {
		if occs[i].Secondary == value {
			return occs[i], true, nil
		}
	}

	return occs[len(occs)-1], true, nil
}

// OriginalEntries returns the entries as they were when tracking was
// enabled, the current entries when tracking is off.
func (b *Bag) OriginalEntries(ctx context.Context) ([]Entry, error) {
	if err := b.checkReadable(); err != nil {
		return nil, err
	}

	occs, err := b.rep.all(ctx)
	if err != nil {
		return nil, err
	}

	events := b.timeline.events
	for i := len(events) - 1; i >= 0; i-- {
		event := events[i]
		switch event.Kind {
		case EventAdd:
			occs, err = dropLatest(occs, event.Key, event.Value)
			if err != nil {
				return nil, err
			}
		case EventRemove:
			occs = append(occs, occurrence{Entry: Entry{Primary: event.Key, Secondary: event.OldValue}})
		}
	}

	return sortedEntries(occs), nil
}

func dropLatest(occs []occurrence, key, value rid.RID) ([]occurrence, error) {
	found := -1
	for i := len(occs) - 1; i >= 0; i-- {
		if occs[i].Primary != key {
			continue
		}
		if occs[i].Secondary == value {
			found = i
			break
		}
		if found < 0 {
			found = i
		}
	}
	if found < 0 {
		return nil, fmt.Errorf("%w: no occurrence of %s to undo", ErrTimelineMismatch, key)
	}

	return append(occs[:found], occs[found+1:]...), nil
}
