// Package linkbag implements the link bag, a multiset of record links held by
// a record field. Small bags are embedded in the owner payload, large ones
// move to a tree of the store and back once they shrink.
package linkbag

import (
	"context"

	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Owner is the record holding a bag. The bag never keeps the record alive,
// every call fails with ErrOwnerDetached once the record is gone.
type Owner interface {
	Identity() (rid.RID, error)
	// CheckWritable is called before every mutation, an error leaves the bag
	// untouched.
	CheckWritable() error
	SetDirty() error
}

// Thresholds decide when a bag changes representation.
type Thresholds struct {
	// EmbeddedToExternal promotes an embedded bag once its size reaches it.
	EmbeddedToExternal int
	// ExternalToEmbedded demotes an external bag once its size drops to it,
	// a negative value disables demotion.
	ExternalToEmbedded int
}

func DefaultThresholds() Thresholds {
	return Thresholds{EmbeddedToExternal: 40, ExternalToEmbedded: -1}
}

// Bag is a multiset of links. It is not safe for concurrent use, the
// transaction holding the owner serializes access.
type Bag struct {
	owner      Owner
	field      string
	trees      store.TreeStore
	thresholds Thresholds

	rep      representation
	size     int
	modCount uint64

	modified   bool
	txModified bool
	released   bool

	timeline timeline
}

// New creates an empty embedded bag. A bag without a tree store never
// leaves the embedded representation.
func New(trees store.TreeStore, thresholds Thresholds) *Bag {
	return &Bag{
		trees:      trees,
		thresholds: thresholds,
		rep:        newEmbedded(nil),
	}
}

// Attach sets the owner and the field name of the bag.
func (b *Bag) Attach(owner Owner, field string) error {
	if b.owner != nil && b.owner != owner {
		return ErrOwnerConflict
	}

	b.owner = owner
	b.field = field

	return nil
}

func (b *Bag) Owner() Owner {
	return b.owner
}

func (b *Bag) Field() string {
	return b.field
}

func (b *Bag) Size() int {
	return b.size
}

func (b *Bag) Mode() Mode {
	return b.rep.mode()
}

func (b *Bag) IsEmbedded() bool {
	return b.rep.mode() == Embedded
}

// TreeID returns the tree of an external bag.
func (b *Bag) TreeID() (uuid.UUID, bool) {
	if ext, ok := b.rep.(*external); ok {
		return ext.id, true
	}

	return uuid.Nil, false
}

// IsModified reports a structural change since the bag was created or loaded.
func (b *Bag) IsModified() bool {
	return b.modified
}

// IsTransactionModified reports a structural change since TransactionClear.
func (b *Bag) IsTransactionModified() bool {
	return b.txModified
}

func (b *Bag) TransactionClear() {
	b.txModified = false
}

func (b *Bag) checkReadable() error {
	if b.released {
		return ErrBagReleased
	}

	return nil
}

// checkAttached fails once the owner is gone.
func (b *Bag) checkAttached() error {
	if err := b.checkReadable(); err != nil {
		return err
	}
	if b.owner != nil {
		if _, err := b.owner.Identity(); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bag) checkWritable() error {
	if err := b.checkAttached(); err != nil {
		return err
	}
	if b.owner != nil {
		return b.owner.CheckWritable()
	}

	return nil
}

func (b *Bag) ownerIdentity() rid.RID {
	if b.owner == nil {
		return rid.Invalid
	}
	id, err := b.owner.Identity()
	if err != nil {
		return rid.Invalid
	}

	return id
}

// changed records a structural mutation, the owner is told once per transaction.
func (b *Bag) changed() error {
	b.modCount++
	b.modified = true
	if b.txModified {
		return nil
	}

	b.txModified = true
	if b.owner != nil {
		return b.owner.SetDirty()
	}

	return nil
}

func (b *Bag) Add(ctx context.Context, primary rid.RID) error {
	return b.AddPair(ctx, primary, primary)
}

// AddPair adds one occurrence of primary carrying secondary.
func (b *Bag) AddPair(ctx context.Context, primary, secondary rid.RID) error {
	if err := b.checkWritable(); err != nil {
		return err
	}

	if _, err := b.rep.insert(ctx, occurrence{Entry: Entry{Primary: primary, Secondary: secondary}}); err != nil {
		return err
	}
	b.size++
	b.timeline.append(EventAdd, primary, secondary)
	if err := b.changed(); err != nil {
		return err
	}

	return b.convert(ctx, true, false)
}

func (b *Bag) AddAll(ctx context.Context, ids []rid.RID) error {
	for _, id := range ids {
		if err := b.Add(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// Remove removes one occurrence of primary, false means there was none.
func (b *Bag) Remove(ctx context.Context, primary rid.RID) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}

	occ, ok, err := b.rep.removeFirst(ctx, primary)
	if err != nil || !ok {
		return false, err
	}

	return true, b.removed(ctx, occ)
}

// removeOccurrence removes the exact occurrence yielded by an iterator.
func (b *Bag) removeOccurrence(ctx context.Context, occ occurrence) (bool, error) {
	if err := b.checkWritable(); err != nil {
		return false, err
	}

	ok, err := b.rep.removeSeq(ctx, occ.Primary, occ.seq)
	if err != nil || !ok {
		return false, err
	}

	return true, b.removed(ctx, occ)
}

func (b *Bag) removed(ctx context.Context, occ occurrence) error {
	b.size--
	b.timeline.append(EventRemove, occ.Primary, occ.Secondary)
	if err := b.changed(); err != nil {
		return err
	}

	return b.convert(ctx, false, true)
}

func (b *Bag) Contains(ctx context.Context, primary rid.RID) (bool, error) {
	if err := b.checkReadable(); err != nil {
		return false, err
	}

	return b.rep.contains(ctx, primary)
}

// Entries returns every occurrence in primary order.
func (b *Bag) Entries(ctx context.Context) ([]Entry, error) {
	if err := b.checkReadable(); err != nil {
		return nil, err
	}

	occs, err := b.rep.all(ctx)
	if err != nil {
		return nil, err
	}

	return sortedEntries(occs), nil
}

// Release drops the tree of an external bag. The bag is unusable afterwards.
func (b *Bag) Release(ctx context.Context) error {
	if b.released {
		return nil
	}

	if err := b.rep.release(ctx); err != nil {
		return err
	}
	b.released = true
	b.timeline.disable()

	return nil
}

// convert moves the bag to the representation its size calls for. Promotion
// is checked after growth, demotion after shrinking.
func (b *Bag) convert(ctx context.Context, grown, shrunk bool) error {
	switch b.rep.mode() {
	case Embedded:
		if grown && b.trees != nil && b.size >= b.thresholds.EmbeddedToExternal {
			return b.promote(ctx)
		}
	case External:
		if shrunk && b.thresholds.ExternalToEmbedded >= 0 && b.size <= b.thresholds.ExternalToEmbedded {
			return b.demote(ctx)
		}
	}

	return nil
}

func (b *Bag) promote(ctx context.Context) error {
	occs, err := b.rep.all(ctx)
	if err != nil {
		return err
	}

	tree, err := b.trees.CreateTree(ctx, b.ownerIdentity(), b.field)
	if err != nil {
		return err
	}

	ext := newExternal(b.trees, uuid.MustParse(tree.ID))
	if err := ext.insertAll(ctx, occs); err != nil {
		if dropErr := ext.release(ctx); dropErr != nil {
			logrus.Errorf("failed to drop link tree %s after a failed promotion: %v", tree.ID, dropErr)
		}
		return err
	}

	if err := b.rep.release(ctx); err != nil {
		return err
	}
	b.rep = ext
	b.modCount++

	logrus.Infof("link bag %s.%s moved to tree %s with %d entries", b.ownerIdentity(), b.field, tree.ID, b.size)

	return nil
}

func (b *Bag) demote(ctx context.Context) error {
	ext := b.rep.(*external)
	occs, err := ext.all(ctx)
	if err != nil {
		return err
	}

	if err := ext.release(ctx); err != nil {
		return err
	}
	b.rep = newEmbedded(occs)
	b.modCount++

	logrus.Infof("link bag %s.%s moved back inline from tree %s with %d entries", b.ownerIdentity(), b.field, ext.id, b.size)

	return nil
}

// EnableTracking starts a new tracking scope, prior events are dropped.
func (b *Bag) EnableTracking(owner Owner) error {
	if owner != nil {
		if err := b.Attach(owner, b.field); err != nil {
			return err
		}
	}

	b.timeline.enable()

	return nil
}

func (b *Bag) DisableTracking() {
	b.timeline.disable()
}

func (b *Bag) IsTracking() bool {
	return b.timeline.enabled
}

// Timeline returns the events recorded since tracking was enabled.
func (b *Bag) Timeline() []ChangeEvent {
	return copyEvents(b.timeline.events)
}

// TransactionTimeline returns the events recorded since the last checkpoint.
func (b *Bag) TransactionTimeline() []ChangeEvent {
	return copyEvents(b.timeline.scoped())
}

// MarkCheckpoint starts the rollback scope. The transaction calls it once the
// identities of its new records are final. Without tracking the returned
// checkpoint is invalid.
func (b *Bag) MarkCheckpoint() Checkpoint {
	return b.timeline.mark()
}

// ReconcileIdentities replaces temporary identities with their final ones in
// the entries and in the recorded events.
func (b *Bag) ReconcileIdentities(ctx context.Context, mapping map[rid.RID]rid.RID) error {
	if err := b.checkReadable(); err != nil {
		return err
	}

	owner := b.ownerIdentity()
	for from, to := range mapping {
		if err := b.rep.rekey(ctx, from, to); err != nil {
			return err
		}
		b.timeline.rekey(from, to)

		if id, ok := b.TreeID(); ok && to == owner {
			if err := b.trees.RetargetTree(ctx, id, to); err != nil {
				return err
			}
		}
	}
	if len(mapping) > 0 {
		b.modCount++
	}

	return nil
}
