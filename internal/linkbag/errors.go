package linkbag

import "errors"

var (
	// ErrOwnerDetached is returned when the record holding the bag was released.
	ErrOwnerDetached = errors.New("link bag owner is detached")
	// ErrOwnerConflict is returned when a bag owned by one record is attached to another.
	ErrOwnerConflict = errors.New("link bag is already owned by another record")
	// ErrBagReleased is returned when a bag is used after its storage was released.
	ErrBagReleased = errors.New("link bag was released")
	// ErrNoTreeStore is returned when a tree backed bag is decoded without a tree store.
	ErrNoTreeStore = errors.New("link bag needs a tree store")
	// ErrInvalidCheckpoint is returned when rolling back to a stale or unknown checkpoint.
	ErrInvalidCheckpoint = errors.New("invalid link bag checkpoint")
	// ErrTimelineMismatch is returned when a tracked change cannot be undone.
	ErrTimelineMismatch = errors.New("link bag timeline does not match its entries")
	// ErrNoCurrentEntry is returned by Iterator.Remove without a yielded entry.
	ErrNoCurrentEntry = errors.New("iterator has no current entry")
)
