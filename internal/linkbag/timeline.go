package linkbag

import (
	"github.com/emrgen/linkstore/internal/rid"
)

type EventKind int

const (
	EventAdd EventKind = iota
	EventRemove
)

func (k EventKind) String() string {
	if k == EventRemove {
		return "remove"
	}

	return "add"
}

// ChangeEvent is one tracked mutation. Value is set for adds, OldValue for
// removes, both hold the secondary of the occurrence.
type ChangeEvent struct {
	Kind     EventKind
	Key      rid.RID
	Value    rid.RID
	OldValue rid.RID
	Sequence uint64
}

// Checkpoint marks the start of the rollback scope of a timeline.
type Checkpoint struct {
	generation uint64
	position   int
	valid      bool
}

func (c Checkpoint) IsValid() bool {
	return c.valid
}

// timeline is the append only change log of a bag. Each EnableTracking
// starts a new generation so checkpoints of an older scope go stale.
type timeline struct {
	enabled    bool
	generation uint64
	events     []ChangeEvent
	checkpoint int
	sequence   uint64
}

func (t *timeline) enable() {
	t.enabled = true
	t.generation++
	t.events = nil
	t.checkpoint = 0
}

func (t *timeline) disable() {
	t.enabled = false
	t.generation++
	t.events = nil
	t.checkpoint = 0
}

func (t *timeline) append(kind EventKind, key, secondary rid.RID) {
	if !t.enabled {
		return
	}

	t.sequence++
	event := ChangeEvent{Kind: kind, Key: key, Sequence: t.sequence}
	if kind == EventAdd {
		event.Value = secondary
	} else {
		event.OldValue = secondary
	}
	t.events = append(t.events, event)
}

func (t *timeline) mark() Checkpoint {
	if !t.enabled {
		return Checkpoint{}
	}

	t.checkpoint = len(t.events)

	return Checkpoint{generation: t.generation, position: t.checkpoint, valid: true}
}

func (t *timeline) validate(cp Checkpoint) error {
	if !cp.valid || !t.enabled || cp.generation != t.generation || cp.position != t.checkpoint {
		return ErrInvalidCheckpoint
	}

	return nil
}

// scoped returns the events appended since the last checkpoint.
func (t *timeline) scoped() []ChangeEvent {
	return t.events[t.checkpoint:]
}

func (t *timeline) truncate() {
	t.events = t.events[:t.checkpoint]
}

func (t *timeline) rekey(from, to rid.RID) {
	for i := range t.events {
		e := &t.events[i]
		if e.Key == from {
			e.Key = to
		}
		if e.Value == from {
			e.Value = to
		}
		if e.OldValue == from {
			e.OldValue = to
		}
	}
}

func copyEvents(events []ChangeEvent) []ChangeEvent {
	out := make([]ChangeEvent, len(events))
	copy(out, events)

	return out
}
