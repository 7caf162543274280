package model

import (
	"time"

	"github.com/emrgen/linkstore/internal/rid"
)

// LinkTree is the header of an external link bag. It is named after the
// owner record and the field holding the bag.
type LinkTree struct {
	ID            string `gorm:"primaryKey;uuid;not null"`
	OwnerCluster  int32  `gorm:"not null;index:idx_link_trees_owner"`
	OwnerPosition int64  `gorm:"not null;index:idx_link_trees_owner"`
	Field         string `gorm:"not null"`
	EntryCount    int64  `gorm:"not null;default:0"` // maintained on every insert and delete
	NextSeq       int64  `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (LinkTree) TableName() string {
	return "link_trees"
}

func (t *LinkTree) Owner() rid.RID {
	return rid.New(t.OwnerCluster, t.OwnerPosition)
}

// LinkTreeEntry is one occurrence of a link. Duplicated primaries are kept as
// separate rows told apart by Seq.
type LinkTreeEntry struct {
	TreeID            string `gorm:"primaryKey;uuid;not null;index:idx_link_tree_entries_primary,priority:1"`
	Seq               int64  `gorm:"primaryKey;autoIncrement:false;index:idx_link_tree_entries_primary,priority:4"`
	PrimaryCluster    int32  `gorm:"not null;index:idx_link_tree_entries_primary,priority:2"`
	PrimaryPosition   int64  `gorm:"not null;index:idx_link_tree_entries_primary,priority:3"`
	SecondaryCluster  int32  `gorm:"not null"`
	SecondaryPosition int64  `gorm:"not null"`
}

func (LinkTreeEntry) TableName() string {
	return "link_tree_entries"
}

func (e *LinkTreeEntry) Primary() rid.RID {
	return rid.New(e.PrimaryCluster, e.PrimaryPosition)
}

func (e *LinkTreeEntry) Secondary() rid.RID {
	return rid.New(e.SecondaryCluster, e.SecondaryPosition)
}

// After reports whether the entry sorts after the given primary and sequence.
func (e *LinkTreeEntry) After(primary rid.RID, seq int64) bool {
	if c := e.Primary().Compare(primary); c != 0 {
		return c > 0
	}

	return e.Seq > seq
}

// NewLinkTreeEntry builds an entry row, seq 0 lets the store assign one.
func NewLinkTreeEntry(treeID string, seq int64, primary, secondary rid.RID) *LinkTreeEntry {
	return &LinkTreeEntry{
		TreeID:            treeID,
		Seq:               seq,
		PrimaryCluster:    primary.Cluster,
		PrimaryPosition:   primary.Position,
		SecondaryCluster:  secondary.Cluster,
		SecondaryPosition: secondary.Position,
	}
}
