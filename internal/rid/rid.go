// Package rid holds the record identity used to address records and the
// links between them.
package rid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRID is returned when a string is not in the #<cluster>:<position> form.
	ErrInvalidRID = errors.New("invalid rid, expected format is #<cluster>:<position>")
)

// Invalid is the identity of nothing.
var Invalid = RID{Cluster: -1, Position: -1}

// RID identifies a record inside a cluster. Records created in the running
// transaction get a negative position until the transaction assigns the final one.
type RID struct {
	Cluster  int32
	Position int64
}

func New(cluster int32, position int64) RID {
	return RID{Cluster: cluster, Position: position}
}

// IsPersistent reports whether the position is final.
func (r RID) IsPersistent() bool {
	return r.Cluster >= 0 && r.Position >= 0
}

// IsTemporary reports whether the rid belongs to a record that was not saved yet.
func (r RID) IsTemporary() bool {
	return r.Cluster >= 0 && r.Position < 0
}

func (r RID) IsValid() bool {
	return r != Invalid
}

// Compare orders rids by cluster, then by position.
func (r RID) Compare(o RID) int {
	switch {
	case r.Cluster < o.Cluster:
		return -1
	case r.Cluster > o.Cluster:
		return 1
	case r.Position < o.Position:
		return -1
	case r.Position > o.Position:
		return 1
	}

	return 0
}

func (r RID) Less(o RID) bool {
	return r.Compare(o) < 0
}

func (r RID) String() string {
	return fmt.Sprintf("#%d:%d", r.Cluster, r.Position)
}

func (r RID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed

	return nil
}

// Parse reads a rid in the #<cluster>:<position> form, the leading # is optional.
func Parse(s string) (RID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	tokens := strings.Split(s, ":")
	if len(tokens) != 2 {
		return Invalid, ErrInvalidRID
	}

	cluster, err := strconv.ParseInt(tokens[0], 10, 32)
	if err != nil {
		return Invalid, fmt.Errorf("%w: %v", ErrInvalidRID, err)
	}

	position, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return Invalid, fmt.Errorf("%w: %v", ErrInvalidRID, err)
	}

	return RID{Cluster: int32(cluster), Position: position}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) RID {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return r
}
