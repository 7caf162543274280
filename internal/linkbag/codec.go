package linkbag

import (
	"context"
	"fmt"

	"github.com/emrgen/linkstore/internal/rid"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/google/uuid"
)

// Encoded is the stored form of a bag inside its owner payload. An embedded
// bag lists its entries, Secondary is only set when a secondary differs from
// its primary. An external bag stores the tree id and its size.
type Encoded struct {
	Embedded  bool     `msgpack:"embedded" json:"embedded"`
	Entries   []string `msgpack:"entries,omitempty" json:"entries,omitempty"`
	Secondary []string `msgpack:"secondary,omitempty" json:"secondary,omitempty"`
	Tree      string   `msgpack:"tree,omitempty" json:"tree,omitempty"`
	Size      int      `msgpack:"size" json:"size"`
}

func (b *Bag) Encode(ctx context.Context) (Encoded, error) {
	if err := b.checkReadable(); err != nil {
		return Encoded{}, err
	}

	if id, ok := b.TreeID(); ok {
		return Encoded{Tree: id.String(), Size: b.size}, nil
	}

	emb := b.rep.(*embedded)
	enc := Encoded{
		Embedded: true,
		Entries:  make([]string, 0, len(emb.entries)),
		Size:     b.size,
	}

	distinct := false
	for _, occ := range emb.entries {
		enc.Entries = append(enc.Entries, occ.Primary.String())
		if occ.Secondary != occ.Primary {
			distinct = true
		}
	}

	if distinct {
		enc.Secondary = make([]string, 0, len(emb.entries))
		for _, occ := range emb.entries {
			enc.Secondary = append(enc.Secondary, occ.Secondary.String())
		}
	}

	return enc, nil
}

// Decode rebuilds a bag from its stored form. External bags need the tree store.
func Decode(enc Encoded, trees store.TreeStore, thresholds Thresholds) (*Bag, error) {
	b := New(trees, thresholds)

	if !enc.Embedded {
		if trees == nil {
			return nil, ErrNoTreeStore
		}

		id, err := uuid.Parse(enc.Tree)
		if err != nil {
			return nil, fmt.Errorf("invalid link tree id %q: %w", enc.Tree, err)
		}
		b.rep = newExternal(trees, id)
		b.size = enc.Size

		return b, nil
	}

	if len(enc.Secondary) > 0 && len(enc.Secondary) != len(enc.Entries) {
		return nil, fmt.Errorf("link bag has %d entries and %d secondaries", len(enc.Entries), len(enc.Secondary))
	}

	occs := make([]occurrence, 0, len(enc.Entries))
	for i, s := range enc.Entries {
		primary, err := rid.Parse(s)
		if err != nil {
			return nil, err
		}

		secondary := primary
		if len(enc.Secondary) > 0 {
			if secondary, err = rid.Parse(enc.Secondary[i]); err != nil {
				return nil, err
			}
		}
		occs = append(occs, occurrence{Entry: Entry{Primary: primary, Secondary: secondary}})
	}
	b.rep = newEmbedded(occs)
	b.size = len(occs)

	return b, nil
}
