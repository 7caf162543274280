// Package index keeps secondary indexes over record fields. A field holding
// a link bag contributes one component per distinct link, a record gets one
// key per combination of the components of its indexed fields.
package index

import (
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/linkstore/internal/rid"
	"github.com/sirupsen/logrus"
)

const keySeparator = "\x00"

type Definition struct {
	Name   string   `json:"name"`
	Class  string   `json:"class"`
	Fields []string `json:"fields"`
}

func (d Definition) validate() error {
	if d.Name == "" || d.Class == "" || len(d.Fields) == 0 {
		return ErrInvalidDefinition
	}

	return nil
}

type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change adds or removes one key of one record.
type Change struct {
	Index  string  `json:"index"`
	Key    string  `json:"key"`
	Record rid.RID `json:"record"`
	Op     Op      `json:"op"`
}

// Components holds the values of each indexed field, in definition order.
type Components [][]string

// Keys builds the cross product of the distinct components. A field without
// values yields no key at all.
func Keys(components Components) mapset.Set[string] {
	keys := mapset.NewThreadUnsafeSet[string]()
	if len(components) == 0 {
		return keys
	}

	partial := []string{""}
	for i, values := range components {
		distinct := mapset.NewThreadUnsafeSet[string](values...).ToSlice()
		sort.Strings(distinct)

		next := make([]string, 0, len(partial)*len(distinct))
		for _, prefix := range partial {
			for _, value := range distinct {
				if i == 0 {
					next = append(next, value)
				} else {
					next = append(next, prefix+keySeparator+value)
				}
			}
		}
		partial = next
	}

	keys.Append(partial...)

	return keys
}

// Key joins lookup values the way Keys does.
func Key(values ...string) string {
	return strings.Join(values, keySeparator)
}

// Diff returns the changes turning the keys of before into the keys of after.
func Diff(def Definition, record rid.RID, before, after Components) []Change {
	old := Keys(before)
	cur := Keys(after)

	var changes []Change
	for _, key := range sortedSlice(old.Difference(cur)) {
		changes = append(changes, Change{Index: def.Name, Key: key, Record: record, Op: OpDelete})
	}
	for _, key := range sortedSlice(cur.Difference(old)) {
		changes = append(changes, Change{Index: def.Name, Key: key, Record: record, Op: OpPut})
	}

	return changes
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)

	return out
}

// Manager holds the definitions and the committed keys of every index.
type Manager struct {
	mu      sync.RWMutex
	defs    map[string]Definition
	byClass map[string][]string
	entries map[string]map[string]mapset.Set[rid.RID]
}

func NewManager() *Manager {
	return &Manager{
		defs:    make(map[string]Definition),
		byClass: make(map[string][]string),
		entries: make(map[string]map[string]mapset.Set[rid.RID]),
	}
}

func (m *Manager) Define(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.defs[def.Name]; ok {
		return ErrIndexExists
	}

	m.defs[def.Name] = def
	m.byClass[def.Class] = append(m.byClass[def.Class], def.Name)
	m.entries[def.Name] = make(map[string]mapset.Set[rid.RID])

	logrus.Infof("defined index %s on %s(%s)", def.Name, def.Class, strings.Join(def.Fields, ", "))

	return nil
}

// Definitions returns the indexes of a class in definition order.
func (m *Manager) Definitions(class string) []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]Definition, 0, len(m.byClass[class]))
	for _, name := range m.byClass[class] {
		defs = append(defs, m.defs[name])
	}

	return defs
}

// Apply installs committed changes. Changes of unknown indexes are skipped.
func (m *Manager) Apply(changes []Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, change := range changes {
		keys, ok := m.entries[change.Index]
		if !ok {
			logrus.Warnf("dropping change of unknown index %s", change.Index)
			continue
		}

		records, ok := keys[change.Key]
		switch change.Op {
		case OpPut:
			if !ok {
				records = mapset.NewThreadUnsafeSet[rid.RID]()
				keys[change.Key] = records
			}
			records.Add(change.Record)
		case OpDelete:
			if !ok {
				continue
			}
			records.Remove(change.Record)
			if records.Cardinality() == 0 {
				delete(keys, change.Key)
			}
		}
	}
}

// Get returns the records indexed under the given field values.
func (m *Manager) Get(name string, values ...string) ([]rid.RID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.defs[name]
	if !ok {
		return nil, ErrIndexNotFound
	}
	if len(values) != len(def.Fields) {
		return nil, ErrKeyArity
	}

	records, ok := m.entries[name][Key(values...)]
	if !ok {
		return nil, nil
	}

	out := records.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	return out, nil
}

// Size returns the number of keys of an index.
func (m *Manager) Size(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries[name])
}

// Reset drops the committed keys of every index, definitions stay.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.entries {
		m.entries[name] = make(map[string]mapset.Set[rid.RID])
	}
}
