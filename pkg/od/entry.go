package od

import "sort"

// An Entry object holds an OD object at a specific index.
// An entry can be one of the following object types, defined by CiA 301
//   - VAR, with a single [Variable] at subindex 0
//   - RECORD, with a [Variable] per subindex
type Entry struct {
	// The OD index e.g. x1000
	Index uint16
	// The OD name inside of EDS
	Name string
	// The OD object type, as cited above.
	ObjectType uint8
	variables  map[uint8]*Variable
}

func newEntry(index uint16, name string, objectType uint8) *Entry {
	return &Entry{
		Index:      index,
		Name:       name,
		ObjectType: objectType,
		variables:  make(map[uint8]*Variable),
	}
}

// SubIndex returns the [Variable] at a given subindex.
func (entry *Entry) SubIndex(subIndex uint8) (*Variable, error) {
	if entry == nil {
		return nil, ErrIdxNotExist
	}
	variable, ok := entry.variables[subIndex]
	if !ok {
		return nil, ErrSubNotExist
	}
	return variable, nil
}

// SubCount returns the number of sub entries (1 for a VAR).
func (entry *Entry) SubCount() int {
	return len(entry.variables)
}

// Subindexes of the entry, sorted
func (entry *Entry) subIndexes() []uint8 {
	subs := make([]uint8, 0, len(entry.variables))
	for sub := range entry.variables {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i] < subs[j] })
	return subs
}
