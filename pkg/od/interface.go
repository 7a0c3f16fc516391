package od

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Key addresses a single [Variable] inside the [ObjectDictionary]
type Key struct {
	Index    uint16
	SubIndex uint8
}

func (key Key) String() string {
	return fmt.Sprintf("x%x:x%x", key.Index, key.SubIndex)
}

// ObjectDictionary holds the read-only objects served by the node.
// It is built once at startup and never modified afterwards, it is
// therefore safe for concurrent reads.
type ObjectDictionary struct {
	logger    *log.Entry
	entries   map[uint16]*Entry
	variables map[Key]*Variable
}

// NewOD creates an empty object dictionary
func NewOD(logger *log.Logger) *ObjectDictionary {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ObjectDictionary{
		logger:    logger.WithField("service", "[OD]"),
		entries:   make(map[uint16]*Entry),
		variables: make(map[Key]*Variable),
	}
}

// New creates the dictionary of the thermometer node :
//   - x1000 device type, constant 0
//   - temperatureIndex RECORD with highest subindex (2), celsius and fahrenheit readings
func New(logger *log.Logger, temperatureIndex uint16) (*ObjectDictionary, error) {
	if temperatureIndex == IndexDeviceType {
		return nil, fmt.Errorf("[OD] temperature index x%x collides with device type", temperatureIndex)
	}
	od := NewOD(logger)
	deviceType, err := NewFixedVariable("Device type", UNSIGNED32, "0")
	if err != nil {
		return nil, err
	}
	od.AddVariable(IndexDeviceType, deviceType)

	highest, err := NewFixedVariable("Highest sub-index supported", UNSIGNED8, fmt.Sprint(temperatureRecordSubEntries))
	if err != nil {
		return nil, err
	}
	od.AddRecord(temperatureIndex, "Temperature", map[uint8]*Variable{
		SubIndexHighestSupported: highest,
		SubIndexCelsius:          NewSensorVariable("Temperature celsius", SourceCelsius),
		SubIndexFahrenheit:       NewSensorVariable("Temperature fahrenheit", SourceFahrenheit),
	})
	return od, nil
}

func (od *ObjectDictionary) addEntry(entry *Entry) {
	if previous, ok := od.entries[entry.Index]; ok {
		od.logger.Warnf("overwriting entry x%x", entry.Index)
		for sub := range previous.variables {
			delete(od.variables, Key{Index: entry.Index, SubIndex: sub})
		}
	}
	od.entries[entry.Index] = entry
	for sub, variable := range entry.variables {
		od.variables[Key{Index: entry.Index, SubIndex: sub}] = variable
	}
	od.logger.Debugf("adding entry x%x (%v) with %v sub entries", entry.Index, entry.Name, entry.SubCount())
}

// AddVariable adds an entry of type VAR. Any existing entry will be replaced.
func (od *ObjectDictionary) AddVariable(index uint16, variable *Variable) *Entry {
	entry := newEntry(index, variable.Name, ObjectTypeVAR)
	entry.variables[0] = variable
	od.addEntry(entry)
	return entry
}

// AddRecord adds an entry of type RECORD. Any existing entry will be replaced.
func (od *ObjectDictionary) AddRecord(index uint16, name string, variables map[uint8]*Variable) *Entry {
	entry := newEntry(index, name, ObjectTypeRECORD)
	for sub, variable := range variables {
		entry.variables[sub] = variable
	}
	od.addEntry(entry)
	return entry
}

// Index returns the entry at index, or nil if it does not exist
func (od *ObjectDictionary) Index(index uint16) *Entry {
	return od.entries[index]
}

// Lookup returns the variable at index and subindex.
// It returns [ErrIdxNotExist] if the index is unknown and
// [ErrSubNotExist] if only the subindex is unknown.
func (od *ObjectDictionary) Lookup(index uint16, subIndex uint8) (*Variable, error) {
	variable, ok := od.variables[Key{Index: index, SubIndex: subIndex}]
	if ok {
		return variable, nil
	}
	if _, ok := od.entries[index]; !ok {
		return nil, ErrIdxNotExist
	}
	return nil, ErrSubNotExist
}

// Indexes returns all indexes, sorted from lowest to highest
func (od *ObjectDictionary) Indexes() []uint16 {
	indexes := make([]uint16, 0, len(od.entries))
	for index := range od.entries {
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes
}
