package od

import (
	"fmt"

	"github.com/samsamfire/thermsdo/pkg/sensor"
)

// Source describes where the value of a [Variable] comes from
type Source uint8

const (
	// Value fixed at dictionary creation
	SourceFixed Source = iota
	// Live sensor reading in degrees Celsius
	SourceCelsius
	// Live sensor reading in degrees Fahrenheit
	SourceFahrenheit
)

func (source Source) String() string {
	switch source {
	case SourceFixed:
		return "fixed"
	case SourceCelsius:
		return "celsius"
	case SourceFahrenheit:
		return "fahrenheit"
	default:
		return fmt.Sprintf("source(%d)", uint8(source))
	}
}

// Variable is the smallest addressable object of the [ObjectDictionary]
// i.e. a value at a given index and subindex.
type Variable struct {
	Name      string
	DataType  uint8
	Attribute uint8
	Source    Source
	// Encoded value, only relevant for [SourceFixed]
	value []byte
}

// NewFixedVariable creates a constant variable from its EDS style string representation
func NewFixedVariable(name string, dataType uint8, value string) (*Variable, error) {
	encoded, err := EncodeFromString(value, dataType)
	if err != nil {
		return nil, fmt.Errorf("[OD] invalid value %q for %v : %w", value, name, err)
	}
	return &Variable{
		Name:      name,
		DataType:  dataType,
		Attribute: AttributeSdoR,
		Source:    SourceFixed,
		value:     encoded,
	}, nil
}

// NewSensorVariable creates a REAL32 variable served from live sensor readings
func NewSensorVariable(name string, source Source) *Variable {
	return &Variable{
		Name:      name,
		DataType:  REAL32,
		Attribute: AttributeSdoR | AttributeTpdo,
		Source:    source,
	}
}

// Size of the variable in bytes
func (variable *Variable) Size() int {
	return Size(variable.DataType)
}

// Read the current encoded (little endian) value of the variable.
// Sensor backed variables read the sensor synchronously, failures are
// returned as is.
func (variable *Variable) Read(s sensor.Sensor) ([]byte, error) {
	switch variable.Source {
	case SourceFixed:
		data := make([]byte, len(variable.value))
		copy(data, variable.value)
		return data, nil
	case SourceCelsius, SourceFahrenheit:
		if s == nil {
			return nil, sensor.ErrUnavailable
		}
		point, err := s.ReadPoint()
		if err != nil {
			return nil, err
		}
		if variable.Source == SourceCelsius {
			return EncodeReal32(point.Celsius), nil
		}
		return EncodeReal32(point.Fahrenheit), nil
	default:
		return nil, ErrGeneral
	}
}

// DefaultValue as written inside an EDS file
func (variable *Variable) DefaultValue() (string, error) {
	if variable.Source != SourceFixed {
		return "0", nil
	}
	return DecodeToString(variable.value, variable.DataType, 10)
}
