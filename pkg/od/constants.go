package od

import (
	"fmt"
)

// ODR is the result of an object dictionary access
type ODR int8

const (
	ErrNo           ODR = 0
	ErrUnsuppAccess ODR = 2
	ErrWriteOnly    ODR = 3
	ErrReadonly     ODR = 4
	ErrIdxNotExist  ODR = 5
	ErrHw           ODR = 10
	ErrTypeMismatch ODR = 11
	ErrDataLong     ODR = 12
	ErrDataShort    ODR = 13
	ErrSubNotExist  ODR = 14
	ErrGeneral      ODR = 20
	ErrNoData       ODR = 25
)

var odrDescriptions = map[ODR]string{
	ErrNo:           "no error",
	ErrUnsuppAccess: "unsupported access",
	ErrWriteOnly:    "write only object",
	ErrReadonly:     "read only object",
	ErrIdxNotExist:  "index does not exist",
	ErrHw:           "hardware error",
	ErrTypeMismatch: "type mismatch",
	ErrDataLong:     "data too long",
	ErrDataShort:    "data too short",
	ErrSubNotExist:  "subindex does not exist",
	ErrGeneral:      "general error",
	ErrNoData:       "no data available",
}

func (odr ODR) Error() string {
	description, ok := odrDescriptions[odr]
	if !ok {
		description = "unknown"
	}
	return fmt.Sprintf("OD error %d (%s)", int8(odr), description)
}

// CANopen data types used by this dictionary (CiA 301)
const (
	BOOLEAN    uint8 = 0x01
	INTEGER8   uint8 = 0x02
	INTEGER16  uint8 = 0x03
	INTEGER32  uint8 = 0x04
	UNSIGNED8  uint8 = 0x05
	UNSIGNED16 uint8 = 0x06
	UNSIGNED32 uint8 = 0x07
	REAL32     uint8 = 0x08
)

// CANopen object types
const (
	ObjectTypeVAR    uint8 = 0x07
	ObjectTypeRECORD uint8 = 0x09
)

// Object dictionary object attribute
const (
	AttributeSdoR  uint8 = 0x01 // SDO server may read from the variable
	AttributeSdoW  uint8 = 0x02 // SDO server may write to the variable
	AttributeSdoRw uint8 = 0x03 // SDO server may read from or write to the variable
	AttributeTpdo  uint8 = 0x04 // Variable is mappable into TPDO (can be read)
)

// Well known indexes
const (
	IndexDeviceType             uint16 = 0x1000
	DefaultTemperatureIndex     uint16 = 0x6000
	SubIndexHighestSupported    uint8  = 0
	SubIndexCelsius             uint8  = 1
	SubIndexFahrenheit          uint8  = 2
	temperatureRecordSubEntries uint8  = 2
)
