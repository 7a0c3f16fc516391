package can

import (
	"fmt"
	"sort"
)

// Flags carried in the upper bits of [Frame] ID, as in struct can_frame
const (
	CanEffFlag uint32 = 0x80000000
	CanRtrFlag uint32 = 0x40000000
	CanErrFlag uint32 = 0x20000000
)

const CanSffMask uint32 = 0x000007FF

// IsStandardData returns true for 11 bit data frames i.e. no flags set and
// no identifier bits above the standard range.
func (frame Frame) IsStandardData() bool {
	return frame.ID&^CanSffMask == 0
}

// A CAN frame
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [8]byte
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A CAN Bus interface
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}

// A Bus that can drop frames in the driver, only letting the given
// standard identifiers through
type IDFilterer interface {
	SetIDFilter(ids ...uint32) error
}

// Register a new CAN bus interface type
// This should be called inside an init() function of plugin
func RegisterInterface(interfaceType string, newInterface NewInterfaceFunc) {
	interfaceRegistry[interfaceType] = newInterface
}

type NewInterfaceFunc func(channel string) (Bus, error)

var interfaceRegistry = make(map[string]NewInterfaceFunc)

// Interfaces returns the names of all registered interface types, sorted.
func Interfaces() []string {
	names := make([]string, 0, len(interfaceRegistry))
	for name := range interfaceRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create a new CAN bus with given interface
// Currently supported : socketcan, virtualcan
func NewBus(canInterface string, channel string) (Bus, error) {
	createInterface, ok := interfaceRegistry[canInterface]
	if !ok {
		return nil, fmt.Errorf("unsupported interface : %v (available : %v)", canInterface, Interfaces())
	}
	return createInterface(channel)
}
