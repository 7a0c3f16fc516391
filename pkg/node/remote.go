package node

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sdo"
)

// A RemoteNode is a local representation of a thermometer node on the CAN
// bus. It reads the remote objects with an SDO client.
type RemoteNode struct {
	client           *sdo.SDOClient
	temperatureIndex uint16
	remoteOd         *od.ObjectDictionary
}

// NewRemoteNode creates a remote node, remoteOd is the dictionary expected
// on the remote node and is used for decoding values.
func NewRemoteNode(client *sdo.SDOClient, temperatureIndex uint16, remoteOd *od.ObjectDictionary) *RemoteNode {
	return &RemoteNode{client: client, temperatureIndex: temperatureIndex, remoteOd: remoteOd}
}

func (node *RemoteNode) readExact(ctx context.Context, index uint16, subindex uint8, size int) ([]byte, error) {
	data, err := node.client.Upload(ctx, index, subindex)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("x%x:x%x expected %v bytes, got %v : %w", index, subindex, size, len(data), sdo.AbortTypeMismatch)
	}
	return data, nil
}

// Read device type object (0x1000, mandatory)
func (node *RemoteNode) ReadDeviceType(ctx context.Context) (uint32, error) {
	data, err := node.readExact(ctx, od.IndexDeviceType, 0, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Read the number of sub entries of the temperature record
func (node *RemoteNode) ReadSubEntries(ctx context.Context) (uint8, error) {
	data, err := node.readExact(ctx, node.temperatureIndex, od.SubIndexHighestSupported, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (node *RemoteNode) readReal32(ctx context.Context, subindex uint8) (float32, error) {
	data, err := node.readExact(ctx, node.temperatureIndex, subindex, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
}

// Read temperature in degrees Celsius
func (node *RemoteNode) ReadCelsius(ctx context.Context) (float32, error) {
	return node.readReal32(ctx, od.SubIndexCelsius)
}

// Read temperature in degrees Fahrenheit
func (node *RemoteNode) ReadFahrenheit(ctx context.Context) (float32, error) {
	return node.readReal32(ctx, od.SubIndexFahrenheit)
}

// Read any object and format it as a string. The data type is taken from
// the expected dictionary, or guessed from the size for unknown objects.
func (node *RemoteNode) Read(ctx context.Context, index uint16, subindex uint8) (string, error) {
	data, err := node.client.Upload(ctx, index, subindex)
	if err != nil {
		return "", err
	}
	dataType := unsignedOfSize(len(data))
	if node.remoteOd != nil {
		if variable, err := node.remoteOd.Lookup(index, subindex); err == nil && variable.Size() == len(data) {
			dataType = variable.DataType
		}
	}
	return od.DecodeToString(data, dataType, 10)
}

func unsignedOfSize(size int) uint8 {
	switch size {
	case 1:
		return od.UNSIGNED8
	case 2:
		return od.UNSIGNED16
	default:
		return od.UNSIGNED32
	}
}
