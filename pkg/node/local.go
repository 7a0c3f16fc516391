package node

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sdo"
	"github.com/samsamfire/thermsdo/pkg/sensor"
)

// A [LocalNode] is the thermometer node served on the CAN bus.
// It only holds an SDO server answering read requests on its
// object dictionary.
type LocalNode struct {
	logger    *log.Entry
	id        uint8
	bus       can.Bus
	od        *od.ObjectDictionary
	SDOServer *sdo.SDOServer
}

// NewLocalNode creates the node with the dictionary of the thermometer,
// temperature record at temperatureIndex.
func NewLocalNode(
	bus can.Bus,
	logger *log.Logger,
	nodeId uint8,
	temperatureIndex uint16,
	s sensor.Sensor,
) (*LocalNode, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	odict, err := od.New(logger, temperatureIndex)
	if err != nil {
		return nil, err
	}
	server, err := sdo.NewSDOServer(bus, logger, odict, s, nodeId)
	if err != nil {
		return nil, fmt.Errorf("creating sdo server : %w", err)
	}
	return &LocalNode{
		logger:    logger.WithField("service", fmt.Sprintf("[NODE][x%x]", nodeId)),
		id:        nodeId,
		bus:       bus,
		od:        odict,
		SDOServer: server,
	}, nil
}

func (node *LocalNode) GetID() uint8 {
	return node.id
}

func (node *LocalNode) GetOD() *od.ObjectDictionary {
	return node.od
}

// Run subscribes to the bus and serves requests until ctx is cancelled.
// The bus should already be connected.
func (node *LocalNode) Run(ctx context.Context) error {
	if filterer, ok := node.bus.(can.IDFilterer); ok {
		if err := filterer.SetIDFilter(sdo.ClientServiceId + uint32(node.id)); err != nil {
			node.logger.Warnf("failed to set reception filter, receiving all frames : %v", err)
		}
	}
	if err := node.bus.Subscribe(node.SDOServer); err != nil {
		return fmt.Errorf("subscribing to bus : %w", err)
	}
	node.logger.Info("node is running")
	err := node.SDOServer.Process(ctx)
	node.logger.Info("node stopped")
	return err
}
