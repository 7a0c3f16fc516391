package sdo

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/thermsdo/pkg/can"
)

// SDOClient reads objects of a remote node with expedited uploads
type SDOClient struct {
	logger  *log.Entry
	bus     can.Bus
	nodeId  uint8
	timeout time.Duration
	rx      chan can.Frame
}

func NewSDOClient(bus can.Bus, logger *log.Logger, nodeId uint8, timeout time.Duration) *SDOClient {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultClientTimeoutMs * time.Millisecond
	}
	return &SDOClient{
		logger:  logger.WithField("service", "[CLIENT]"),
		bus:     bus,
		nodeId:  nodeId,
		timeout: timeout,
		rx:      make(chan can.Frame, 8),
	}
}

// Handle [SDOClient] related RX CAN frames
func (client *SDOClient) Handle(frame can.Frame) {
	if frame.ID != ServerServiceId+uint32(client.nodeId) {
		return
	}
	select {
	case client.rx <- frame:
	default:
		client.logger.Warn("dropped SDO client RX frame")
	}
}

// Upload reads index and subindex from the remote node.
// It returns the raw value with the indicated size, or the [Abort]
// sent by the server.
func (client *SDOClient) Upload(ctx context.Context, index uint16, subindex uint8) ([]byte, error) {
	// Discard stale responses
	for len(client.rx) > 0 {
		<-client.rx
	}
	req := Request{Command: CommandUploadInitiate, Index: index, Subindex: subindex}
	client.logger.Debugf("[TX] UPLOAD | x%x:x%x", index, subindex)
	if err := client.bus.Send(EncodeRequest(client.nodeId, req)); err != nil {
		return nil, fmt.Errorf("failed to send request : %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil, AbortTimeout
		case frame := <-client.rx:
			rxIndex, rxSubindex, resp, err := DecodeResponse(frame, client.nodeId)
			if err != nil || rxIndex != index || rxSubindex != subindex {
				continue
			}
			client.logger.Debugf("[RX] x%x:x%x %v", rxIndex, rxSubindex, resp)
			if resp.IsAbort() {
				return nil, resp.AbortCode()
			}
			if resp.Command()&0xF2 != 0x42 {
				// Not an expedited upload response
				return nil, AbortCmd
			}
			data := resp.Data()
			return data[:resp.Size()], nil
		}
	}
}
