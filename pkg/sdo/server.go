package sdo

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sensor"
)

const rxQueueSize = 127

// SDOServer answers expedited upload requests addressed to a single node,
// from a read-only [od.ObjectDictionary].
// Received frames are queued by [SDOServer.Handle] and processed one at a
// time by [SDOServer.Process].
type SDOServer struct {
	logger *log.Entry
	bus    can.Bus
	od     *od.ObjectDictionary
	sensor sensor.Sensor
	nodeId uint8
	rx     chan Request
}

// NewSDOServer creates a server for node nodeId (1..127), s may be nil
// in which case sensor backed objects abort.
func NewSDOServer(
	bus can.Bus,
	logger *log.Logger,
	odict *od.ObjectDictionary,
	s sensor.Sensor,
	nodeId uint8,
) (*SDOServer, error) {
	if bus == nil || odict == nil {
		return nil, errors.New("bus and object dictionary are required")
	}
	if nodeId < 1 || nodeId > 127 {
		return nil, fmt.Errorf("node id %v is not valid", nodeId)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SDOServer{
		logger: logger.WithField("service", "[SERVER]"),
		bus:    bus,
		od:     odict,
		sensor: s,
		nodeId: nodeId,
		rx:     make(chan Request, rxQueueSize),
	}, nil
}

// Handle [SDOServer] related RX CAN frames
func (server *SDOServer) Handle(frame can.Frame) {
	req, err := Decode(frame, server.nodeId)
	if err != nil {
		return
	}
	select {
	case server.rx <- req:
	default:
		server.logger.Warn("dropped SDO server RX frame")
	}
}

// Process received requests and send responses until ctx is cancelled.
// Requests are handled to completion one by one.
func (server *SDOServer) Process(ctx context.Context) error {
	server.logger.Infof("starting sdo server processing for node %v", server.nodeId)
	for {
		select {
		case <-ctx.Done():
			server.logger.Info("exiting sdo server process")
			return nil
		case req := <-server.rx:
			frame := Encode(server.nodeId, req.Index, req.Subindex, server.Respond(req))
			if err := server.bus.Send(frame); err != nil {
				server.logger.Errorf("[TX] failed to send response to %v : %v", req, err)
			}
		}
	}
}

// Exchange runs the whole request/response pipeline on a single frame.
// It returns false if the frame is not addressed to the server.
func (server *SDOServer) Exchange(frame can.Frame) (can.Frame, bool) {
	req, err := Decode(frame, server.nodeId)
	if err != nil {
		return can.Frame{}, false
	}
	return Encode(server.nodeId, req.Index, req.Subindex, server.Respond(req)), true
}

// Respond executes req against the object dictionary
func (server *SDOServer) Respond(req Request) Response {
	server.logger.Debugf("[RX] %v", req)
	if req.Command != CommandUploadInitiate {
		// Every object is read only
		return server.abort(req, AbortReadOnly, nil)
	}
	variable, err := server.od.Lookup(req.Index, req.Subindex)
	if err != nil {
		odr, ok := err.(od.ODR)
		if !ok {
			odr = od.ErrGeneral
		}
		return server.abort(req, ConvertOdToSdoAbort(odr), nil)
	}
	data, err := variable.Read(server.sensor)
	if err != nil {
		return server.abort(req, AbortGeneral, err)
	}
	resp, err := Expedited(data)
	if err != nil {
		return server.abort(req, AbortDeviceIncompat, err)
	}
	server.logger.Debugf("[TX] UPLOAD EXPEDITED | x%x:x%x %v", req.Index, req.Subindex, data)
	return resp
}

func (server *SDOServer) abort(req Request, code Abort, extraInfo error) Response {
	fields := log.Fields{
		"index":       fmt.Sprintf("x%x", req.Index),
		"subindex":    fmt.Sprintf("x%x", req.Subindex),
		"code":        fmt.Sprintf("x%x", uint32(code)),
		"description": code.Description(),
	}
	if extraInfo != nil {
		fields["extraInfo"] = extraInfo
	}
	server.logger.WithFields(fields).Warn("[TX] server abort")
	return AbortResponse(code)
}
