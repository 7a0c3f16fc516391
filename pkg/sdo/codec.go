package sdo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samsamfire/thermsdo/pkg/can"
)

// ErrNotAddressed is returned when a frame is not an SDO request
// (or response) for the node, such frames are silently dropped.
var ErrNotAddressed = errors.New("frame not addressed to this node")

// Function code of client to server (request) frames, i.e. high byte of x600 + node id
const functionCodeClientToServer uint8 = 0x06

// Request is an SDO request received from a client
type Request struct {
	FunctionCode uint8
	NodeId       uint8
	Command      uint8
	Index        uint16
	Subindex     uint8
}

func (req Request) String() string {
	return fmt.Sprintf("cmd x%x | x%x:x%x", req.Command, req.Index, req.Subindex)
}

// Response is the answer of the server to a [Request].
// It is either expedited data (4 raw bytes) or an abort.
type Response struct {
	abort   bool
	command uint8
	data    [4]byte
	code    Abort
}

// Data4 creates a successful response with command byte and 4 bytes payload
func Data4(command uint8, data [4]byte) Response {
	return Response{command: command, data: data}
}

// AbortResponse creates an abort response
func AbortResponse(code Abort) Response {
	return Response{abort: true, command: CommandAbort, code: code}
}

// Expedited creates an expedited upload response for 1 to 4 bytes of data,
// with the size indicated inside of the command byte.
func Expedited(data []byte) (Response, error) {
	if len(data) == 0 || len(data) > 4 {
		return Response{}, fmt.Errorf("expedited transfer of %v bytes : %w", len(data), AbortDataLong)
	}
	var payload [4]byte
	copy(payload[:], data)
	return Data4(commandUploadExpedited|uint8(4-len(data))<<2, payload), nil
}

// IsAbort returns true if the response is an abort
func (resp Response) IsAbort() bool {
	return resp.abort
}

// Command byte, [CommandAbort] for aborts
func (resp Response) Command() uint8 {
	return resp.command
}

// Raw payload bytes (bytes 4 to 7 of the frame)
func (resp Response) Data() [4]byte {
	if resp.abort {
		var data [4]byte
		binary.LittleEndian.PutUint32(data[:], uint32(resp.code))
		return data
	}
	return resp.data
}

// AbortCode of an abort response, 0 otherwise
func (resp Response) AbortCode() Abort {
	return resp.code
}

// Size of the expedited value in bytes, 4 if size is not indicated
func (resp Response) Size() int {
	if resp.abort {
		return 0
	}
	if resp.command&0x01 == 0 {
		return 4
	}
	return 4 - int((resp.command>>2)&0x03)
}

func (resp Response) String() string {
	if resp.abort {
		return fmt.Sprintf("abort %v", resp.code)
	}
	return fmt.Sprintf("cmd x%x | %x", resp.command, resp.data)
}

// Decode an incoming CAN frame into an SDO [Request] for node nodeId.
// Frames for other nodes, other function codes, remote or extended frames,
// or frames too short to hold command, index and subindex return
// [ErrNotAddressed].
func Decode(frame can.Frame, nodeId uint8) (Request, error) {
	if !frame.IsStandardData() {
		return Request{}, ErrNotAddressed
	}
	functionCode := uint8((frame.ID >> 8) & 0xFF)
	frameNodeId := uint8(frame.ID & 0xFF)
	if functionCode != functionCodeClientToServer || frameNodeId != nodeId {
		return Request{}, ErrNotAddressed
	}
	if frame.DLC < 4 {
		return Request{}, ErrNotAddressed
	}
	return Request{
		FunctionCode: functionCode,
		NodeId:       frameNodeId,
		Command:      frame.Data[0],
		Index:        binary.LittleEndian.Uint16(frame.Data[1:3]),
		Subindex:     frame.Data[3],
	}, nil
}

// Encode the response of node nodeId to a request on index and subindex.
// Index and subindex are echoed for both data and abort responses.
func Encode(nodeId uint8, index uint16, subindex uint8, resp Response) can.Frame {
	frame := can.NewFrame(ServerServiceId+uint32(nodeId), 0, 8)
	frame.Data[0] = resp.Command()
	binary.LittleEndian.PutUint16(frame.Data[1:3], index)
	frame.Data[3] = subindex
	data := resp.Data()
	copy(frame.Data[4:], data[:])
	return frame
}

// EncodeRequest creates the client request frame for node nodeId
func EncodeRequest(nodeId uint8, req Request) can.Frame {
	frame := can.NewFrame(ClientServiceId+uint32(nodeId), 0, 8)
	frame.Data[0] = req.Command
	binary.LittleEndian.PutUint16(frame.Data[1:3], req.Index)
	frame.Data[3] = req.Subindex
	return frame
}

// DecodeResponse decodes a server response frame from node nodeId.
// It returns the echoed index and subindex with the response.
func DecodeResponse(frame can.Frame, nodeId uint8) (uint16, uint8, Response, error) {
	if !frame.IsStandardData() || frame.ID != ServerServiceId+uint32(nodeId) || frame.DLC != 8 {
		return 0, 0, Response{}, ErrNotAddressed
	}
	index := binary.LittleEndian.Uint16(frame.Data[1:3])
	subindex := frame.Data[3]
	if frame.Data[0] == CommandAbort {
		return index, subindex, AbortResponse(Abort(binary.LittleEndian.Uint32(frame.Data[4:]))), nil
	}
	var data [4]byte
	copy(data[:], frame.Data[4:])
	return index, subindex, Data4(frame.Data[0], data), nil
}
