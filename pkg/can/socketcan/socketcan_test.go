package socketcan

import (
	"testing"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/stretchr/testify/assert"
)

type frameRecorder struct {
	frames []can.Frame
}

func (r *frameRecorder) Handle(frame can.Frame) {
	r.frames = append(r.frames, frame)
}

func TestFrameConversion(t *testing.T) {
	frame := can.Frame{ID: 0x5AB, DLC: 8, Data: [8]byte{0x43, 0x00, 0x60, 0x01, 0x00, 0x00, 0xBC, 0x41}}
	converted := toBrutella(frame)
	assert.EqualValues(t, 0x5AB, converted.ID)
	assert.EqualValues(t, 8, converted.Length)
	assert.Equal(t, frame, fromBrutella(converted))
}

func TestHandleForwardsToListener(t *testing.T) {
	bus := &SocketcanBus{}
	// No listener yet, frame is dropped
	bus.Handle(toBrutella(can.Frame{ID: 0x62B, DLC: 8}))

	recorder := &frameRecorder{}
	bus.rxCallback = recorder
	bus.Handle(toBrutella(can.Frame{ID: 0x62B, DLC: 8, Data: [8]byte{0x40}}))
	assert.Len(t, recorder.frames, 1)
	assert.EqualValues(t, 0x62B, recorder.frames[0].ID)
	assert.EqualValues(t, 0x40, recorder.frames[0].Data[0])
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, can.Interfaces(), "socketcan")
}
