package sdo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In memory bus, frames sent are delivered to every subscriber
type loopbackBus struct {
	mu        sync.Mutex
	sent      []can.Frame
	listeners []can.FrameListener
	sendErr   error
}

func (bus *loopbackBus) Connect(...any) error { return nil }
func (bus *loopbackBus) Disconnect() error    { return nil }

func (bus *loopbackBus) Send(frame can.Frame) error {
	bus.mu.Lock()
	bus.sent = append(bus.sent, frame)
	listeners := append([]can.FrameListener{}, bus.listeners...)
	sendErr := bus.sendErr
	bus.mu.Unlock()
	if sendErr != nil {
		return sendErr
	}
	for _, listener := range listeners {
		listener.Handle(frame)
	}
	return nil
}

func (bus *loopbackBus) Subscribe(listener can.FrameListener) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.listeners = append(bus.listeners, listener)
	return nil
}

func (bus *loopbackBus) sentFrames() []can.Frame {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return append([]can.Frame{}, bus.sent...)
}

type stubSensor struct {
	mu    sync.Mutex
	point sensor.Point
	err   error
	reads int
}

func (s *stubSensor) ReadPoint() (sensor.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.point, s.err
}

func newTestServer(t *testing.T, s sensor.Sensor) (*SDOServer, *loopbackBus) {
	odict, err := od.New(nil, od.DefaultTemperatureIndex)
	require.Nil(t, err)
	bus := &loopbackBus{}
	server, err := NewSDOServer(bus, nil, odict, s, testNodeId)
	require.Nil(t, err)
	return server, bus
}

func uploadRequest(index uint16, subindex uint8) Request {
	return Request{FunctionCode: 0x06, NodeId: testNodeId, Command: CommandUploadInitiate, Index: index, Subindex: subindex}
}

func TestNewSDOServer(t *testing.T) {
	odict, _ := od.New(nil, od.DefaultTemperatureIndex)
	_, err := NewSDOServer(nil, nil, odict, nil, testNodeId)
	assert.NotNil(t, err)
	_, err = NewSDOServer(&loopbackBus{}, nil, nil, nil, testNodeId)
	assert.NotNil(t, err)
	_, err = NewSDOServer(&loopbackBus{}, nil, odict, nil, 0)
	assert.NotNil(t, err)
	_, err = NewSDOServer(&loopbackBus{}, nil, odict, nil, 128)
	assert.NotNil(t, err)
}

func TestRespondSubEntries(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{})
	resp := server.Respond(uploadRequest(0x6000, 0))
	assert.Equal(t, Data4(0x4F, [4]byte{0x02, 0, 0, 0}), resp)
}

func TestRespondCelsius(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{point: sensor.NewPoint(23.5, 23.5, time.Time{})})
	resp := server.Respond(uploadRequest(0x6000, 1))
	// 23.5 as float32 little endian
	assert.Equal(t, Data4(0x43, [4]byte{0x00, 0x00, 0xBC, 0x41}), resp)
}

func TestRespondFahrenheit(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{point: sensor.NewPoint(100, 100, time.Time{})})
	resp := server.Respond(uploadRequest(0x6000, 2))
	// 212.0 as float32 little endian
	assert.Equal(t, Data4(0x43, [4]byte{0x00, 0x00, 0x54, 0x43}), resp)
}

func TestRespondUnknownSubindex(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{})
	for _, sub := range []uint8{3, 4, 0x80, 0xFF} {
		assert.Equal(t, AbortResponse(AbortSubUnknown), server.Respond(uploadRequest(0x6000, sub)))
	}
	assert.Equal(t, AbortResponse(AbortSubUnknown), server.Respond(uploadRequest(0x1000, 1)))
}

func TestRespondUnknownIndex(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{})
	for _, index := range []uint16{0x9999, 0x0000, 0x1001, 0x6001, 0x5FFF} {
		assert.Equal(t, AbortResponse(AbortNotExist), server.Respond(uploadRequest(index, 0)))
	}
}

func TestRespondDeviceType(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{})
	assert.Equal(t, Data4(0x43, [4]byte{0, 0, 0, 0}), server.Respond(uploadRequest(0x1000, 0)))
}

func TestRespondNonUploadCommand(t *testing.T) {
	s := &stubSensor{}
	server, _ := newTestServer(t, s)
	for _, command := range []uint8{0x00, 0x20, 0x23, 0x2F, 0x41, 0x60, 0x80, 0xA0, 0xC0, 0xFF} {
		for _, target := range []struct {
			index uint16
			sub   uint8
		}{{0x6000, 0}, {0x6000, 1}, {0x6000, 9}, {0x1000, 0}, {0x9999, 0}} {
			req := uploadRequest(target.index, target.sub)
			req.Command = command
			assert.Equal(t, AbortResponse(AbortReadOnly), server.Respond(req))
		}
	}
	// Sensor is never touched on refused commands
	assert.Equal(t, 0, s.reads)
}

func TestRespondSensorUnavailable(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{err: errors.New("i2c: nack")})
	assert.Equal(t, AbortResponse(AbortGeneral), server.Respond(uploadRequest(0x6000, 1)))
	assert.Equal(t, AbortResponse(AbortGeneral), server.Respond(uploadRequest(0x6000, 2)))
	// Fixed values still served
	assert.Equal(t, Data4(0x4F, [4]byte{0x02, 0, 0, 0}), server.Respond(uploadRequest(0x6000, 0)))

	// No sensor at all
	server, _ = newTestServer(t, nil)
	assert.Equal(t, AbortResponse(AbortGeneral), server.Respond(uploadRequest(0x6000, 1)))
}

func TestExchange(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{point: sensor.NewPoint(23.5, 23.5, time.Time{})})

	response, ok := server.Exchange(requestFrame(0x62B, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0))
	require.True(t, ok)
	assert.EqualValues(t, 0x5AB, response.ID)
	assert.EqualValues(t, 8, response.DLC)
	assert.Equal(t, [8]byte{0x43, 0x00, 0x60, 0x01, 0x00, 0x00, 0xBC, 0x41}, response.Data)

	// Write attempt, index and subindex echoed
	response, ok = server.Exchange(requestFrame(0x62B, 0x23, 0x00, 0x60, 0x02, 1, 2, 3, 4))
	require.True(t, ok)
	assert.Equal(t, [8]byte{0x80, 0x00, 0x60, 0x02, 0x02, 0x00, 0x01, 0x06}, response.Data)

	response, ok = server.Exchange(requestFrame(0x62B, 0x40, 0x99, 0x99, 0x00, 0, 0, 0, 0))
	require.True(t, ok)
	assert.Equal(t, [8]byte{0x80, 0x99, 0x99, 0x00, 0x00, 0x00, 0x02, 0x06}, response.Data)

	_, ok = server.Exchange(requestFrame(0x62C, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0))
	assert.False(t, ok)
}

func TestExchangeIgnoresNonStandardFrames(t *testing.T) {
	s := &stubSensor{point: sensor.NewPoint(23.5, 23.5, time.Time{})}
	server, bus := newTestServer(t, s)
	for _, id := range []uint32{
		0x62B | can.CanRtrFlag,
		0x62B | can.CanEffFlag,
		0x62B | can.CanErrFlag,
		0x1062B,
	} {
		frame := requestFrame(id, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0)
		_, ok := server.Exchange(frame)
		assert.False(t, ok, "id x%x", id)
		server.Handle(frame)
	}
	// Nothing queued, nothing read
	assert.Len(t, server.rx, 0)
	assert.Empty(t, bus.sentFrames())
	assert.Equal(t, 0, s.reads)
}

func TestRespondIdempotent(t *testing.T) {
	server, _ := newTestServer(t, &stubSensor{point: sensor.NewPoint(-3.0625, -3.5, time.Time{})})
	frame := requestFrame(0x62B, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0)
	first, ok := server.Exchange(frame)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		next, ok := server.Exchange(frame)
		require.True(t, ok)
		assert.Equal(t, first, next)
	}
}

func TestProcess(t *testing.T) {
	server, bus := newTestServer(t, &stubSensor{point: sensor.NewPoint(23.5, 23.5, time.Time{})})
	require.Nil(t, bus.Subscribe(server))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- server.Process(ctx) }()

	// Not addressed frames, no response
	server.Handle(requestFrame(0x62C, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0))
	server.Handle(requestFrame(0x72B, 0x05))
	server.Handle(requestFrame(0x62B, 0x40, 0x00))
	// Addressed frames are answered in order
	server.Handle(requestFrame(0x62B, 0x40, 0x00, 0x60, 0x00, 0, 0, 0, 0))
	server.Handle(requestFrame(0x62B, 0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0))

	assert.Eventually(t, func() bool { return len(bus.sentFrames()) == 2 }, time.Second, 5*time.Millisecond)
	sent := bus.sentFrames()
	assert.Equal(t, [8]byte{0x4F, 0x00, 0x60, 0x00, 0x02, 0x00, 0x00, 0x00}, sent[0].Data)
	assert.Equal(t, [8]byte{0x43, 0x00, 0x60, 0x01, 0x00, 0x00, 0xBC, 0x41}, sent[1].Data)

	cancel()
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("process did not exit")
	}
	// Only the two responses were sent
	assert.Len(t, bus.sentFrames(), 2)
}

func TestProcessSendError(t *testing.T) {
	server, bus := newTestServer(t, &stubSensor{})
	bus.sendErr = errors.New("bus off")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Process(ctx)

	server.Handle(requestFrame(0x62B, 0x40, 0x00, 0x10, 0x00, 0, 0, 0, 0))
	server.Handle(requestFrame(0x62B, 0x40, 0x00, 0x10, 0x00, 0, 0, 0, 0))
	// Errors are not fatal, both requests are attempted
	assert.Eventually(t, func() bool { return len(bus.sentFrames()) == 2 }, time.Second, 5*time.Millisecond)
}
