//go:build linux

package socketcanraw

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/thermsdo/pkg/can"
)

type frameListener struct {
	mu     sync.Mutex
	frames []can.Frame
}

func (f *frameListener) Handle(frame can.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *frameListener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// Tests needing a bus expect a vcan0 interface to be up
func createSocketCanBus(t *testing.T) *SocketcanBus {
	bus, err := NewSocketCanBus("vcan0")
	if err != nil {
		t.Skipf("vcan0 not available : %v", err)
	}
	socketcanbus := bus.(*SocketcanBus)
	require.Nil(t, socketcanbus.Connect())
	t.Cleanup(func() { socketcanbus.Disconnect() })
	return socketcanbus
}

func TestMarshalFrame(t *testing.T) {
	frame := can.Frame{ID: 0x62B, DLC: 8, Data: [8]byte{0x40, 0x00, 0x60, 0x01}}
	raw := marshalFrame(frame)
	assert.Len(t, raw, FrameSize)
	assert.EqualValues(t, 8, raw[4])
	assert.Equal(t, []byte{0x40, 0x00, 0x60, 0x01, 0, 0, 0, 0}, raw[8:])
	assert.Equal(t, frame, unmarshalFrame(raw))
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, can.Interfaces(), "socketcanraw")
}

func TestSendReceive(t *testing.T) {
	can0 := createSocketCanBus(t)
	can1 := createSocketCanBus(t)
	listener := &frameListener{}
	require.Nil(t, can1.Subscribe(listener))
	for i := 0; i < 100; i++ {
		assert.Nil(t, can0.Send(can.NewFrame(0x100, 0, 8)))
	}
	assert.Eventually(t, func() bool { return listener.count() == 100 }, time.Second, 10*time.Millisecond)
}

func TestIDFilter(t *testing.T) {
	can0 := createSocketCanBus(t)
	can1 := createSocketCanBus(t)
	listener := &frameListener{}
	require.Nil(t, can1.Subscribe(listener))
	require.Nil(t, can1.SetIDFilter(0x62B))
	for i := 0; i < 10; i++ {
		assert.Nil(t, can0.Send(can.NewFrame(0x100, 0, 8)))
		assert.Nil(t, can0.Send(can.NewFrame(0x62B, 0, 8)))
	}
	assert.Eventually(t, func() bool { return listener.count() == 10 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	listener.mu.Lock()
	defer listener.mu.Unlock()
	for _, frame := range listener.frames {
		assert.EqualValues(t, 0x62B, frame.ID)
	}
}
