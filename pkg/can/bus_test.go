package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopBus struct {
	channel string
}

func (b *nopBus) Connect(...any) error                   { return nil }
func (b *nopBus) Disconnect() error                      { return nil }
func (b *nopBus) Send(frame Frame) error                 { return nil }
func (b *nopBus) Subscribe(callback FrameListener) error { return nil }

func TestIsStandardData(t *testing.T) {
	assert.True(t, Frame{ID: 0x62B}.IsStandardData())
	assert.True(t, Frame{ID: 0x7FF}.IsStandardData())
	assert.False(t, Frame{ID: 0x62B | CanRtrFlag}.IsStandardData())
	assert.False(t, Frame{ID: 0x62B | CanEffFlag}.IsStandardData())
	assert.False(t, Frame{ID: 0x62B | CanErrFlag}.IsStandardData())
	assert.False(t, Frame{ID: 0x800}.IsStandardData())
}

func TestNewBus(t *testing.T) {
	RegisterInterface("nop", func(channel string) (Bus, error) {
		return &nopBus{channel: channel}, nil
	})
	bus, err := NewBus("nop", "can7")
	require.Nil(t, err)
	assert.Equal(t, "can7", bus.(*nopBus).channel)
	assert.Contains(t, Interfaces(), "nop")

	_, err = NewBus("unknown", "can0")
	assert.ErrorContains(t, err, "unsupported interface")
}
