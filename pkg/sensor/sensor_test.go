package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSensor struct {
	release chan struct{}
	point   Point
}

func (s *blockingSensor) ReadPoint() (Point, error) {
	<-s.release
	return s.point, nil
}

type failingSensor struct{}

func (failingSensor) ReadPoint() (Point, error) {
	return Point{}, errors.New("i2c: no ack")
}

func TestCelsiusToFahrenheit(t *testing.T) {
	assert.InDelta(t, 32.0, CelsiusToFahrenheit(0), 1e-6)
	assert.InDelta(t, 212.0, CelsiusToFahrenheit(100), 1e-4)
	assert.InDelta(t, 74.3, CelsiusToFahrenheit(23.5), 1e-4)
	assert.InDelta(t, -40.0, CelsiusToFahrenheit(-40), 1e-4)
}

func TestSimulated(t *testing.T) {
	s := NewSimulated(20)
	point, err := s.ReadPoint()
	require.Nil(t, err)
	assert.EqualValues(t, 20, point.Celsius)
	assert.EqualValues(t, 68, point.Fahrenheit)
	assert.False(t, point.Time.IsZero())
}

func TestWithTimeoutPassthrough(t *testing.T) {
	s := WithTimeout(NewSimulated(21.5), time.Second)
	point, err := s.ReadPoint()
	require.Nil(t, err)
	assert.EqualValues(t, 21.5, point.Celsius)

	_, err = WithTimeout(failingSensor{}, time.Second).ReadPoint()
	assert.ErrorContains(t, err, "no ack")

	// Zero timeout disables the wrapper
	simulated := NewSimulated(1)
	assert.Equal(t, Sensor(simulated), WithTimeout(simulated, 0))
}

func TestWithTimeoutStuckRead(t *testing.T) {
	blocking := &blockingSensor{release: make(chan struct{}), point: Point{Celsius: 19}}
	s := WithTimeout(blocking, 20*time.Millisecond)

	_, err := s.ReadPoint()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "timed out")

	// Previous read is still stuck, fail fast
	_, err = s.ReadPoint()
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "pending")

	// Bus recovers
	close(blocking.release)
	assert.Eventually(t, func() bool {
		point, err := s.ReadPoint()
		return err == nil && point.Celsius == 19
	}, time.Second, 5*time.Millisecond)
}
