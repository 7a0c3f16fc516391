// Package sensor defines the temperature sensor collaborator used to serve
// live readings, a simulated sensor used when no hardware is present and a
// wrapper bounding the duration of hardware reads.
package sensor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var ErrUnavailable = errors.New("sensor unavailable")

const DefaultReadTimeout = 500 * time.Millisecond

// A single temperature measurement
type Point struct {
	// High resolution (1/16 degC) reading
	Celsius float32
	// High resolution reading, converted
	Fahrenheit float32
	// Standard (1/2 degC) resolution reading
	LowResCelsius float32
	Time          time.Time
}

// A Sensor returns a temperature [Point] or an error wrapping [ErrUnavailable]
type Sensor interface {
	ReadPoint() (Point, error)
}

func CelsiusToFahrenheit(celsius float32) float32 {
	return 32.0 + celsius*9.0/5.0
}

// NewPoint builds a point from a celsius reading
func NewPoint(celsius float32, lowResCelsius float32, now time.Time) Point {
	return Point{
		Celsius:       celsius,
		Fahrenheit:    CelsiusToFahrenheit(celsius),
		LowResCelsius: lowResCelsius,
		Time:          now,
	}
}

// Simulated sensor, returns a constant temperature.
// Used when the hardware could not be initialized.
type Simulated struct {
	celsius float32
}

func NewSimulated(celsius float32) *Simulated {
	return &Simulated{celsius: celsius}
}

func (s *Simulated) ReadPoint() (Point, error) {
	return NewPoint(s.celsius, s.celsius, time.Now()), nil
}

type timeoutSensor struct {
	sensor  Sensor
	timeout time.Duration
	busy    atomic.Bool
}

// WithTimeout bounds every read of s to timeout.
// While a read that timed out is still pending, new reads fail immediately
// so that a stuck bus is never accessed concurrently.
func WithTimeout(s Sensor, timeout time.Duration) Sensor {
	if timeout <= 0 {
		return s
	}
	return &timeoutSensor{sensor: s, timeout: timeout}
}

type readResult struct {
	point Point
	err   error
}

func (s *timeoutSensor) ReadPoint() (Point, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Point{}, fmt.Errorf("%w : previous read still pending", ErrUnavailable)
	}
	done := make(chan readResult, 1)
	go func() {
		point, err := s.sensor.ReadPoint()
		s.busy.Store(false)
		done <- readResult{point: point, err: err}
	}()
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case result := <-done:
		return result.point, result.err
	case <-timer.C:
		return Point{}, fmt.Errorf("%w : read timed out after %v", ErrUnavailable, s.timeout)
	}
}
