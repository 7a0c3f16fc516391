package node

import (
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/thermsdo/pkg/config"
	"github.com/samsamfire/thermsdo/pkg/sensor"
)

// A SensorOpener opens the hardware sensor described by the configuration
type SensorOpener func(cfg config.Config, logger *log.Logger) (sensor.Sensor, io.Closer, error)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSensor returns the sensor to serve. Simulation mode is selected once
// here, either on request or if the hardware cannot be opened. Hardware
// reads are bounded by the configured timeout.
func OpenSensor(cfg config.Config, logger *log.Logger, open SensorOpener) (s sensor.Sensor, closer io.Closer, simulated bool) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	entry := logger.WithField("service", "[SENSOR]")
	if cfg.Simulate || open == nil {
		entry.Infof("simulation mode, serving constant %v degC", cfg.SimulatedCelsius)
		return sensor.NewSimulated(cfg.SimulatedCelsius), nopCloser{}, true
	}
	hw, closer, err := open(cfg, logger)
	if err != nil {
		entry.Warnf("falling back to simulation mode (%v degC) : %v", cfg.SimulatedCelsius, err)
		return sensor.NewSimulated(cfg.SimulatedCelsius), nopCloser{}, true
	}
	if closer == nil {
		closer = nopCloser{}
	}
	return sensor.WithTimeout(hw, cfg.SensorTimeout), closer, false
}
