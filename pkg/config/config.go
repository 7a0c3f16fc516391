// Package config holds the process wide configuration of the responder.
// It is built once at startup from defaults, an optional ini file and
// command line overrides, and never modified afterwards.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sensor"
	"github.com/samsamfire/thermsdo/pkg/sensor/ds1621"
)

const (
	DefaultNodeId           uint8   = 43
	DefaultInterface                = "socketcan"
	DefaultChannel                  = "slcan0"
	DefaultSimulatedCelsius float32 = 20.0
	DefaultLogLevel                 = "info"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	// CAN node id, responds to x600 + NodeId
	NodeId uint8
	// Object dictionary index of the temperature record
	TemperatureIndex uint16
	// I2C address of the DS1621
	SensorAddress uint16
	// I2C bus name, empty for the first available bus
	I2CBus string
	// Upper bound of a single sensor read, 0 to disable
	SensorTimeout time.Duration
	// Force simulation mode, even if the sensor is present
	Simulate bool
	// Temperature served in simulation mode
	SimulatedCelsius float32
	// CAN interface type e.g. socketcan, virtualcan
	Interface string
	// CAN channel e.g. can0, slcan0, localhost:18888
	Channel  string
	LogLevel string
}

func Default() Config {
	return Config{
		NodeId:           DefaultNodeId,
		TemperatureIndex: od.DefaultTemperatureIndex,
		SensorAddress:    ds1621.DefaultAddress,
		SensorTimeout:    sensor.DefaultReadTimeout,
		SimulatedCelsius: DefaultSimulatedCelsius,
		Interface:        DefaultInterface,
		Channel:          DefaultChannel,
		LogLevel:         DefaultLogLevel,
	}
}

// Load returns the default configuration, overridden by the values
// present in the ini file at path, e.g.
//
//	[node]
//	id = 43
//	temperature_index = 0x6000
//
//	[sensor]
//	address = 0x48
//	bus = /dev/i2c-1
//	timeout = 500ms
//	simulate = false
//	simulated_celsius = 20.0
//
//	[can]
//	interface = socketcan
//	channel = slcan0
//
//	[log]
//	level = info
func Load(path string) (Config, error) {
	cfg := Default()
	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config %v : %w", path, err)
	}
	if err = cfg.apply(file); err != nil {
		return cfg, fmt.Errorf("%w : %v : %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

func (cfg *Config) apply(file *ini.File) error {
	node := file.Section("node")
	nodeId, err := parseUint(node, "id", 8, uint64(cfg.NodeId))
	if err != nil {
		return err
	}
	cfg.NodeId = uint8(nodeId)
	index, err := parseUint(node, "temperature_index", 16, uint64(cfg.TemperatureIndex))
	if err != nil {
		return err
	}
	cfg.TemperatureIndex = uint16(index)

	sensorSection := file.Section("sensor")
	address, err := parseUint(sensorSection, "address", 16, uint64(cfg.SensorAddress))
	if err != nil {
		return err
	}
	cfg.SensorAddress = uint16(address)
	cfg.I2CBus = sensorSection.Key("bus").MustString(cfg.I2CBus)
	if sensorSection.HasKey("timeout") {
		cfg.SensorTimeout, err = sensorSection.Key("timeout").Duration()
		if err != nil {
			return fmt.Errorf("[sensor] timeout : %w", err)
		}
	}
	if sensorSection.HasKey("simulate") {
		cfg.Simulate, err = sensorSection.Key("simulate").Bool()
		if err != nil {
			return fmt.Errorf("[sensor] simulate : %w", err)
		}
	}
	if sensorSection.HasKey("simulated_celsius") {
		celsius, err := sensorSection.Key("simulated_celsius").Float64()
		if err != nil {
			return fmt.Errorf("[sensor] simulated_celsius : %w", err)
		}
		cfg.SimulatedCelsius = float32(celsius)
	}

	canSection := file.Section("can")
	cfg.Interface = canSection.Key("interface").MustString(cfg.Interface)
	cfg.Channel = canSection.Key("channel").MustString(cfg.Channel)

	cfg.LogLevel = file.Section("log").Key("level").MustString(cfg.LogLevel)
	return nil
}

// Integers accept decimal or 0x prefixed hexadecimal values
func parseUint(section *ini.Section, name string, bitSize int, current uint64) (uint64, error) {
	if !section.HasKey(name) {
		return current, nil
	}
	value, err := ParseUint(section.Key(name).String(), bitSize)
	if err != nil {
		return 0, fmt.Errorf("[%v] %v : %w", section.Name(), name, err)
	}
	return value, nil
}

// ParseUint parses decimal, 0x hexadecimal or 0o octal values
func ParseUint(value string, bitSize int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(value), 0, bitSize)
}

// Validate checks that the configuration is usable
func (cfg Config) Validate() error {
	switch {
	case cfg.NodeId < 1 || cfg.NodeId > 127:
		return fmt.Errorf("%w : node id %v not in range 1..127", ErrInvalidConfig, cfg.NodeId)
	case cfg.TemperatureIndex == 0 || cfg.TemperatureIndex == od.IndexDeviceType:
		return fmt.Errorf("%w : temperature index x%x is reserved", ErrInvalidConfig, cfg.TemperatureIndex)
	case cfg.SensorAddress > 0x7F:
		return fmt.Errorf("%w : sensor address x%x is not a 7 bit address", ErrInvalidConfig, cfg.SensorAddress)
	case cfg.SensorTimeout < 0:
		return fmt.Errorf("%w : negative sensor timeout %v", ErrInvalidConfig, cfg.SensorTimeout)
	case cfg.Interface == "":
		return fmt.Errorf("%w : empty CAN interface", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w : %v", ErrInvalidConfig, err)
	}
	return nil
}

// Level returns the logrus level, [log.InfoLevel] if invalid
func (cfg Config) Level() log.Level {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
