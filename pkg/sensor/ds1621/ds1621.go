// Package ds1621 drives a Maxim/Dallas DS1621 digital thermometer over I2C.
//
// The device is configured in continuous conversion mode and read in high
// resolution using the counter and slope registers.
package ds1621

import (
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/samsamfire/thermsdo/pkg/sensor"
)

const DefaultAddress uint16 = 0x48

// DS1621 commands
const (
	cmdStopConvert     = 0x22
	cmdAccessTH        = 0xA1
	cmdAccessTL        = 0xA2
	cmdReadCounter     = 0xA8
	cmdReadSlope       = 0xA9
	cmdReadTemperature = 0xAA
	cmdAccessConfig    = 0xAC
	cmdStartConvert    = 0xEE
)

const (
	configOneShot   = 0x01
	configWriteTime = 100 * time.Millisecond
)

var errNoSlope = errors.New("slope counter is zero")

// Device is a DS1621 on an I2C bus
type Device struct {
	logger *log.Entry
	dev    *i2c.Dev
	closer io.Closer
	now    func() time.Time
}

// New configures the DS1621 at addr on bus for continuous conversion
// and starts converting.
func New(bus i2c.Bus, addr uint16, logger *log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	d := &Device{
		logger: logger.WithField("service", "[DS1621]"),
		dev:    &i2c.Dev{Bus: bus, Addr: addr},
		now:    time.Now,
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("%w : failed to initialize DS1621 at x%x : %v", sensor.ErrUnavailable, addr, err)
	}
	d.logger.Infof("DS1621 initialized at addr x%x", addr)
	return d, nil
}

// Open initializes the host drivers, opens the named I2C bus
// ("" for the first available one) and configures the DS1621 at addr.
func Open(busName string, addr uint16, logger *log.Logger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w : host init : %v", sensor.ErrUnavailable, err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("%w : opening i2c bus %q : %v", sensor.ErrUnavailable, busName, err)
	}
	d, err := New(bus, addr, logger)
	if err != nil {
		bus.Close()
		return nil, err
	}
	d.closer = bus
	return d, nil
}

func (d *Device) init() error {
	config, err := d.readByte(cmdAccessConfig)
	if err != nil {
		return err
	}
	if config&configOneShot != 0 {
		config &^= configOneShot
		d.logger.Infof("writing config register x%x", config)
		if err := d.dev.Tx([]byte{cmdAccessConfig, config}, nil); err != nil {
			return err
		}
		// EEPROM write cycle
		time.Sleep(configWriteTime)
	}
	return d.dev.Tx([]byte{cmdStartConvert}, nil)
}

func (d *Device) readByte(cmd byte) (byte, error) {
	var buf [1]byte
	if err := d.dev.Tx([]byte{cmd}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadPoint implements [sensor.Sensor]
func (d *Device) ReadPoint() (sensor.Point, error) {
	var temperature [2]byte
	if err := d.dev.Tx([]byte{cmdReadTemperature}, temperature[:]); err != nil {
		return sensor.Point{}, fmt.Errorf("%w : reading temperature : %v", sensor.ErrUnavailable, err)
	}
	count, err := d.readByte(cmdReadCounter)
	if err != nil {
		return sensor.Point{}, fmt.Errorf("%w : reading counter : %v", sensor.ErrUnavailable, err)
	}
	slope, err := d.readByte(cmdReadSlope)
	if err != nil {
		return sensor.Point{}, fmt.Errorf("%w : reading slope : %v", sensor.ErrUnavailable, err)
	}
	celsius, lowRes, err := Convert(temperature[0], temperature[1], count, slope)
	if err != nil {
		return sensor.Point{}, fmt.Errorf("%w : %v", sensor.ErrUnavailable, err)
	}
	return sensor.NewPoint(celsius, lowRes, d.now()), nil
}

// Convert the raw registers into the high resolution (1/16 degC) and
// standard resolution (1/2 degC) temperatures.
// msb is the signed integer part, bit 7 of lsb the half degree.
func Convert(msb, lsb, count, slope byte) (celsius float32, lowRes float32, err error) {
	lowRes = float32(int8(msb))
	if lsb&0x80 != 0 {
		lowRes += 0.5
	}
	if slope == 0 {
		return 0, 0, errNoSlope
	}
	celsius = float32(int8(msb)) - 0.25 + float32(int(slope)-int(count))/float32(slope)
	return celsius, lowRes, nil
}

// Stop conversions and release the bus if opened with [Open]
func (d *Device) Close() error {
	err := d.dev.Tx([]byte{cmdStopConvert}, nil)
	if d.closer != nil {
		if closeErr := d.closer.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
