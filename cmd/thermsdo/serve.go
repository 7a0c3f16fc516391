package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/samsamfire/thermsdo/pkg/config"
	"github.com/samsamfire/thermsdo/pkg/node"
	"github.com/samsamfire/thermsdo/pkg/sensor"
	"github.com/samsamfire/thermsdo/pkg/sensor/ds1621"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer SDO upload requests with the sensor reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, configFrom(cmd))
		},
	}
}

func openDS1621(cfg config.Config, logger *log.Logger) (sensor.Sensor, io.Closer, error) {
	d, err := ds1621.Open(cfg.I2CBus, cfg.SensorAddress, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, d, nil
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	logger := log.StandardLogger()
	bus, err := can.NewBus(cfg.Interface, cfg.Channel)
	if err != nil {
		return err
	}
	if err = bus.Connect(); err != nil {
		return err
	}
	defer bus.Disconnect()

	s, closer, simulated := node.OpenSensor(cfg, logger, openDS1621)
	defer closer.Close()

	local, err := node.NewLocalNode(bus, logger, cfg.NodeId, cfg.TemperatureIndex, s)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"interface": cfg.Interface,
		"channel":   cfg.Channel,
		"simulated": simulated,
	}).Infof("serving temperature at x%x on node x%x", cfg.TemperatureIndex, cfg.NodeId)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = local.Run(ctx)
	log.Info("User exit request")
	return err
}
