package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/samsamfire/thermsdo/pkg/config"
)

type configKey struct{}

// NewRootCmd creates the root command and its subcommands
func NewRootCmd() *cobra.Command {
	defaults := config.Default()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "thermsdo",
		Short: "DS1621 thermometer served over CANopen SDO",
		Long: `thermsdo reads a DS1621 temperature sensor over I2C and answers
CANopen SDO expedited upload requests with the live reading.

Node id, object index and sensor address accept decimal or 0x prefixed values.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			log.SetLevel(cfg.Level())
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "ini configuration file")
	flags.Uint8("node", defaults.NodeId, "CANopen node id (1..127)")
	flags.Uint16("indx", defaults.TemperatureIndex, "object dictionary index of the temperature record")
	flags.Uint16("addr", defaults.SensorAddress, "DS1621 I2C address")
	flags.String("interface", defaults.Interface, "CAN interface type e.g. socketcan, virtualcan")
	flags.String("channel", defaults.Channel, "CAN channel e.g. can0, slcan0, localhost:18888")
	flags.String("i2c-bus", defaults.I2CBus, "I2C bus name, empty for the first available one")
	flags.Bool("simulate", defaults.Simulate, "serve a constant simulated temperature")
	flags.Duration("sensor-timeout", defaults.SensorTimeout, "maximum duration of a sensor read, 0 to disable")
	flags.String("log-level", defaults.LogLevel, "log level e.g. debug, info, warn")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReadCmd())
	rootCmd.AddCommand(newEdsCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// loadConfig builds the configuration from defaults, the optional ini file
// and the flags explicitly set on the command line, in that order.
func loadConfig(path string, flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Changed(name) {
			err = apply()
		}
	}
	set("node", func() (e error) { cfg.NodeId, e = flags.GetUint8("node"); return })
	set("indx", func() (e error) { cfg.TemperatureIndex, e = flags.GetUint16("indx"); return })
	set("addr", func() (e error) { cfg.SensorAddress, e = flags.GetUint16("addr"); return })
	set("interface", func() (e error) { cfg.Interface, e = flags.GetString("interface"); return })
	set("channel", func() (e error) { cfg.Channel, e = flags.GetString("channel"); return })
	set("i2c-bus", func() (e error) { cfg.I2CBus, e = flags.GetString("i2c-bus"); return })
	set("simulate", func() (e error) { cfg.Simulate, e = flags.GetBool("simulate"); return })
	set("sensor-timeout", func() (e error) { cfg.SensorTimeout, e = flags.GetDuration("sensor-timeout"); return })
	set("log-level", func() (e error) { cfg.LogLevel, e = flags.GetString("log-level"); return })
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func configFrom(cmd *cobra.Command) config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(config.Config); ok {
		return cfg
	}
	return config.Default()
}
