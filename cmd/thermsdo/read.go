package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samsamfire/thermsdo/pkg/can"
	"github.com/samsamfire/thermsdo/pkg/config"
	"github.com/samsamfire/thermsdo/pkg/node"
	"github.com/samsamfire/thermsdo/pkg/od"
	"github.com/samsamfire/thermsdo/pkg/sdo"
)

func newReadCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "read <index> <subindex>",
		Short: "Read an object of a running thermometer node",
		Example: `  thermsdo read 0x6000 1
  thermsdo read --interface virtualcan --channel localhost:18888 --node 0x10 0x1000 0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := config.ParseUint(args[0], 16)
			if err != nil {
				return fmt.Errorf("invalid index %q : %w", args[0], err)
			}
			subindex, err := config.ParseUint(args[1], 8)
			if err != nil {
				return fmt.Errorf("invalid subindex %q : %w", args[1], err)
			}
			cfg := configFrom(cmd)
			bus, err := can.NewBus(cfg.Interface, cfg.Channel)
			if err != nil {
				return err
			}
			if err = bus.Connect(); err != nil {
				return err
			}
			defer bus.Disconnect()
			value, err := read(cmd, bus, cfg, timeout, uint16(index), uint8(subindex))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", sdo.DefaultClientTimeoutMs*time.Millisecond, "SDO response timeout")
	return cmd
}

// read uploads the object from the node, values are decoded using the
// dictionary the node is expected to serve.
func read(cmd *cobra.Command, bus can.Bus, cfg config.Config, timeout time.Duration, index uint16, subindex uint8) (string, error) {
	expected, err := od.New(log.StandardLogger(), cfg.TemperatureIndex)
	if err != nil {
		return "", err
	}
	client := sdo.NewSDOClient(bus, log.StandardLogger(), cfg.NodeId, timeout)
	if err = bus.Subscribe(client); err != nil {
		return "", err
	}
	remote := node.NewRemoteNode(client, cfg.TemperatureIndex, expected)
	return remote.Read(cmd.Context(), index, subindex)
}
