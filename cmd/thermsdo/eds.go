package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samsamfire/thermsdo/pkg/od"
)

func newEdsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "eds",
		Short: "Export the object dictionary as an EDS file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd)
			odict, err := od.New(log.StandardLogger(), cfg.TemperatureIndex)
			if err != nil {
				return err
			}
			if output == "" {
				return od.ExportEDS(odict, od.DefaultDeviceInfo, cmd.OutOrStdout())
			}
			if err = od.ExportEDSFile(odict, od.DefaultDeviceInfo, output); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "EDS written to %v\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout if empty")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "thermsdo v%s\n", Version)
		},
	}
}
