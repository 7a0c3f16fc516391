// Command thermsdo serves a DS1621 temperature reading to CANopen masters
// through expedited SDO uploads.
package main

import (
	"fmt"
	"os"

	_ "github.com/samsamfire/thermsdo/pkg/can/socketcan"
	_ "github.com/samsamfire/thermsdo/pkg/can/socketcanraw"
	_ "github.com/samsamfire/thermsdo/pkg/can/virtual"
)

// Set at build time
var Version = "0.1.0"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
