// FallLog - Accelerometer Fall Logger Tool
//
// FallLog downloads the fall data an accelerometer logger keeps in EEPROM
// over a serial port, and reports the samples, statistics and falls found.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccollicutt/falllog/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
