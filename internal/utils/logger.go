// Package utils provides flags, logging and version helpers for the rpc broker.
package utils

import (
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

// LogSetup configures the logging system based on CLI context flags
func LogSetup(ctx *cli.Context) error {
	output := io.Writer(os.Stderr)
	usecolor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) && os.Getenv("TERM") != "dumb"
	if usecolor {
		output = colorable.NewColorableStderr()
	}

	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))

	var handler slog.Handler
	if ctx.Bool(logDebugFlag.Name) {
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	} else {
		handler = log.NewTerminalHandlerWithLevel(output, level, usecolor)
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}
