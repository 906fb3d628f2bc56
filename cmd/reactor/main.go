package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/poltergeist/reactor/pkg/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.ExecuteWithVersion(ctx, version); err != nil {
		// a failed build has already printed its report
		if !errors.Is(err, cli.ErrBuildFailed) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		stop()
		os.Exit(1)
	}
}
