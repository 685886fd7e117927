package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/pricecrawl/internal/cli"
	"github.com/law-makers/pricecrawl/internal/ui"
)

func main() {
	// Interrupts cancel the running operation; its browser session and any
	// pending pages are released through the context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.AutoDetect(os.Stdout)
	cli.Execute(ctx)
}
