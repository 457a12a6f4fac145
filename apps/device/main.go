package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/TTR-x/ttr-gestion-sub002/core"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "DEVICE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{conf: conf, logger: logger}
	if err := cli.newRootCommand().ExecuteContext(ctx); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		stop()
		os.Exit(1)
	}
}
