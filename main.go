package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dudesahn/wblt-exerciser/cmd"
	"github.com/dudesahn/wblt-exerciser/utils"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	defer utils.CleanupLogger()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
