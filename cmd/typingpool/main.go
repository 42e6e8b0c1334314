package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "typingpool:", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for a batch that partly failed and 1 for everything else.
func exitCode(err error) int {
	var agg *domain.AggregateError
	if errors.As(err, &agg) {
		return 2
	}
	return 1
}
