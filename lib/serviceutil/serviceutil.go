package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// RunEvery invokes the job immediately and then once per interval until
// the context ends. Scheduling lives here, at the invocation boundary, so
// jobs themselves stay run-to-completion functions. A failed run is logged
// and does not stop the schedule.
func RunEvery(ctx context.Context, name string, interval time.Duration, job func(ctx context.Context) error) {
	run := func() {
		start := time.Now()
		err := job(ctx)
		switch {
		case err == nil:
			slog.Info("job run complete", "job", name, "took", time.Since(start))
		case ctx.Err() != nil:
			slog.Info("job run interrupted", "job", name)
		default:
			slog.Error("job run failed", "job", name, "err", err.Error())
		}
	}

	run()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			return
		}
	}
}
