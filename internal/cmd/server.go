package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/uroborus2s/campus-sync/internal/frontend"
	"github.com/uroborus2s/campus-sync/internal/logger"
)

// CmdServer runs the API server, the job worker pool, and the scheduled
// incremental sync in one process.
func CmdServer() *cobra.Command {
	return &cobra.Command{
		Use:   "server [flags]",
		Short: "Start the sync API server and worker pool",
		RunE:  runCommand(runServer),
	}
}

func runServer(ctx *Context, _ []string) error {
	comp, err := ctx.wire()
	if err != nil {
		return fmt.Errorf("failed to wire engine: %w", err)
	}
	worker, err := ctx.worker(comp)
	if err != nil {
		return err
	}
	api := frontend.New(ctx.Config.Server, comp.engine, comp.aggregator)

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *cron.Cron
	if expr := ctx.Config.Sync.IncrementalCron; expr != "" {
		scheduler = cron.New()
		for _, term := range ctx.Config.Sync.Terms {
			if _, err := scheduler.AddFunc(expr, incrementalJob(runCtx, comp, term)); err != nil {
				return fmt.Errorf("invalid incremental cron %q: %w", expr, err)
			}
		}
		scheduler.Start()
		logger.Info(runCtx, "Incremental sync scheduled", "cron", expr, "terms", ctx.Config.Sync.Terms)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return api.Start(gctx) })
	g.Go(func() error { return worker.Start(gctx) })

	err = g.Wait()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	return err
}

func incrementalJob(ctx context.Context, comp *components, term string) func() {
	return func() {
		if err := comp.engine.IncrementalSync(ctx, term); err != nil {
			logger.Error(ctx, "Scheduled incremental sync failed", "term", term, "error", err)
		}
	}
}
