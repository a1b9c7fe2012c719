package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/uroborus2s/campus-sync/internal/aggregator"
	"github.com/uroborus2s/campus-sync/internal/backoff"
	"github.com/uroborus2s/campus-sync/internal/calendar"
	"github.com/uroborus2s/campus-sync/internal/config"
	"github.com/uroborus2s/campus-sync/internal/dispatch"
	"github.com/uroborus2s/campus-sync/internal/logger"
	"github.com/uroborus2s/campus-sync/internal/persistence/postgres"
	"github.com/uroborus2s/campus-sync/internal/queue"
	syncengine "github.com/uroborus2s/campus-sync/internal/sync"
)

// Context holds everything a command needs: resolved configuration, a logger
// context, and lazily wired engine components.
type Context struct {
	context.Context

	Command *cobra.Command
	Config  *config.Config

	pool  *pgxpool.Pool
	queue *queue.RedisQueue
}

// NewContext loads configuration and builds the logger context for a command
// invocation.
func NewContext(cmd *cobra.Command) (*Context, error) {
	ctx := cmd.Context()

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	var loaderOpts []config.LoaderOption
	if cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}
	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var opts []logger.Option
	if cfg.Global.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Global.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Global.LogFormat))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	return &Context{Context: ctx, Command: cmd, Config: cfg}, nil
}

// Pool returns the shared Postgres pool, connecting on first use.
func (c *Context) Pool() (*pgxpool.Pool, error) {
	if c.pool != nil {
		return c.pool, nil
	}
	if c.Config.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is not configured")
	}
	pool, err := postgres.Connect(c.Context, c.Config.Database.DSN)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return pool, nil
}

// Queue returns the shared Redis-backed job queue, connecting on first use.
func (c *Context) Queue() (*queue.RedisQueue, error) {
	if c.queue != nil {
		return c.queue, nil
	}
	q := queue.NewRedisQueue(c.Config.Redis)
	if err := q.Ping(c.Context); err != nil {
		return nil, err
	}
	c.queue = q
	return q, nil
}

// Close releases pooled resources.
func (c *Context) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if c.queue != nil {
		_ = c.queue.Close()
	}
}

// components is the fully wired engine: stores, queue, executors, aggregator
// and orchestrator, everything a server or one-shot command composes from.
type components struct {
	engine     *syncengine.Engine
	aggregator *aggregator.Aggregator
	registry   *dispatch.Registry
	consumer   queue.Consumer
	policy     backoff.RetryPolicy
}

// wire builds the engine over Postgres and Redis.
func (c *Context) wire() (*components, error) {
	pool, err := c.Pool()
	if err != nil {
		return nil, err
	}
	q, err := c.Queue()
	if err != nil {
		return nil, err
	}

	tasks := postgres.NewTaskStore(pool)
	occurrences := postgres.NewOccurrenceStore(pool)
	roster := postgres.NewRoster(pool)
	checkpoints := postgres.NewCheckpointStore(pool)

	gateway := calendar.New(c.Config.Calendar)
	dispatcher := dispatch.NewDispatcher(q)
	agg := aggregator.New(tasks, occurrences, dispatcher)
	engine := syncengine.New(tasks, occurrences, roster, checkpoints, dispatcher, gateway, c.Config.Sync.Location)

	registry := dispatch.NewRegistry(
		dispatch.NewScheduleCreate(gateway, c.Config.Calendar, c.Config.Sync.Location),
		dispatch.NewScheduleDelete(gateway),
		dispatch.NewAttendanceCreate(gateway, c.Config.Sync.Location),
	)

	policy := backoff.NewExponentialBackoffPolicy(c.Config.Sync.RetryInterval)
	policy.MaxRetries = c.Config.Sync.MaxRetries

	return &components{
		engine:     engine,
		aggregator: agg,
		registry:   registry,
		consumer:   q,
		policy:     policy,
	}, nil
}

// worker builds the worker pool over the wired components.
func (c *Context) worker(comp *components) (*queue.Worker, error) {
	pool, err := c.Pool()
	if err != nil {
		return nil, err
	}
	tasks := postgres.NewTaskStore(pool)
	return queue.NewWorker(comp.consumer, comp.registry, tasks, comp.aggregator, comp.policy, c.Config.Sync.Workers), nil
}

// runCommand adapts a Context-based runner to cobra's RunE shape.
func runCommand(run func(ctx *Context, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd)
		if err != nil {
			return err
		}
		defer ctx.Close()
		if err := run(ctx, args); err != nil {
			logger.Error(ctx, "Command failed", "command", cmd.Name(), "error", err)
			return err
		}
		return nil
	}
}
