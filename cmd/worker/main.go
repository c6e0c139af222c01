package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/internal/config"
	"github.com/OFFIS-RIT/kgops/internal/queue"
	"github.com/OFFIS-RIT/kgops/internal/schedule"
	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load("")
	if err != nil {
		app.InitLogger(config.Default())
		logger.Fatal("Invalid configuration", "err", err)
	}
	app.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()

	conn, err := queue.Dial(cfg.RabbitMQ)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	sched := schedule.New()
	if cfg.Schedule.Enabled {
		if err := registerJobs(sched, a); err != nil {
			logger.Fatal("Failed to register scheduled jobs", "err", err)
		}
		sched.Start()
	}

	handler := queue.NewHandler(queue.NewHandlerParams{
		Migrator:       a.Migration,
		Pipeline:       a.FineTune,
		Users:          a.Store,
		Locks:          a.Locks,
		PipelineConfig: a.PipelineConfig,
	})
	if err := queue.Consume(ctx, conn, queue.Queues, handler, a.AI); err != nil {
		logger.Error("Consumer stopped", "err", err)
	}

	logger.Info("Shutdown signal received, exiting...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
}

// registerJobs installs the periodic audit, retention cleanup and, when
// configured, the automated fine-tune pipeline.
func registerJobs(s *schedule.Scheduler, a *app.App) error {
	if _, err := s.Add("audit", a.Config.Schedule.Audit, 0, func(ctx context.Context) error {
		users, err := a.Store.ListUserIDs(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			rep, err := a.Validation.Validate(ctx, u)
			if err != nil {
				return err
			}
			if rep.Consistent() {
				continue
			}
			for _, is := range rep.Issues {
				logger.Warn("[Audit] "+is.Message, "user_id", u, "code", is.Code, "severity", is.Severity)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if _, err := s.Add("cleanup", a.Config.Schedule.Cleanup, 0, func(ctx context.Context) error {
		res, err := a.FineTune.Cleanup(ctx, a.Config.FineTune.RetentionDays)
		if err != nil {
			return err
		}
		logger.Info("[Cleanup] Retention applied", "artifacts", res.ArtifactsDeleted, "jobs", res.JobsDeleted)
		return nil
	}); err != nil {
		return err
	}

	_, err := s.Add("pipeline", a.Config.Schedule.Pipeline, 2*time.Hour, func(ctx context.Context) error {
		users, err := a.Store.ListUserIDs(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if _, err := a.FineTune.Refresh(ctx, u); err != nil {
				logger.Warn("[FineTune] Failed to refresh jobs", "user_id", u, "err", err)
			}
			if _, err := a.FineTune.RunPipeline(ctx, u, a.PipelineConfig()); err != nil {
				logger.Error("[FineTune] Pipeline failed", "user_id", u, "err", err)
			}
		}
		return nil
	})
	return err
}
