package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/clock"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/config"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/httpapi"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/notify"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/scheduler"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/storage"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/telegram"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/infrastructure/webhook"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/logging"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.SQLStore
	engine *usecase.Engine
}

// New opens the store, seeds configured policies and builds the engine.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, storage.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN},
		baseLogger.With("component", "storage"))
	if err != nil {
		return nil, err
	}

	engine := usecase.NewEngine(usecase.EngineDeps{
		Store:    store,
		Clock:    clock.System{Location: cfg.Scheduler.Location()},
		Notifier: buildNotifier(cfg.Notifications, baseLogger),
		Logger:   baseLogger.With("component", "engine"),
	})

	a := &Application{cfg: cfg, logger: baseLogger, store: store, engine: engine}
	if err := a.seedPolicies(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// Engine exposes the scheduling engine to one-shot commands.
func (a *Application) Engine() *usecase.Engine {
	return a.engine
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

func (a *Application) seedPolicies(ctx context.Context) error {
	for _, pc := range a.cfg.Policies {
		p, err := pc.Policy()
		if err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
		if existing, err := a.store.Policy(ctx, p.Name); err == nil {
			p.CreatedAt = existing.CreatedAt
		}
		if _, err := a.engine.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
	}
	return nil
}

func buildNotifier(cfg config.NotificationConfig, logger *slog.Logger) ports.PublishNotifier {
	var fan notify.Fanout
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		fan = append(fan, telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.PerSecond))
		logger.Debug("telegram notifications enabled", "chat_id", cfg.Telegram.ChatID)
	}
	if cfg.Webhook.URL != "" {
		fan = append(fan, webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Token, cfg.Webhook.Timeout))
		logger.Debug("cache webhook enabled", "url", cfg.Webhook.URL)
	}
	if len(fan) == 0 {
		return nil
	}
	return fan
}

// Serve runs the cron trigger and the admin API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(),
		a.logger.With("component", "cron"))
	if err := driver.Validate(); err != nil {
		return err
	}
	sched := usecase.NewScheduler(driver, a.engine, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.cfg.HTTP.AdminToken == "" {
		a.logger.Warn("admin token not set, admin API rejects every request")
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpapi.New(a.engine, a.cfg.HTTP.AdminToken, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", srv.Addr, "cron", a.cfg.Scheduler.CronExpression,
			"timezone", a.cfg.Scheduler.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop", "error", err)
	}
	return serveErr
}
