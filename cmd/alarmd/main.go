package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/alarmd/internal/application"
	"github.com/example/alarmd/internal/config"
	httptransport "github.com/example/alarmd/internal/http"
	"github.com/example/alarmd/internal/notify"
	"github.com/example/alarmd/internal/persistence/sqlite"
	"github.com/example/alarmd/internal/recurrence"
	"github.com/example/alarmd/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := cfg.Location()
	if err != nil {
		logger.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	policy := application.Policy{
		UpcomingLead:  cfg.UpcomingLead,
		ImminentLead:  cfg.ImminentLead,
		DefaultSnooze: cfg.DefaultSnooze,
		MissedTimeout: cfg.MissedTimeout,
	}
	engine := recurrence.NewEngine(location)
	notifier := notify.NewLogNotifier(logger)
	idGenerator := uuid.NewString

	var service *application.AlarmService
	wake := scheduler.NewTimerScheduler(func(token scheduler.Token) {
		if err := service.OnWakeCallback(context.Background(), token); err != nil {
			logger.Error("wake callback failed", "token", token.String(), "error", err)
		}
	}, logger)
	defer wake.Close()

	service = application.NewAlarmServiceWithLogger(storage, wake, notifier, engine, policy, idGenerator, time.Now, logger)

	if err := service.OnBoot(context.Background()); err != nil {
		logger.Error("boot reconciliation reported errors", "error", err)
	}

	alarmHandler := httptransport.NewAlarmHandler(service, logger)
	router := httptransport.NewRouter(httptransport.RouterConfig{Alarms: alarmHandler})
	handler := httptransport.RequestLogger(logger)(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("alarm service listening", "addr", server.Addr, "timezone", location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
