package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fieldops/backend/internal/config"
	"github.com/fieldops/backend/internal/db"
	httpapi "github.com/fieldops/backend/internal/http"
	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/notify"
	"github.com/fieldops/backend/internal/scheduler"
	"github.com/fieldops/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "fieldops-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	outbox := &notify.Outbox{
		Store: store,
		Adapters: map[string]notify.Adapter{
			models.ChannelEmail: &notify.SMTPAdapter{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUser,
				Password: cfg.SMTPPass,
				From:     cfg.SMTPFrom,
			},
			models.ChannelSMS:      notify.NewGatewayAdapter(cfg.GatewayURL, cfg.GatewayToken, models.ChannelSMS, cfg.GatewayRPS, cfg.GatewayBurst),
			models.ChannelWhatsApp: notify.NewGatewayAdapter(cfg.GatewayURL, cfg.GatewayToken, models.ChannelWhatsApp, cfg.GatewayRPS, cfg.GatewayBurst),
		},
		SendTimeout: cfg.SendTimeout,
		StaleAfter:  cfg.StaleAfter,
		Logger:      logger,
	}

	engine := &service.DispatchEngine{
		Orders:        store,
		Technicians:   store,
		Queue:         store,
		Notifications: store,
		Clients:       store,
		Logger:        logger,
	}

	automation := &service.AutomationService{
		Store:                  store,
		Logger:                 logger,
		MaintenanceHorizonDays: cfg.MaintenanceHorizonDays,
		LeadCooldownDays:       cfg.LeadCooldownDays,
	}

	var runner *scheduler.Runner
	if cfg.SchedulerEnabled {
		runner = scheduler.New(scheduler.Config{
			DrainInterval: cfg.DrainInterval,
			DailyHour:     cfg.DailyJobHour,
			WeeklyWeekday: time.Weekday(cfg.WeeklyJobWeekday),
		}, time.Now, scheduler.Jobs{
			Drain: outbox.Drain,
			Daily: func(ctx context.Context) error {
				summary, err := automation.RunDaily(ctx)
				if err != nil {
					return err
				}
				logger.Info().
					Int("leads_created", summary.LeadsCreated).
					Int("reminders_queued", summary.RemindersQueued).
					Int("invoices_created", summary.InvoicesCreated).
					Msg("daily automation")
				return nil
			},
			Weekly: func(ctx context.Context) error {
				summary, err := automation.SegmentClients(ctx)
				if err != nil {
					return err
				}
				logger.Info().
					Int("clients_evaluated", summary.ClientsEvaluated).
					Int("changed", summary.Changed).
					Msg("client segmentation")
				return nil
			},
		}, logger)
		runner.Start(ctx)
		logger.Info().Msg("scheduler started")
	}

	router := httpapi.Router(cfg, store, engine, outbox, automation, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if runner != nil {
		runner.Stop()
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
