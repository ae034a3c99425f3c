package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"target_audit_reminder/internal/app"
	"target_audit_reminder/internal/domain/notification"
	"target_audit_reminder/internal/domain/reminder"
	"target_audit_reminder/internal/infra/broadcast"
	"target_audit_reminder/internal/infra/config"
	idb "target_audit_reminder/internal/infra/database"
	"target_audit_reminder/internal/infra/email"
	"target_audit_reminder/internal/infra/logger"
	"target_audit_reminder/internal/infra/metrics"
	"target_audit_reminder/internal/infra/scheduler"
	"target_audit_reminder/internal/infra/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"log_level":     cfg.LogLevel,
		"environment":   cfg.Environment,
		"timezone":      cfg.Location.String(),
		"poll_interval": cfg.PollInterval.String(),
		"email":         cfg.EmailProvider,
	}).Info("Target audit reminder starting...")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	auditorRepo := idb.NewPostgresAuditorRepository(db, cfg.Location)
	completionCounter := idb.NewPostgresCompletionCounter(db, cfg.Location)
	settingsRepo := idb.NewPostgresSettingsRepository(db)

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(promRegistry)
	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, promRegistry, logger.Component("metrics"))
		if err := metricsServer.Start(); err != nil {
			mainLogger.WithError(err).Fatal("Could not start metrics server")
		}
	}

	// Channels
	hub := broadcast.NewHub(broadcast.DefaultQueueSize, cfg.CallTimeout, logger.Component("broadcast"))
	hub.Subscribe(broadcast.NewLogListener(logger.Component("broadcast_log")))

	var emailSender notification.EmailSender
	switch cfg.EmailProvider {
	case config.EmailProviderSendgrid:
		emailSender = email.NewSendgridSender(cfg.SendgridAPIKey, cfg.AppName, cfg.EmailFromName, cfg.EmailFromAddr, logger.Component("email"))
	default:
		emailSender = email.NewConsoleSender(cfg.AppName, logger.Component("email"))
	}

	resolver := app.NewRecipientResolver(settingsRepo, cfg.CallTimeout, logger.Component("recipients"))
	dispatcher := app.NewDispatcher(hub, emailSender, cfg.CallTimeout, recorder, logger.Component("dispatcher"))

	// Telegram is optional
	var bot *telebot.Bot
	var alerter app.Alerter
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		client := telegram.NewTelebotAdapter(bot)
		if cfg.TelegramBroadcastChatID != 0 {
			hub.Subscribe(telegram.NewBroadcastListener(client, cfg.TelegramBroadcastChatID))
			mainLogger.WithField("chat_id", cfg.TelegramBroadcastChatID).Info("Telegram broadcast listener subscribed.")
		}
		if cfg.AdminTelegramID != 0 {
			alerter = telegram.NewAlerter(client, cfg.AdminTelegramID)
		}
	}

	reminderService := app.NewReminderService(
		auditorRepo,
		completionCounter,
		resolver,
		dispatcher,
		alerter,
		recorder,
		app.ReminderServiceConfig{
			Policy: reminder.Policy{
				SafetyOffset:        cfg.SafetyOffset,
				StagnationThreshold: cfg.StagnationThreshold,
			},
			Location:         cfg.Location,
			CallTimeout:      cfg.CallTimeout,
			Concurrency:      cfg.Concurrency,
			ListFailureAlert: cfg.ListFailureAlert,
		},
		logger.Component("reminder_service"),
	)
	mainLogger.Info("Reminder service initialized.")

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	if bot != nil {
		adminService := app.NewAdminService(auditorRepo, reminderService, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.Component("telegram"))
		telegram.RegisterAdminHandlers(appCtx, bot, adminService, cfg.AdminTelegramID, logger.Component("telegram"))
		mainLogger.Info("Telegram command handlers registered.")
		go bot.Start()
	}

	reminderScheduler := scheduler.NewReminderScheduler(reminderService, cfg.PollInterval, cfg.Location, logger.Component("scheduler"))
	if err := reminderScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start reminder scheduler")
	}

	mainLogger.Info("Application setup complete.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := reminderScheduler.Stop(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	cancelApp()
	if bot != nil {
		bot.Stop()
	}
	hub.Stop()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Metrics server did not stop cleanly")
		}
	}
	mainLogger.Info("Application shut down gracefully.")
}
