package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/config"
	"github.com/fenilmodi00/ipo-alert-bot/handlers"
	"github.com/fenilmodi00/ipo-alert-bot/jobs"
	"github.com/fenilmodi00/ipo-alert-bot/services"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const discordReadyTimeout = 30 * time.Second

func main() {
	cfg := config.LoadConfig()
	setupLogging(cfg)

	if missing := cfg.MissingRequired(); len(missing) > 0 {
		logrus.Errorf("Missing required environment variables: %s", strings.Join(missing, ", "))
		logrus.Error("Please check your .env file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientFactory := shared.NewHTTPClientFactory(30 * time.Second)
	defer clientFactory.CleanupAllClients()

	apiService := services.NewAPIService(cfg.OngoingURL, clientFactory)
	emailService := services.NewEmailService(cfg.BrevoAPIKey, cfg.FromName, cfg.FromEmail, clientFactory)
	discordService := services.NewDiscordService(cfg.DiscordToken, cfg.DiscordGuildID, cfg.DiscordChannelID, cfg.TotalApplicants, clientFactory)
	calculator := services.NewMetricsCalculator(cfg.TotalApplicants)
	preflight := services.NewPreflightService(apiService, emailService, cfg.AdminEmail, cfg.EmailListFile, cfg.CheckIntervalHours)

	subscriberStore := services.NewSubscriberStore()
	subscriberStore.Replace(services.LoadSubscriberFile(cfg.EmailListFile))

	// Discord runs its own connection lifecycle; the cycle only asks Ready().
	discordService.Start(ctx)
	if discordService.Enabled() {
		waitForDiscordReady(ctx, discordService)
	}

	if !preflight.TestAllConnections(ctx, subscriberStore.Count()) {
		logrus.Error("Connection tests failed. Please check your configuration.")
		preflight.SendErrorNotification(ctx, "Connection tests failed during startup", true)
		discordService.SendSystemNotification(ctx, "Fatal Error",
			"Bot encountered a fatal error during startup: connection tests failed", "error")
		os.Exit(1)
	}

	if discordService.Ready() {
		if err := discordService.SendSystemNotification(ctx, "Bot Startup",
			"The IPO Alert Bot is online and ready to send notifications.", "success"); err != nil {
			logrus.Warnf("Failed to send Discord startup notification: %v", err)
		}
	}
	preflight.SendStartupNotification(ctx)

	watcher := services.NewSubscriberWatcher(cfg.EmailListFile, subscriberStore)
	if err := watcher.Start(ctx); err != nil {
		logrus.Errorf("File watcher unavailable, subscriber list will not hot-reload: %v", err)
	}

	metrics := shared.NewBotMetrics()
	var channel jobs.ChannelNotifier
	if discordService.Enabled() {
		channel = discordService
	}
	job := jobs.NewIPOAlertJob(apiService, calculator, emailService, channel,
		subscriberStore, jobs.NewZoneClock(config.Timezone()), metrics, cfg.MarkSentOnFailure)

	scheduler := jobs.NewScheduler(job, cfg.CheckInterval(), metrics)
	scheduler.OnCycleError = func(ctx context.Context, message string) {
		preflight.SendErrorNotification(ctx, message, false)
		discordService.SendSystemNotification(ctx, "Bot Error",
			"An error occurred: "+message+"\nContinuing after 5 minutes...", "error")
	}

	app := setupStatusServer(job, subscriberStore, discordService, metrics)
	go func() {
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logrus.Errorf("Status server failed: %v", err)
		}
	}()

	logrus.Info("=== IPO Alert Bot Started ===")
	logrus.Infof("Check interval: %d hours", cfg.CheckIntervalHours)
	logrus.Info("=====================================")

	scheduler.Start(ctx)

	logrus.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logrus.Warnf("Status server shutdown: %v", err)
	}
	logrus.Info("Bot shutdown complete")
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}))
}

func waitForDiscordReady(ctx context.Context, discord *services.DiscordService) {
	deadline := time.Now().Add(discordReadyTimeout)
	for !discord.Ready() && time.Now().Before(deadline) {
		logrus.Info("Waiting for Discord bot to be ready...")
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}

	if discord.Ready() {
		logrus.Info("Discord bot is ready!")
	} else {
		logrus.Warn("Discord bot failed to start within timeout")
	}
}

func setupStatusServer(job *jobs.IPOAlertJob, store *services.SubscriberStore, discord *services.DiscordService, metrics *shared.BotMetrics) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	statusHandler := handlers.NewStatusHandler(job, store, discord, metrics)

	app.Get("/health", statusHandler.Health)
	app.Get("/api/v1/status", statusHandler.Status)
	return app
}
