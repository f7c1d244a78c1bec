package handlers

import (
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/jobs"
	"github.com/fenilmodi00/ipo-alert-bot/services"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/gofiber/fiber/v2"
)

// StatusHandler serves the read-only observability surface: process health
// and the current cycle/dedup/delivery counters.
type StatusHandler struct {
	Job         *jobs.IPOAlertJob
	Subscribers *services.SubscriberStore
	Discord     *services.DiscordService
	Metrics     *shared.BotMetrics
}

func NewStatusHandler(job *jobs.IPOAlertJob, subscribers *services.SubscriberStore, discord *services.DiscordService, metrics *shared.BotMetrics) *StatusHandler {
	return &StatusHandler{
		Job:         job,
		Subscribers: subscribers,
		Discord:     discord,
		Metrics:     metrics,
	}
}

// Health answers the liveness probe.
func (h *StatusHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Status reports the bot's runtime state.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	discordReady := false
	if h.Discord != nil {
		discordReady = h.Discord.Ready()
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"checked_date":      h.Job.LastCheckedDate(),
		"alerts_sent_today": h.Job.SentTodayCount(),
		"subscriber_count":  h.Subscribers.Count(),
		"discord_ready":     discordReady,
		"counters":          h.Metrics.Snapshot(),
	})
}
