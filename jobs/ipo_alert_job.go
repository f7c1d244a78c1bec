package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/fenilmodi00/ipo-alert-bot/services"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IPOSource provides the current IPO list, degrading to nil on any fetch
// failure.
type IPOSource interface {
	FetchOngoingIPOs(ctx context.Context) []models.IPORecord
}

// BulkMailer delivers one message to many recipients, best-effort per
// recipient, and reports how many sends succeeded.
type BulkMailer interface {
	SendBulk(ctx context.Context, recipients []string, subject, htmlBody string) int
}

// ChannelNotifier posts a single alert to the chat channel. A send while the
// channel is not ready must be dropped, never queued or blocked on.
type ChannelNotifier interface {
	Ready() bool
	SendIPOAlert(ctx context.Context, ipo models.IPORecord, metrics models.Metrics) error
}

// SubscriberSource exposes the current subscriber snapshot.
type SubscriberSource interface {
	Current() []string
}

// IPOAlertJob runs one fetch-filter-notify pass per invocation and owns the
// per-day dedup state. Cycles are driven sequentially by the scheduler; the
// dedup state is still locked because the status handler reads it.
type IPOAlertJob struct {
	Source      IPOSource
	Calculator  *services.MetricsCalculator
	Mailer      BulkMailer
	Channel     ChannelNotifier
	Subscribers SubscriberSource
	Clock       Clock
	Metrics     *shared.BotMetrics

	// MarkSentOnFailure controls whether an alert whose every delivery
	// failed still counts as sent for dedup. True matches the historical
	// behavior: no duplicate spam, at the cost of a silently suppressed
	// alert during a full outbound outage.
	MarkSentOnFailure bool

	// mutex guards the dedup state: the scheduler goroutine writes, the
	// status handler reads.
	mutex           sync.RWMutex
	sentToday       map[models.IPOKey]struct{}
	lastCheckedDate string
}

func NewIPOAlertJob(source IPOSource, calculator *services.MetricsCalculator, mailer BulkMailer, channel ChannelNotifier, subscribers SubscriberSource, clock Clock, metrics *shared.BotMetrics, markSentOnFailure bool) *IPOAlertJob {
	return &IPOAlertJob{
		Source:            source,
		Calculator:        calculator,
		Mailer:            mailer,
		Channel:           channel,
		Subscribers:       subscribers,
		Clock:             clock,
		Metrics:           metrics,
		MarkSentOnFailure: markSentOnFailure,
		sentToday:         make(map[models.IPOKey]struct{}),
	}
}

// SentTodayCount returns the number of dedup entries for the current day.
func (j *IPOAlertJob) SentTodayCount() int {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return len(j.sentToday)
}

// LastCheckedDate returns the date the dedup window currently covers.
func (j *IPOAlertJob) LastCheckedDate() string {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.lastCheckedDate
}

func (j *IPOAlertJob) rolloverIfNewDay(today string) bool {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	if j.lastCheckedDate == today {
		return false
	}
	j.sentToday = make(map[models.IPOKey]struct{})
	j.lastCheckedDate = today
	return true
}

func (j *IPOAlertJob) alreadySent(key models.IPOKey) bool {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	_, sent := j.sentToday[key]
	return sent
}

func (j *IPOAlertJob) markSent(key models.IPOKey) {
	j.mutex.Lock()
	j.sentToday[key] = struct{}{}
	j.mutex.Unlock()
}

// Run executes one alert cycle and returns the number of alerts sent. A
// fetch failure, an empty subscriber list, or zero openings are all
// successful zero-alert cycles.
func (j *IPOAlertJob) Run(ctx context.Context) int {
	now := j.Clock.Now()
	today := now.Format("2006-01-02")

	log := logrus.WithField("cycle_id", uuid.New().String()[:8])
	log.Infof("Checking IPO alerts for %s (Nepal Time: %s)", today, now.Format("2006-01-02 15:04:05"))

	// Sole dedup reset trigger: rollover happens lazily at the first cycle
	// of a new day, not at midnight.
	if j.rolloverIfNewDay(today) {
		log.Info("New day detected - cleared sent alerts tracker")
	}

	subscribers := j.Subscribers.Current()
	if len(subscribers) == 0 {
		log.Warn("No email addresses loaded - no IPO alerts will be sent")
		return 0
	}

	ipoData := j.Source.FetchOngoingIPOs(ctx)
	if len(ipoData) == 0 {
		log.Warn("No IPO data received or API error")
		return 0
	}

	alertsSent := 0
	for _, ipo := range ipoData {
		openDate := ipo.OpenDateOnly()
		closeDate := ipo.CloseDateOnly()
		if openDate == "" || closeDate == "" {
			log.Warnf("Missing date info for IPO: %s", ipo.DisplayName())
			continue
		}

		if openDate != today {
			continue
		}

		key := ipo.AlertKey()
		if j.alreadySent(key) {
			log.Infof("Alert already sent today for %s (%s)", ipo.DisplayName(), ipo.Finid)
			continue
		}

		metrics := j.Calculator.Compute(ipo, today)

		emailBody, err := services.RenderIPOAlertEmail(ipo, metrics, j.Calculator.TotalApplicants)
		if err != nil {
			log.Errorf("Error rendering alert email for %s: %v", ipo.DisplayName(), err)
			continue
		}
		subject := fmt.Sprintf("IPO Alert: %s Now Open for Subscription", ipo.DisplayName())

		// Fan out: each path is independent and best-effort.
		successfulSends := j.Mailer.SendBulk(ctx, subscribers, subject, emailBody)
		if j.Metrics != nil {
			j.Metrics.RecordEmailSends(successfulSends, len(subscribers)-successfulSends)
		}

		channelDelivered := false
		if j.Channel != nil {
			if j.Channel.Ready() {
				if err := j.Channel.SendIPOAlert(ctx, ipo, metrics); err != nil {
					log.Errorf("Error sending channel alert for %s: %v", ipo.DisplayName(), err)
				} else {
					channelDelivered = true
				}
			} else {
				log.Warnf("Channel not ready, skipping channel alert for %s", ipo.DisplayName())
			}
			if j.Metrics != nil {
				j.Metrics.RecordDiscordPost(channelDelivered)
			}
		}

		if !j.MarkSentOnFailure && successfulSends == 0 && !channelDelivered {
			log.Warnf("All deliveries failed for %s (%s); leaving eligible for retry next cycle", ipo.DisplayName(), ipo.Finid)
			continue
		}

		// Attempted counts as sent: the key is marked regardless of
		// per-recipient outcomes under the default policy.
		j.markSent(key)
		alertsSent++

		log.Infof("IPO Alert sent for %s (%s) to %d subscribers - Probability: %.1f%%",
			ipo.DisplayName(), ipo.Finid, successfulSends, metrics.Probability)
	}

	if alertsSent == 0 {
		log.Info("No new IPO openings found for today")
	} else {
		log.Infof("Sent %d IPO alert(s) to %d subscribers", alertsSent, len(subscribers))
	}
	return alertsSent
}
