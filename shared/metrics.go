package shared

import (
	"sync"
	"time"
)

// BotMetrics tracks runtime counters for the status endpoint. All methods
// are safe for concurrent use; the scheduler writes while the status handler
// reads.
type BotMetrics struct {
	mutex             sync.RWMutex
	cyclesRun         int64
	cycleErrors       int64
	alertsSentToday   int
	emailSuccesses    int64
	emailFailures     int64
	discordPosts      int64
	discordSkips      int64
	lastCycleTime     time.Time
	lastCycleDuration time.Duration
}

func NewBotMetrics() *BotMetrics {
	return &BotMetrics{}
}

// RecordCycle records one completed alert cycle.
func (m *BotMetrics) RecordCycle(alertsSent int, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cyclesRun++
	m.alertsSentToday = alertsSent
	m.lastCycleTime = time.Now()
	m.lastCycleDuration = duration
}

// RecordCycleError records a cycle that ended in a recovered panic.
func (m *BotMetrics) RecordCycleError() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cycleErrors++
}

// RecordEmailSends adds bulk email outcomes from one alert.
func (m *BotMetrics) RecordEmailSends(successes, failures int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.emailSuccesses += int64(successes)
	m.emailFailures += int64(failures)
}

// RecordDiscordPost counts a channel post, delivered or skipped.
func (m *BotMetrics) RecordDiscordPost(delivered bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if delivered {
		m.discordPosts++
	} else {
		m.discordSkips++
	}
}

// Snapshot is a point-in-time copy of the counters for JSON serving.
type MetricsSnapshot struct {
	CyclesRun         int64     `json:"cycles_run"`
	CycleErrors       int64     `json:"cycle_errors"`
	AlertsSentToday   int       `json:"alerts_sent_today"`
	EmailSuccesses    int64     `json:"email_successes"`
	EmailFailures     int64     `json:"email_failures"`
	DiscordPosts      int64     `json:"discord_posts"`
	DiscordSkips      int64     `json:"discord_skips"`
	LastCycleTime     time.Time `json:"last_cycle_time"`
	LastCycleDuration string    `json:"last_cycle_duration"`
}

func (m *BotMetrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return MetricsSnapshot{
		CyclesRun:         m.cyclesRun,
		CycleErrors:       m.cycleErrors,
		AlertsSentToday:   m.alertsSentToday,
		EmailSuccesses:    m.emailSuccesses,
		EmailFailures:     m.emailFailures,
		DiscordPosts:      m.discordPosts,
		DiscordSkips:      m.discordSkips,
		LastCycleTime:     m.lastCycleTime,
		LastCycleDuration: m.lastCycleDuration.String(),
	}
}
