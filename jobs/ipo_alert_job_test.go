package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/fenilmodi00/ipo-alert-bot/services"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	records []models.IPORecord
	fetches int
}

func (f *fakeSource) FetchOngoingIPOs(ctx context.Context) []models.IPORecord {
	f.fetches++
	return f.records
}

type bulkCall struct {
	recipients []string
	subject    string
}

type fakeMailer struct {
	calls     []bulkCall
	successes int
	succeed   bool
}

func (f *fakeMailer) SendBulk(ctx context.Context, recipients []string, subject, htmlBody string) int {
	f.calls = append(f.calls, bulkCall{recipients: recipients, subject: subject})
	if f.succeed {
		return len(recipients)
	}
	return f.successes
}

type fakeChannel struct {
	ready       bool
	fail        bool
	posts       int
	lastMetrics models.Metrics
}

func (f *fakeChannel) Ready() bool { return f.ready }

func (f *fakeChannel) SendIPOAlert(ctx context.Context, ipo models.IPORecord, metrics models.Metrics) error {
	if f.fail {
		return errors.New("channel unavailable")
	}
	f.posts++
	f.lastMetrics = metrics
	return nil
}

type fakeSubscribers struct {
	list []string
}

func (f *fakeSubscribers) Current() []string { return f.list }

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func nepalDay(day int) time.Time {
	loc := time.FixedZone("NPT", 5*3600+45*60)
	return time.Date(2025, 9, day, 10, 0, 0, 0, loc)
}

func opensOn(finid, date string) models.IPORecord {
	return models.IPORecord{
		CompanyName:   finid + " Company Ltd",
		Finid:         finid,
		OpenDate:      date + " 00:00:00",
		CloseDate:     "2025-09-05 00:00:00",
		SharesOffered: 2000000,
	}
}

func newTestJob(source *fakeSource, mailer *fakeMailer, channel *fakeChannel, clock *fakeClock, markSentOnFailure bool) *IPOAlertJob {
	var notifier ChannelNotifier
	if channel != nil {
		notifier = channel
	}
	return NewIPOAlertJob(
		source,
		services.NewMetricsCalculator(2500000),
		mailer,
		notifier,
		&fakeSubscribers{list: []string{"a@example.com", "b@example.com"}},
		clock,
		shared.NewBotMetrics(),
		markSentOnFailure,
	)
}

func TestCycleIgnoresIPOsNotOpeningToday(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{
		opensOn("YDA", "2025-08-31"),
		opensOn("TMW", "2025-09-02"),
	}}
	mailer := &fakeMailer{succeed: true}
	job := newTestJob(source, mailer, nil, &fakeClock{now: nepalDay(1)}, true)

	alerts := job.Run(context.Background())

	assert.Zero(t, alerts)
	assert.Empty(t, mailer.calls)
	assert.Zero(t, job.SentTodayCount())
}

func TestCycleDeliversOncePerNewKey(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	channel := &fakeChannel{ready: true}
	job := newTestJob(source, mailer, channel, &fakeClock{now: nepalDay(1)}, true)

	alerts := job.Run(context.Background())

	assert.Equal(t, 1, alerts)
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.calls[0].recipients)
	assert.Equal(t, "IPO Alert: SHL Company Ltd Now Open for Subscription", mailer.calls[0].subject)
	assert.Equal(t, 1, channel.posts)
	assert.Equal(t, 1, job.SentTodayCount())

	// The channel received the computed metrics: 2,000,000 shares against
	// 2,500,000 applicants, closing four days out.
	assert.Equal(t, 4, channel.lastMetrics.DaysRemaining)
	assert.InDelta(t, 80.0, channel.lastMetrics.Probability, 0.001)
	assert.Equal(t, "10", channel.lastMetrics.SuggestedQty)
}

func TestCycleSameDayIdempotence(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	channel := &fakeChannel{ready: true}
	job := newTestJob(source, mailer, channel, &fakeClock{now: nepalDay(1)}, true)

	first := job.Run(context.Background())
	second := job.Run(context.Background())

	assert.Equal(t, 1, first)
	assert.Zero(t, second)
	assert.Len(t, mailer.calls, 1)
	assert.Equal(t, 1, channel.posts)
}

func TestCycleDayRolloverClearsDedup(t *testing.T) {
	clock := &fakeClock{now: nepalDay(1)}
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	job := newTestJob(source, mailer, nil, clock, true)

	assert.Equal(t, 1, job.Run(context.Background()))
	assert.Equal(t, "2025-09-01", job.LastCheckedDate())

	// Next calendar day: the set clears and the same symbol may alert again
	// if it reopens.
	clock.now = nepalDay(2)
	source.records = []models.IPORecord{opensOn("SHL", "2025-09-02")}

	assert.Equal(t, 1, job.Run(context.Background()))
	assert.Equal(t, "2025-09-02", job.LastCheckedDate())
	assert.Len(t, mailer.calls, 2)
}

func TestCycleAttemptedCountsAsSent(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: false} // every send fails
	channel := &fakeChannel{ready: true, fail: true}
	job := newTestJob(source, mailer, channel, &fakeClock{now: nepalDay(1)}, true)

	alerts := job.Run(context.Background())

	// Default policy: the key is marked sent even though nothing was
	// delivered, so the next cycle does not retry.
	assert.Equal(t, 1, alerts)
	assert.Equal(t, 1, job.SentTodayCount())

	assert.Zero(t, job.Run(context.Background()))
	assert.Len(t, mailer.calls, 1)
}

func TestCycleRetryPolicyLeavesFailedKeyUnmarked(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: false}
	channel := &fakeChannel{ready: true, fail: true}
	job := newTestJob(source, mailer, channel, &fakeClock{now: nepalDay(1)}, false)

	assert.Zero(t, job.Run(context.Background()))
	assert.Zero(t, job.SentTodayCount())

	// Delivery recovers: the next cycle retries the same key.
	mailer.succeed = true
	channel.fail = false

	assert.Equal(t, 1, job.Run(context.Background()))
	assert.Equal(t, 1, job.SentTodayCount())
	assert.Len(t, mailer.calls, 2)
}

func TestCyclePartialDeliveryStillMarksSent(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{successes: 1} // one of two recipients succeeds
	job := newTestJob(source, mailer, nil, &fakeClock{now: nepalDay(1)}, false)

	// Even under the retry policy, any successful delivery marks the key.
	assert.Equal(t, 1, job.Run(context.Background()))
	assert.Equal(t, 1, job.SentTodayCount())
}

func TestCycleChannelNotReadyIsSkippedNotBlocked(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	channel := &fakeChannel{ready: false}
	job := newTestJob(source, mailer, channel, &fakeClock{now: nepalDay(1)}, true)

	assert.Equal(t, 1, job.Run(context.Background()))
	assert.Zero(t, channel.posts)
	assert.Len(t, mailer.calls, 1)
}

func TestCycleEmptySubscribersSkipsFetch(t *testing.T) {
	source := &fakeSource{records: []models.IPORecord{opensOn("SHL", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	job := NewIPOAlertJob(source, services.NewMetricsCalculator(2500000), mailer, nil,
		&fakeSubscribers{}, &fakeClock{now: nepalDay(1)}, shared.NewBotMetrics(), true)

	assert.Zero(t, job.Run(context.Background()))
	assert.Zero(t, source.fetches)
	assert.Empty(t, mailer.calls)
}

func TestCycleEmptyFetchIsSuccessfulZeroAlertCycle(t *testing.T) {
	source := &fakeSource{}
	mailer := &fakeMailer{succeed: true}
	job := newTestJob(source, mailer, nil, &fakeClock{now: nepalDay(1)}, true)

	assert.Zero(t, job.Run(context.Background()))
	assert.Equal(t, 1, source.fetches)
	assert.Empty(t, mailer.calls)
}

func TestCycleSkipsRecordsWithMissingDates(t *testing.T) {
	noOpen := opensOn("NOP", "2025-09-01")
	noOpen.OpenDate = ""
	noClose := opensOn("NCL", "2025-09-01")
	noClose.CloseDate = ""

	source := &fakeSource{records: []models.IPORecord{noOpen, noClose, opensOn("OK", "2025-09-01")}}
	mailer := &fakeMailer{succeed: true}
	job := newTestJob(source, mailer, nil, &fakeClock{now: nepalDay(1)}, true)

	assert.Equal(t, 1, job.Run(context.Background()))
	require.Len(t, mailer.calls, 1)
	assert.Contains(t, mailer.calls[0].subject, "OK Company Ltd")
}
