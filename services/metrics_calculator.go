package services

import (
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/sirupsen/logrus"
)

const (
	conservativeQty = "10"
	favorableQty    = "more than 10"

	conservativeAdvice = "Conservative approach recommended due to high demand."
	favorableAdvice    = "Higher allocation possible due to favorable probability."
)

// MetricsCalculator derives allotment metrics for an IPO record. The
// probability is a disclosed rough estimate against an assumed fixed number
// of total applicants, not a prediction.
type MetricsCalculator struct {
	TotalApplicants int64
}

func NewMetricsCalculator(totalApplicants int64) *MetricsCalculator {
	return &MetricsCalculator{TotalApplicants: totalApplicants}
}

// Compute is pure and never fails: records with a missing or unparsable
// close date get a sentinel result with a distinct recommendation instead.
// today must be a YYYY-MM-DD string in the target timezone.
func (c *MetricsCalculator) Compute(ipo models.IPORecord, today string) models.Metrics {
	closeDate := ipo.CloseDateOnly()
	if closeDate == "" {
		logrus.Warnf("Missing close date for %s, metrics unavailable", ipo.DisplayName())
		return models.Metrics{
			SuggestedQty:   conservativeQty,
			Recommendation: "Unable to calculate metrics - missing close date",
		}
	}

	closeTime, err := time.Parse("2006-01-02", closeDate)
	if err != nil {
		logrus.Errorf("Date parsing error for %s: %v", ipo.DisplayName(), err)
		return models.Metrics{
			SuggestedQty:   conservativeQty,
			Recommendation: "Unable to calculate metrics - date error",
		}
	}

	todayTime, err := time.Parse("2006-01-02", today)
	if err != nil {
		logrus.Errorf("Date parsing error for today value %q: %v", today, err)
		return models.Metrics{
			SuggestedQty:   conservativeQty,
			Recommendation: "Unable to calculate metrics - date error",
		}
	}

	// May be zero or negative when the source data is stale; not clamped.
	remDays := int(closeTime.Sub(todayTime).Hours() / 24)

	var prob float64
	if ipo.SharesOffered > 0 {
		prob = float64(ipo.SharesOffered) / float64(c.TotalApplicants) * 100
	}

	metrics := models.Metrics{
		DaysRemaining:  remDays,
		Probability:    prob,
		SuggestedQty:   conservativeQty,
		Recommendation: conservativeAdvice,
	}
	if prob >= 90 {
		metrics.SuggestedQty = favorableQty
		metrics.Recommendation = favorableAdvice
	}
	return metrics
}
