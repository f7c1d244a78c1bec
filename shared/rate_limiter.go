package shared

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SendRateLimiter enforces a minimum delay between outbound sends so bulk
// email stays under the provider's rate limit. Thread safe.
type SendRateLimiter struct {
	minimumDelay time.Duration
	lastSendTime time.Time
	mutex        sync.Mutex
	sendCount    int64
}

func NewSendRateLimiter(minimumDelay time.Duration) *SendRateLimiter {
	return &SendRateLimiter{
		minimumDelay: minimumDelay,
		lastSendTime: time.Now().Add(-minimumDelay),
	}
}

// Wait blocks until the minimum delay has elapsed since the previous send.
func (limiter *SendRateLimiter) Wait() {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	elapsed := time.Since(limiter.lastSendTime)
	if elapsed < limiter.minimumDelay {
		remaining := limiter.minimumDelay - elapsed

		logrus.WithFields(logrus.Fields{
			"component":       "SendRateLimiter",
			"remaining_delay": remaining,
			"send_count":      limiter.sendCount + 1,
		}).Debug("Enforcing send rate limit delay")

		time.Sleep(remaining)
	}

	limiter.lastSendTime = time.Now()
	limiter.sendCount++
}

// SendCount returns the total number of sends gated through the limiter.
func (limiter *SendRateLimiter) SendCount() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.sendCount
}
