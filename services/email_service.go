package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/sirupsen/logrus"
)

const (
	brevoSendURL     = "https://api.brevo.com/v3/smtp/email"
	emailSendTimeout = 10 * time.Second
	bulkSendDelay    = 500 * time.Millisecond
)

// EmailService delivers transactional email through the Brevo API. Each send
// is independent and best-effort; a failed recipient is logged and skipped.
type EmailService struct {
	apiKey        string
	fromName      string
	fromEmail     string
	sendURL       string
	clientFactory *shared.HTTPClientFactory
	rateLimiter   *shared.SendRateLimiter
}

func NewEmailService(apiKey, fromName, fromEmail string, clientFactory *shared.HTTPClientFactory) *EmailService {
	return &EmailService{
		apiKey:        apiKey,
		fromName:      fromName,
		fromEmail:     fromEmail,
		sendURL:       brevoSendURL,
		clientFactory: clientFactory,
		rateLimiter:   shared.NewSendRateLimiter(bulkSendDelay),
	}
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendRequest struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
}

// Send delivers one email. Brevo answers 201 on acceptance; anything else is
// a logged failure, never an escaped error.
func (s *EmailService) Send(ctx context.Context, recipient, subject, htmlBody string) bool {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:      brevoParty{Name: s.fromName, Email: s.fromEmail},
		To:          []brevoParty{{Email: recipient}},
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		shared.NewServiceError(shared.ErrorCategoryValidation,
			"Failed to encode email payload", "EmailService", "Send", false, err).LogError()
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(payload))
	if err != nil {
		shared.NewServiceError(shared.ErrorCategoryConfiguration,
			"Failed to build email request", "EmailService", "Send", false, err).LogError()
		return false
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.clientFactory.Client(emailSendTimeout)
	resp, err := client.Do(req)
	if err != nil {
		shared.NewServiceError(shared.ErrorCategoryDelivery,
			"Error sending email to "+recipient, "EmailService", "Send", true, err).LogError()
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logrus.Errorf("Failed to send email to %s: %s %s", recipient, resp.Status, string(body))
		return false
	}

	logrus.Infof("Email sent successfully to %s", recipient)
	return true
}

// SendBulk delivers one message to every recipient, continuing past
// per-recipient failures, and returns the number of successes. The rate
// limiter keeps consecutive sends under the provider's limit.
func (s *EmailService) SendBulk(ctx context.Context, recipients []string, subject, htmlBody string) int {
	if len(recipients) == 0 {
		logrus.Warn("No email addresses to send to")
		return 0
	}

	successfulSends := 0
	for _, recipient := range recipients {
		s.rateLimiter.Wait()
		if s.Send(ctx, recipient, subject, htmlBody) {
			successfulSends++
		}
	}

	logrus.Infof("Bulk email sent: %d/%d successful", successfulSends, len(recipients))
	return successfulSends
}

// SendSystemNotification delivers an operator-facing message to the admin
// address, rendered with the system notification template.
func (s *EmailService) SendSystemNotification(ctx context.Context, adminEmail, subject, title, message, kind string) bool {
	body, err := RenderSystemNotificationEmail(title, message, kind)
	if err != nil {
		logrus.Errorf("Error rendering system notification email: %v", err)
		return false
	}
	return s.Send(ctx, adminEmail, subject, body)
}
