package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PreflightService runs the startup connectivity checks and owns the
// operator-facing startup/error mail. Both checks failing is startup-fatal;
// main exits 1 after a best-effort error notification.
type PreflightService struct {
	APIService    *APIService
	EmailService  *EmailService
	AdminEmail    string
	EmailListFile string
	IntervalHours int
}

func NewPreflightService(apiService *APIService, emailService *EmailService, adminEmail, emailListFile string, intervalHours int) *PreflightService {
	return &PreflightService{
		APIService:    apiService,
		EmailService:  emailService,
		AdminEmail:    adminEmail,
		EmailListFile: emailListFile,
		IntervalHours: intervalHours,
	}
}

// TestAllConnections checks the IPO endpoint and the email provider. Returns
// false only when both diagnostics fail.
func (p *PreflightService) TestAllConnections(ctx context.Context, subscriberCount int) bool {
	logrus.Info("Testing connections...")
	logrus.Infof("Email list contains %d addresses", subscriberCount)

	apiOK := p.APIService.TestConnection(ctx)
	emailOK := p.testEmailConnection(ctx, subscriberCount)

	if !apiOK && !emailOK {
		logrus.Error("Both API and email connectivity checks failed")
		return false
	}
	if !apiOK {
		logrus.Warn("API connectivity check failed; continuing with email only")
	}
	if !emailOK {
		logrus.Warn("Email connectivity check failed; continuing with API only")
	}
	return true
}

// testEmailConnection sends a test notification to the admin address only.
func (p *PreflightService) testEmailConnection(ctx context.Context, subscriberCount int) bool {
	message := fmt.Sprintf(`IPO Alert Bot is working correctly!<br><br>
<strong>Configuration:</strong><br>
&bull; Email list file: %s<br>
&bull; Subscribers: %d email addresses<br>
&bull; Check interval: %d hours<br>
&bull; API endpoint: configured`,
		p.EmailListFile, subscriberCount, p.IntervalHours)

	ok := p.EmailService.SendSystemNotification(ctx, p.AdminEmail,
		"IPO Bot Test - Connection Verified", "Connection Test", message, "info")
	if ok {
		logrus.Info("Email test sent successfully to admin")
	} else {
		logrus.Error("Email test failed")
	}
	return ok
}

// SendStartupNotification tells the admin the bot is live.
func (p *PreflightService) SendStartupNotification(ctx context.Context) bool {
	message := fmt.Sprintf(`Bot is now monitoring IPO openings every %d hours<br>
Using Nepal Time Zone (NPT)<br>
Email list file: %s<br>
Ready to send alerts when IPOs open`,
		p.IntervalHours, p.EmailListFile)

	return p.EmailService.SendSystemNotification(ctx, p.AdminEmail,
		"IPO Alert Bot Started", "IPO Alert Bot Status", message, "success")
}

// SendErrorNotification mails the admin about a runtime or fatal error.
func (p *PreflightService) SendErrorNotification(ctx context.Context, errorMessage string, fatal bool) bool {
	errorType := "Bot Error"
	message := fmt.Sprintf("IPO Alert Bot encountered an error and will attempt to continue:<br><br><code>%s</code>", errorMessage)
	if fatal {
		errorType = "Fatal Error"
		message = fmt.Sprintf("IPO Alert Bot encountered a fatal error and stopped:<br><br><code>%s</code><br><br>Please check the logs and restart the bot.", errorMessage)
	}

	return p.EmailService.SendSystemNotification(ctx, p.AdminEmail,
		"IPO Alert Bot "+errorType, errorType, message, "error")
}
