package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/fenilmodi00/ipo-alert-bot/models"
)

var ipoAlertTemplate = template.Must(template.New("ipo_alert").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>IPO Alert</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8f9fa;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
        <div style="background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); padding: 30px 40px; text-align: center;">
            <h1 style="color: #ffffff; margin: 0; font-size: 24px;">IPO Opening Alert</h1>
            <p style="color: rgba(255,255,255,0.9); margin: 8px 0 0 0; font-size: 14px;">Investment Opportunity Notification</p>
        </div>
        <div style="padding: 40px;">
            <div style="background-color: #e3f2fd; border-left: 4px solid #2196f3; padding: 20px; margin-bottom: 30px;">
                <h2 style="color: #1976d2; margin: 0 0 8px 0; font-size: 20px;">{{.CompanyName}}</h2>
                <p style="color: #424242; margin: 0; font-size: 14px;">IPO is now open for subscription</p>
            </div>
            <h3 style="color: #333; border-bottom: 2px solid #f0f0f0; padding-bottom: 10px;">Issue Details</h3>
            <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
                <tr><td style="padding: 12px 0; color: #666;">Symbol</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.Symbol}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Sector</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.Sector}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Offer Price</td><td style="padding: 12px 0; color: #333; font-weight: 600;">NPR {{.OfferPrice}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Opening Date</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.OpenDate}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Closing Date</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.CloseDate}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Shares Offered</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.SharesOffered}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Issue Manager</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.IssueManager}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Days Remaining</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.DaysRemaining}}</td></tr>
            </table>
            <h3 style="color: #333; border-bottom: 2px solid #f0f0f0; padding-bottom: 10px;">Investment Analysis</h3>
            <table style="width: 100%; border-collapse: collapse; font-size: 14px;">
                <tr><td style="padding: 12px 0; color: #666;">Allotment Probability</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.Probability}}</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Recommended Quantity</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.SuggestedQty}} units</td></tr>
                <tr><td style="padding: 12px 0; color: #666;">Strategy</td><td style="padding: 12px 0; color: #333; font-weight: 600;">{{.Recommendation}}</td></tr>
            </table>
            <div style="background-color: #fff3e0; border-left: 4px solid #ff9800; padding: 16px; margin-top: 30px; font-size: 13px; color: #666;">
                The probability is a rough estimate based on an assumed {{.TotalApplicants}} total applications. It is not investment advice.
            </div>
        </div>
        <div style="background-color: #f5f5f5; padding: 20px 40px; text-align: center; font-size: 12px; color: #999;">
            IPO Alert Bot &bull; Nepal Time
        </div>
    </div>
</body>
</html>
`))

var systemNotificationTemplate = template.Must(template.New("system_notification").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; background-color: #f8f9fa;">
    <div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
        <div style="background-color: {{.Color}}; padding: 24px 40px; text-align: center;">
            <h1 style="color: #ffffff; margin: 0; font-size: 20px;">{{.Title}}</h1>
        </div>
        <div style="padding: 30px 40px; font-size: 14px; color: #424242;">
            {{.Message}}
        </div>
        <div style="background-color: #f5f5f5; padding: 16px 40px; text-align: center; font-size: 12px; color: #999;">
            IPO Alert System &bull; Nepal Time
        </div>
    </div>
</body>
</html>
`))

type ipoAlertEmailData struct {
	CompanyName     string
	Symbol          string
	Sector          string
	OfferPrice      string
	OpenDate        string
	CloseDate       string
	SharesOffered   string
	IssueManager    string
	DaysRemaining   string
	Probability     string
	SuggestedQty    string
	Recommendation  string
	TotalApplicants string
}

type systemNotificationEmailData struct {
	Title   string
	Message template.HTML
	Color   string
}

// systemNotificationColor maps a notification kind to its banner color.
func systemNotificationColor(kind string) string {
	switch kind {
	case "success":
		return "#4caf50"
	case "warning":
		return "#ff9800"
	case "error":
		return "#f44336"
	default:
		return "#2196f3"
	}
}

// RenderIPOAlertEmail builds the HTML body for a subscriber alert. Formatting
// only; all numbers arrive precomputed.
func RenderIPOAlertEmail(ipo models.IPORecord, metrics models.Metrics, totalApplicants int64) (string, error) {
	data := ipoAlertEmailData{
		CompanyName:     ipo.DisplayName(),
		Symbol:          valueOrNA(ipo.Finid),
		Sector:          valueOrNA(ipo.Sector),
		OfferPrice:      valueOrNA(ipo.OfferPrice),
		OpenDate:        ipo.OpenDateOnly(),
		CloseDate:       ipo.CloseDateOnly(),
		SharesOffered:   formatCount(ipo.SharesOffered),
		IssueManager:    valueOrNA(ipo.IssueManager),
		DaysRemaining:   fmt.Sprintf("%d", metrics.DaysRemaining),
		Probability:     fmt.Sprintf("%.1f%%", metrics.Probability),
		SuggestedQty:    metrics.SuggestedQty,
		Recommendation:  metrics.Recommendation,
		TotalApplicants: formatCount(totalApplicants),
	}

	var buf bytes.Buffer
	if err := ipoAlertTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderSystemNotificationEmail builds the HTML body for operator mail. The
// message may carry markup of its own.
func RenderSystemNotificationEmail(title, message, kind string) (string, error) {
	data := systemNotificationEmailData{
		Title:   title,
		Message: template.HTML(message),
		Color:   systemNotificationColor(kind),
	}

	var buf bytes.Buffer
	if err := systemNotificationTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func valueOrNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

// formatCount renders an integer with thousands separators.
func formatCount(n int64) string {
	raw := fmt.Sprintf("%d", n)
	if n < 0 {
		return raw
	}
	var out []byte
	for i, digit := range []byte(raw) {
		if i > 0 && (len(raw)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	return string(out)
}
