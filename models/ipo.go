package models

import (
	"fmt"
	"strings"
)

// IPORecord is one entry from the ongoing-IPO API response. The upstream
// payload carries dates as "2006-01-02 15:04:05" strings; only the date
// portion is meaningful to the bot. Optional fields may be absent.
type IPORecord struct {
	CompanyName   string `json:"company_name"`
	Finid         string `json:"finid"`
	Sector        string `json:"Sector"`
	OfferPrice    string `json:"offer_price"`
	OpenDate      string `json:"open_date"`
	CloseDate     string `json:"close_date"`
	SharesOffered int64  `json:"shares_offered"`
	IssueManager  string `json:"issue_manager"`
}

// DateOnly strips any time-of-day component from an upstream date string.
// "2025-09-01 00:00:00" becomes "2025-09-01"; an empty input stays empty.
func DateOnly(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if idx := strings.IndexByte(value, ' '); idx >= 0 {
		return value[:idx]
	}
	return value
}

// OpenDateOnly returns the date portion of the subscription open date.
func (r IPORecord) OpenDateOnly() string {
	return DateOnly(r.OpenDate)
}

// CloseDateOnly returns the date portion of the subscription close date.
func (r IPORecord) CloseDateOnly() string {
	return DateOnly(r.CloseDate)
}

// DisplayName returns the company name, falling back when the field is absent.
func (r IPORecord) DisplayName() string {
	if r.CompanyName == "" {
		return "Unknown Company"
	}
	return r.CompanyName
}

// IPOKey identifies a single opening event for dedup purposes. The same
// symbol reopening on a different date is a distinct key.
type IPOKey string

// AlertKey builds the dedup key for a record from its symbol and the
// date-only portion of its open date.
func (r IPORecord) AlertKey() IPOKey {
	return IPOKey(fmt.Sprintf("%s_%s", r.Finid, r.OpenDateOnly()))
}

// OngoingResponse is the envelope the IPO API wraps its list in.
type OngoingResponse struct {
	Response []IPORecord `json:"response"`
}
