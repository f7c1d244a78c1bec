package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOnly(t *testing.T) {
	assert.Equal(t, "2025-09-01", DateOnly("2025-09-01 00:00:00"))
	assert.Equal(t, "2025-09-01", DateOnly("2025-09-01"))
	assert.Equal(t, "", DateOnly(""))
	assert.Equal(t, "", DateOnly("   "))
}

func TestAlertKeyDistinctPerOpening(t *testing.T) {
	first := IPORecord{Finid: "SHL", OpenDate: "2025-09-01 00:00:00"}
	reopened := IPORecord{Finid: "SHL", OpenDate: "2025-10-15 00:00:00"}

	assert.Equal(t, IPOKey("SHL_2025-09-01"), first.AlertKey())
	assert.NotEqual(t, first.AlertKey(), reopened.AlertKey())
}

func TestOngoingResponseToleratesAbsentFields(t *testing.T) {
	payload := `{"response": [{"company_name": "Minimal Ltd", "finid": "MIN",
		"open_date": "2025-09-01 00:00:00", "close_date": "2025-09-05 00:00:00",
		"shares_offered": 100}]}`

	var resp OngoingResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &resp))
	require.Len(t, resp.Response, 1)

	record := resp.Response[0]
	assert.Empty(t, record.Sector)
	assert.Empty(t, record.IssueManager)
	assert.Equal(t, "Minimal Ltd", record.DisplayName())
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "Unknown Company", IPORecord{}.DisplayName())
}
