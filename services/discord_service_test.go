package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiscordService(apiBase string) *DiscordService {
	service := NewDiscordService("test-token", "guild-1", "channel-1", 2500000, shared.NewHTTPClientFactory(2*time.Second))
	service.apiBase = apiBase
	return service
}

func TestProbabilityIndicator(t *testing.T) {
	color, label := probabilityIndicator(80)
	assert.Equal(t, 0x4CAF50, color)
	assert.Equal(t, "High", label)

	color, label = probabilityIndicator(30)
	assert.Equal(t, 0xFF9800, color)
	assert.Equal(t, "Medium", label)

	color, label = probabilityIndicator(5)
	assert.Equal(t, 0xF44336, color)
	assert.Equal(t, "Low", label)
}

func TestSendIPOAlertNotReadyIsDropped(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	service := newTestDiscordService(server.URL)

	err := service.SendIPOAlert(context.Background(), models.IPORecord{Finid: "SHL"}, models.Metrics{})

	assert.Error(t, err)
	assert.False(t, called, "a send while not ready must be dropped, not forwarded")
}

func TestSendIPOAlertPostsEmbed(t *testing.T) {
	var captured discordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/channel-1/messages", r.URL.Path)
		assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := newTestDiscordService(server.URL)
	service.setReady(true)

	ipo := models.IPORecord{
		CompanyName:   "Sunrise Hydro Ltd",
		Finid:         "SHL",
		OpenDate:      "2025-09-01 00:00:00",
		CloseDate:     "2025-09-05 00:00:00",
		SharesOffered: 2000000,
	}
	metrics := models.Metrics{DaysRemaining: 4, Probability: 80, SuggestedQty: "10", Recommendation: "x"}

	require.NoError(t, service.SendIPOAlert(context.Background(), ipo, metrics))

	require.Len(t, captured.Embeds, 1)
	assert.Contains(t, captured.Embeds[0].Title, "Sunrise Hydro Ltd")
	assert.Equal(t, 0x4CAF50, captured.Embeds[0].Color)
	// Four days remaining is not close enough to warrant the mention.
	assert.Contains(t, captured.Content, "IPO ALERT")
	assert.NotContains(t, captured.Content, "@everyone")
}

func TestSendIPOAlertMentionsEveryoneWhenClosingSoon(t *testing.T) {
	var captured discordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
	}))
	defer server.Close()

	service := newTestDiscordService(server.URL)
	service.setReady(true)

	metrics := models.Metrics{DaysRemaining: 2, Probability: 10, SuggestedQty: "10"}
	require.NoError(t, service.SendIPOAlert(context.Background(), models.IPORecord{Finid: "SHL"}, metrics))

	assert.Contains(t, captured.Content, "@everyone")
}

func TestSendSystemNotificationAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	service := newTestDiscordService(server.URL)
	service.setReady(true)

	assert.Error(t, service.SendSystemNotification(context.Background(), "Bot Error", "boom", "error"))
}

func TestGatewayConcurrentHeartbeatWrites(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Hello with a tiny heartbeat interval keeps the ticker goroutine
		// writing while the reader answers requested heartbeats below.
		if conn.WriteJSON(map[string]interface{}{"op": opHello, "d": map[string]int{"heartbeat_interval": 1}}) != nil {
			return
		}
		var identify gatewayPayload
		if conn.ReadJSON(&identify) != nil {
			return
		}

		go func() {
			for i := 0; i < 200; i++ {
				if conn.WriteJSON(map[string]interface{}{"op": opHeartbeat}) != nil {
					return
				}
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	service := newTestDiscordService(server.URL)
	service.gatewayURL = "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	// Both write paths run concurrently for the session's lifetime; the
	// race detector fails this test if the writes are not serialized.
	assert.NoError(t, service.runGatewaySession(ctx))
}

func TestDisabledServiceNeverReady(t *testing.T) {
	service := NewDiscordService("", "", "", 2500000, shared.NewHTTPClientFactory(time.Second))

	assert.False(t, service.Enabled())
	assert.False(t, service.Ready())
	assert.Error(t, service.SendIPOAlert(context.Background(), models.IPORecord{}, models.Metrics{}))
}
