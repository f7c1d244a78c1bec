package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-alert-bot/models"
	"github.com/fenilmodi00/ipo-alert-bot/shared"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	discordGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	discordAPIBase    = "https://discord.com/api/v10"
	discordTimeout    = 10 * time.Second

	// Gateway opcodes.
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opHello          = 10
	opHeartbeatACK   = 11
	reconnectBackoff = 15 * time.Second
)

// DiscordService maintains the bot's gateway connection and posts alerts to
// one fixed channel. The connection lifecycle runs on its own goroutine,
// independent of the alert cycle; the cycle only asks Ready() and fires a
// send. A send while not ready is dropped, not queued.
type DiscordService struct {
	token           string
	guildID         string
	channelID       string
	totalApplicants int64
	apiBase         string
	gatewayURL      string
	clientFactory   *shared.HTTPClientFactory

	mutex    sync.RWMutex
	ready    bool
	sequence int64

	// writeMutex serializes gateway writes: the reader answers requested
	// heartbeats while the heartbeat goroutine ticks, and the connection
	// allows only one concurrent writer.
	writeMutex sync.Mutex
}

func NewDiscordService(token, guildID, channelID string, totalApplicants int64, clientFactory *shared.HTTPClientFactory) *DiscordService {
	return &DiscordService{
		token:           token,
		guildID:         guildID,
		channelID:       channelID,
		totalApplicants: totalApplicants,
		apiBase:         discordAPIBase,
		gatewayURL:      discordGatewayURL,
		clientFactory:   clientFactory,
	}
}

// Enabled reports whether a bot token is configured at all.
func (s *DiscordService) Enabled() bool {
	return s.token != ""
}

// Ready is the thread-safe readiness query the alert cycle uses before
// handing over a channel post.
func (s *DiscordService) Ready() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ready
}

func (s *DiscordService) setReady(ready bool) {
	s.mutex.Lock()
	s.ready = ready
	s.mutex.Unlock()
}

// Start runs the gateway connect/reconnect loop until the context is
// cancelled. Safe to call once from main; a no-op when Discord is disabled.
func (s *DiscordService) Start(ctx context.Context) {
	if !s.Enabled() {
		logrus.Info("Discord integration disabled (no token configured)")
		return
	}

	go func() {
		for {
			if err := s.runGatewaySession(ctx); err != nil {
				logrus.Errorf("Discord gateway session ended: %v", err)
			}
			s.setReady(false)

			select {
			case <-ctx.Done():
				logrus.Info("Discord gateway loop stopped")
				return
			case <-time.After(reconnectBackoff):
			}
		}
	}()
}

type gatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type readyData struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
}

// runGatewaySession holds one websocket connection: hello, identify,
// heartbeats, dispatch handling. Returns when the connection drops or the
// context is cancelled.
func (s *DiscordService) runGatewaySession(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: discordTimeout}
	conn, _, err := dialer.DialContext(ctx, s.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("gateway dial failed: %w", err)
	}
	defer conn.Close()

	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("reading gateway hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello opcode %d, got %d", opHello, hello.Op)
	}
	var helloInfo helloData
	if err := json.Unmarshal(hello.Data, &helloInfo); err != nil {
		return fmt.Errorf("decoding gateway hello: %w", err)
	}

	if err := s.sendIdentify(conn); err != nil {
		return fmt.Errorf("gateway identify failed: %w", err)
	}

	// Heartbeat loop on its own goroutine; closing the connection via the
	// context unblocks the reader below.
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go s.heartbeatLoop(ctx, conn, time.Duration(helloInfo.HeartbeatInterval)*time.Millisecond, heartbeatDone)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-heartbeatDone:
		}
	}()

	for {
		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gateway read failed: %w", err)
		}

		if payload.Sequence != nil {
			s.mutex.Lock()
			s.sequence = *payload.Sequence
			s.mutex.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			if payload.Type == "READY" {
				var ready readyData
				if err := json.Unmarshal(payload.Data, &ready); err == nil {
					logrus.Infof("Discord bot logged in as %s", ready.User.Username)
				}
				s.setReady(true)
				s.verifyChannel(ctx)
			}
		case opHeartbeat:
			if err := s.sendHeartbeat(conn); err != nil {
				return fmt.Errorf("requested heartbeat failed: %w", err)
			}
		case opHeartbeatACK:
			// Expected; nothing to do.
		}
	}
}

func (s *DiscordService) writeJSON(conn *websocket.Conn, payload interface{}) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	return conn.WriteJSON(payload)
}

func (s *DiscordService) sendIdentify(conn *websocket.Conn) error {
	identify := map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   s.token,
			"intents": 0,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "ipo-alert-bot",
				"device":  "ipo-alert-bot",
			},
		},
	}
	return s.writeJSON(conn, identify)
}

func (s *DiscordService) sendHeartbeat(conn *websocket.Conn) error {
	s.mutex.RLock()
	seq := s.sequence
	s.mutex.RUnlock()

	return s.writeJSON(conn, map[string]interface{}{"op": opHeartbeat, "d": seq})
}

func (s *DiscordService) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(conn); err != nil {
				logrus.Warnf("Discord heartbeat failed: %v", err)
				return
			}
		}
	}
}

// verifyChannel confirms the configured channel is visible to the bot and
// logs the outcome. Failure here only warns; sends will keep checking.
func (s *DiscordService) verifyChannel(ctx context.Context) {
	if s.guildID != "" {
		var guild struct {
			Name string `json:"name"`
		}
		if err := s.restGet(ctx, "/guilds/"+s.guildID, &guild); err != nil {
			logrus.Warnf("Bot is not in guild %s: %v", s.guildID, err)
		} else {
			logrus.Infof("Bot is in guild: %s", guild.Name)
		}
	}

	var channel struct {
		Name string `json:"name"`
	}
	if err := s.restGet(ctx, "/channels/"+s.channelID, &channel); err != nil {
		logrus.Warnf("Target channel %s not reachable: %v", s.channelID, err)
		return
	}
	logrus.Infof("Target channel found: #%s", channel.Name)
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

// probabilityIndicator mirrors the embed color coding: green from 50%,
// orange from 20%, red below.
func probabilityIndicator(prob float64) (int, string) {
	switch {
	case prob >= 50:
		return 0x4CAF50, "High"
	case prob >= 20:
		return 0xFF9800, "Medium"
	default:
		return 0xF44336, "Low"
	}
}

// SendIPOAlert posts one rich embed for an IPO opening to the fixed channel.
// When the gateway is not ready the alert is skipped (logged, not queued).
func (s *DiscordService) SendIPOAlert(ctx context.Context, ipo models.IPORecord, metrics models.Metrics) error {
	if !s.Enabled() {
		return fmt.Errorf("discord integration disabled")
	}
	if !s.Ready() {
		logrus.Warn("Discord bot not ready, skipping Discord alert")
		return fmt.Errorf("discord bot not ready")
	}

	color, indicator := probabilityIndicator(metrics.Probability)

	dayWord := "days"
	if metrics.DaysRemaining == 1 {
		dayWord = "day"
	}
	timeLeft := "Available"
	if metrics.DaysRemaining <= 2 {
		timeLeft = "Limited"
	}

	embed := discordEmbed{
		Title:       fmt.Sprintf("IPO Alert: %s", ipo.DisplayName()),
		Description: fmt.Sprintf("**%s** IPO is now open for subscription!", ipo.DisplayName()),
		Color:       color,
		Fields: []discordEmbedField{
			{
				Name: "Basic Information",
				Value: fmt.Sprintf("**Symbol:** %s\n**Sector:** %s\n**Issue Manager:** %s",
					valueOrNA(ipo.Finid), valueOrNA(ipo.Sector), valueOrNA(ipo.IssueManager)),
				Inline: true,
			},
			{
				Name: "Pricing & Timeline",
				Value: fmt.Sprintf("**Offer Price:** NPR %s\n**Opening:** %s\n**Closing:** %s",
					valueOrNA(ipo.OfferPrice), ipo.OpenDateOnly(), ipo.CloseDateOnly()),
				Inline: true,
			},
			{
				Name: "Shares & Time",
				Value: fmt.Sprintf("**Total Shares:** %s\n**Days Remaining:** %d %s\n**Time Left:** %s",
					formatCount(ipo.SharesOffered), metrics.DaysRemaining, dayWord, timeLeft),
				Inline: true,
			},
			{
				Name: "Investment Analysis",
				Value: fmt.Sprintf("**Allotment Probability:** %s (%.1f%%)\n**Recommended Quantity:** %s units\n**Strategy:** %s",
					indicator, metrics.Probability, metrics.SuggestedQty, metrics.Recommendation),
			},
			{
				Name:  "Action Required",
				Value: "IPO subscription window is now **OPEN**. Review and submit your application through your broker.",
			},
		},
		Footer:    &discordEmbedFooter{Text: fmt.Sprintf("Based on estimated %s total applications | Nepal Time", formatCount(s.totalApplicants))},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	content := "**IPO ALERT**"
	if metrics.DaysRemaining <= 3 {
		content = "**IPO ALERT** @everyone"
	}

	if err := s.postMessage(ctx, discordMessage{Content: content, Embeds: []discordEmbed{embed}}); err != nil {
		logrus.Errorf("Error sending Discord alert for %s: %v", ipo.DisplayName(), err)
		return err
	}
	logrus.Infof("Discord alert sent for %s", ipo.DisplayName())
	return nil
}

// SendSystemNotification posts a startup/error embed to the channel. Dropped
// silently when the bot is not ready.
func (s *DiscordService) SendSystemNotification(ctx context.Context, title, message, kind string) error {
	if !s.Enabled() || !s.Ready() {
		return fmt.Errorf("discord bot not ready")
	}

	colorMap := map[string]int{
		"success": 0x4CAF50,
		"info":    0x2196F3,
		"warning": 0xFF9800,
		"error":   0xF44336,
	}
	color, ok := colorMap[kind]
	if !ok {
		color = colorMap["info"]
	}

	embed := discordEmbed{
		Title:       title,
		Description: message,
		Color:       color,
		Footer:      &discordEmbedFooter{Text: "IPO Alert System | Nepal Time"},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.postMessage(ctx, discordMessage{Embeds: []discordEmbed{embed}}); err != nil {
		logrus.Errorf("Error sending Discord system notification: %v", err)
		return err
	}
	logrus.Infof("Discord system notification sent: %s", title)
	return nil
}

func (s *DiscordService) postMessage(ctx context.Context, message discordMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	url := s.apiBase + "/channels/" + s.channelID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+s.token)
	req.Header.Set("Content-Type", "application/json")

	client := s.clientFactory.Client(discordTimeout)
	resp, err := client.Do(req)
	if err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDelivery,
			"Discord channel post failed", "DiscordService", "postMessage", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord API returned %s: %s", resp.Status, string(body))
	}
	return nil
}

func (s *DiscordService) restGet(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+s.token)

	client := s.clientFactory.Client(discordTimeout)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord API returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
