package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Brevo transactional email
	BrevoAPIKey string
	FromName    string
	FromEmail   string
	AdminEmail  string

	// IPO data source
	OngoingURL string

	// Alert tuning
	TotalApplicants    int64
	CheckIntervalHours int
	MarkSentOnFailure  bool

	// Discord
	DiscordToken     string
	DiscordGuildID   string
	DiscordChannelID string

	// Subscriber list
	EmailListFile string

	// Plumbing
	LogLevel   string
	LogFile    string
	ServerPort string
}

// requiredVars must be set for the bot to start at all.
var requiredVars = []string{"BREVO_API_KEY", "FROM_NAME", "FROM_EMAIL", "TO_EMAIL", "ONGOING_URL"}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		FromName:           getEnv("FROM_NAME", ""),
		FromEmail:          getEnv("FROM_EMAIL", ""),
		AdminEmail:         getEnv("TO_EMAIL", ""),
		OngoingURL:         getEnv("ONGOING_URL", ""),
		TotalApplicants:    getEnvInt64("TOTAL_APPS", 2500000),
		CheckIntervalHours: getEnvInt("CHECK_INTERVAL_HOURS", 5),
		MarkSentOnFailure:  getEnvBool("MARK_SENT_ON_FAILURE", true),
		DiscordToken:       getEnv("DISCORD_TOKEN", ""),
		DiscordGuildID:     getEnv("DISCORD_GUILD_ID", ""),
		DiscordChannelID:   getEnv("DISCORD_CHANNEL_ID", ""),
		EmailListFile:      getEnv("EMAIL_LIST_FILE", "email_update.txt"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            getEnv("LOG_FILE", "ipo_bot.log"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
	}
}

// MissingRequired returns the names of required environment variables that
// are not set. An empty result means the config is usable.
func (c *Config) MissingRequired() []string {
	values := map[string]string{
		"BREVO_API_KEY": c.BrevoAPIKey,
		"FROM_NAME":     c.FromName,
		"FROM_EMAIL":    c.FromEmail,
		"TO_EMAIL":      c.AdminEmail,
		"ONGOING_URL":   c.OngoingURL,
	}

	var missing []string
	for _, name := range requiredVars {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalHours) * time.Hour
}

// Timezone returns the fixed target timezone. All "today" computations use
// Nepal time, never the host machine's local zone.
func Timezone() *time.Location {
	loc, err := time.LoadLocation("Asia/Kathmandu")
	if err != nil {
		// Asia/Kathmandu is UTC+5:45 and has no DST transitions.
		return time.FixedZone("NPT", 5*3600+45*60)
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %d", key, value, fallback)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("Invalid %s value: %s, using default %t", key, value, fallback)
		return fallback
	}
	return parsed
}
