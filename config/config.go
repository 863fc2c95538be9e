package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Token            string
	StatusChannelID  string
	Lang             string
	RequestTTL       time.Duration
	ReminderInterval time.Duration
	ReminderAge      time.Duration
	CacheTTL         time.Duration
}

func Load() *Config {
	return &Config{
		Token:            getEnv("BOT_TOKEN", ""),
		StatusChannelID:  getEnv("STATUS_CHANNEL_ID", ""),
		Lang:             getEnv("BOT_LANG", "ru"),
		RequestTTL:       getMinutesEnv("REQUEST_TTL_MINUTES", 60),
		ReminderInterval: getMinutesEnv("REMINDER_INTERVAL_MINUTES", 60),
		ReminderAge:      getMinutesEnv("REMINDER_AGE_MINUTES", 8*60),
		CacheTTL:         getMinutesEnv("CACHE_TTL_MINUTES", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return time.Duration(defaultValue) * time.Minute
}
