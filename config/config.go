package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Environment     string
	ListenAddr      string
	SourceURL       string
	GachaURL        string
	UserAgent       string
	SourceCookie    string
	FetchTimeout    time.Duration
	FetchMaxRetries int
	RefreshInterval time.Duration
	NATSUrl         string
	RefreshSubject  string
	RegistryFile    string
	ServiceURL      string
}

func Load() *Config {
	cfg := &Config{
		Environment:     getEnv("ENVIRONMENT", "production"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8003"),
		SourceURL:       getEnv("SOURCE_URL", "https://gametora.com/umamusume"),
		UserAgent:       getEnv("SOURCE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"),
		SourceCookie:    getEnv("SOURCE_COOKIE", "umamusume_server=gl"),
		FetchTimeout:    getDurationEnv("FETCH_TIMEOUT", "30s"),
		FetchMaxRetries: getIntEnv("FETCH_MAX_RETRIES", 3),
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", "1h"),
		NATSUrl:         getEnv("NATS_URL", ""),
		RefreshSubject:  getEnv("REFRESH_SUBJECT", "events.refresh"),
		RegistryFile:    getEnv("REGISTRY_FILE", ""),
		ServiceURL:      getEnv("SERVICE_URL", "http://raspberrypi.local:8003"),
	}
	cfg.GachaURL = getEnv("GACHA_URL", cfg.SourceURL+"/gacha")

	log.Printf("Config loaded - SourceURL: %s, FetchTimeout: %v, RefreshInterval: %v",
		cfg.SourceURL, cfg.FetchTimeout, cfg.RefreshInterval)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
