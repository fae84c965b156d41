package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	WSBaseURL  string
	APIBaseURL string
	RedisURL   string

	AuthToken string
	UserID    string
	Nickname  string

	ReconnectMaxAttempts int
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	HeartbeatInterval    time.Duration
	TurnTick             time.Duration

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ReconnectMaxAttempts: 5,
		ReconnectBase:        time.Second,
		ReconnectCap:         10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		TurnTick:             100 * time.Millisecond,
	}

	cfg.WSBaseURL = strings.TrimSpace(os.Getenv("KKEUTMAL_WS_BASE_URL"))
	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("KKEUTMAL_API_BASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	cfg.AuthToken = strings.TrimSpace(os.Getenv("KKEUTMAL_TOKEN"))
	cfg.UserID = strings.TrimSpace(os.Getenv("KKEUTMAL_USER_ID"))
	cfg.Nickname = strings.TrimSpace(os.Getenv("KKEUTMAL_NICKNAME"))

	if v := strings.TrimSpace(os.Getenv("RECONNECT_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectMaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONNECT_BASE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectBase = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECONNECT_CAP_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectCap = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("HEARTBEAT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HeartbeatInterval = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("TURN_TICK_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TurnTick = time.Duration(n) * time.Millisecond
		}
	}
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if cfg.WSBaseURL == "" {
		return nil, errors.New("KKEUTMAL_WS_BASE_URL is required")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("KKEUTMAL_API_BASE_URL is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("KKEUTMAL_USER_ID is required")
	}

	return cfg, nil
}
