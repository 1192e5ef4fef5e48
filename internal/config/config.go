// Package config loads process configuration from the environment,
// collecting every missing required variable before failing once with
// the full list rather than erroring out on the first one found.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr                 string
	DBDSN                    string
	JWTIssuer                string
	JWTSecret                string
	JWTTTL                   time.Duration
	WebSocketOrigin          string
	ProfectMode              string
	DefaultInitialCapital    string
	BroadcastIntervalCandles int
}

// Load reads and validates configuration from the environment. Required
// variables missing from the environment are collected and reported
// together in a single error.
func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.ProfectMode = strings.ToLower(strings.TrimSpace(os.Getenv("PROFECT_MODE")))
	if c.ProfectMode == "" {
		c.ProfectMode = "development"
	}
	if c.ProfectMode != "development" && c.ProfectMode != "production" {
		return c, errors.New("invalid PROFECT_MODE: use development or production")
	}

	c.DefaultInitialCapital = os.Getenv("DEFAULT_INITIAL_CAPITAL")
	if c.DefaultInitialCapital == "" {
		c.DefaultInitialCapital = "10000"
	}

	intervalRaw := os.Getenv("BROADCAST_INTERVAL_CANDLES")
	if intervalRaw == "" {
		c.BroadcastIntervalCandles = 100
	} else {
		n, err := strconv.Atoi(intervalRaw)
		if err != nil || n <= 0 {
			return c, errors.New("invalid BROADCAST_INTERVAL_CANDLES: must be a positive integer")
		}
		c.BroadcastIntervalCandles = n
	}

	// DB_DSN is optional: it only matters when a Postgres-backed
	// CandleStore is wired in; the default in-memory generator needs no
	// database at all.
	c.DBDSN = os.Getenv("DB_DSN")

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + join(missing))
	}
	return c, nil
}

func join(items []string) string {
	if len(items) == 0 {
		return ""
	}
	out := items[0]
	for i := 1; i < len(items); i++ {
		out += "," + items[i]
	}
	return out
}
