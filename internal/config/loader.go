package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the alarm service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	Timezone      string
	UpcomingLead  time.Duration
	ImminentLead  time.Duration
	DefaultSnooze time.Duration
	MissedTimeout time.Duration
}

// Load parses configuration values from the current process environment.
//
// Every field has a default; invalid values are collected and reported
// together so a misconfigured deployment fails fast with one message.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:      8080,
		SQLiteDSN:     "file:alarmd.db?_pragma=foreign_keys(1)",
		Timezone:      "",
		UpcomingLead:  2 * time.Hour,
		ImminentLead:  30 * time.Minute,
		DefaultSnooze: 10 * time.Minute,
		MissedTimeout: 10 * time.Minute,
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ALARMD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ALARMD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ALARMD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tz := strings.TrimSpace(os.Getenv("ALARMD_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "ALARMD_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	for _, entry := range []struct {
		name   string
		target *time.Duration
	}{
		{"ALARMD_UPCOMING_LEAD", &cfg.UpcomingLead},
		{"ALARMD_IMMINENT_LEAD", &cfg.ImminentLead},
		{"ALARMD_DEFAULT_SNOOZE", &cfg.DefaultSnooze},
		{"ALARMD_MISSED_TIMEOUT", &cfg.MissedTimeout},
	} {
		value := strings.TrimSpace(os.Getenv(entry.name))
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, entry.name)
			continue
		}
		*entry.target = d
	}

	if cfg.ImminentLead > cfg.UpcomingLead {
		invalid = append(invalid, "ALARMD_IMMINENT_LEAD")
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Location resolves the configured timezone, defaulting to the process local zone.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
