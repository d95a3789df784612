package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ALARMD_HTTP_PORT",
		"ALARMD_SQLITE_DSN",
		"ALARMD_TIMEZONE",
		"ALARMD_UPCOMING_LEAD",
		"ALARMD_IMMINENT_LEAD",
		"ALARMD_DEFAULT_SNOOZE",
		"ALARMD_MISSED_TIMEOUT",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.UpcomingLead != 2*time.Hour || cfg.ImminentLead != 30*time.Minute {
		t.Fatalf("unexpected default leads: %v / %v", cfg.UpcomingLead, cfg.ImminentLead)
	}
	if cfg.DefaultSnooze != 10*time.Minute || cfg.MissedTimeout != 10*time.Minute {
		t.Fatalf("unexpected default timeouts: %v / %v", cfg.DefaultSnooze, cfg.MissedTimeout)
	}
	if cfg.SQLiteDSN == "" {
		t.Fatal("expected a default DSN")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALARMD_HTTP_PORT", "9090")
	t.Setenv("ALARMD_SQLITE_DSN", "file::memory:?cache=shared")
	t.Setenv("ALARMD_UPCOMING_LEAD", "1h")
	t.Setenv("ALARMD_IMMINENT_LEAD", "15m")
	t.Setenv("ALARMD_DEFAULT_SNOOZE", "5m")
	t.Setenv("ALARMD_MISSED_TIMEOUT", "20m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.SQLiteDSN != "file::memory:?cache=shared" {
		t.Fatalf("unexpected DSN %q", cfg.SQLiteDSN)
	}
	if cfg.UpcomingLead != time.Hour || cfg.ImminentLead != 15*time.Minute {
		t.Fatalf("unexpected leads: %v / %v", cfg.UpcomingLead, cfg.ImminentLead)
	}
	if cfg.DefaultSnooze != 5*time.Minute || cfg.MissedTimeout != 20*time.Minute {
		t.Fatalf("unexpected timeouts: %v / %v", cfg.DefaultSnooze, cfg.MissedTimeout)
	}
}

func TestLoadCollectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALARMD_HTTP_PORT", "not-a-port")
	t.Setenv("ALARMD_DEFAULT_SNOOZE", "-5m")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "ALARMD_HTTP_PORT") || !strings.Contains(err.Error(), "ALARMD_DEFAULT_SNOOZE") {
		t.Fatalf("expected both variables reported, got %v", err)
	}
}

func TestLoadRejectsImminentLeadBeyondUpcoming(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALARMD_UPCOMING_LEAD", "30m")
	t.Setenv("ALARMD_IMMINENT_LEAD", "1h")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "ALARMD_IMMINENT_LEAD") {
		t.Fatalf("expected ALARMD_IMMINENT_LEAD rejected, got %v", err)
	}
}

func TestLoadTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALARMD_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}

	t.Setenv("ALARMD_TIMEZONE", "Not/AZone")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid timezone rejected")
	}
}
