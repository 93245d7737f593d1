package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("does-not-exist.env")
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("Expected default port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Calendar.DefaultSyncDays != 30 {
		t.Errorf("Expected default sync days 30, got %d", cfg.Calendar.DefaultSyncDays)
	}
	if cfg.Calendar.TrailingDays != 7 {
		t.Errorf("Expected trailing days 7, got %d", cfg.Calendar.TrailingDays)
	}
	if cfg.Calendar.TokenRefreshBuffer != 5*time.Minute {
		t.Errorf("Expected refresh buffer 5m, got %v", cfg.Calendar.TokenRefreshBuffer)
	}
	if cfg.Calendar.SlotStepMinutes != 30 {
		t.Errorf("Expected slot step 30, got %d", cfg.Calendar.SlotStepMinutes)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GOOGLEAPI_CLIENTID", "client-123")
	t.Setenv("CALENDAR_DEFAULTSYNCDAYS", "14")
	t.Setenv("CALENDAR_STATETTL", "2m")

	cfg, err := Load("does-not-exist.env")
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.GoogleAPI.ClientID != "client-123" {
		t.Errorf("Expected client id 'client-123', got '%s'", cfg.GoogleAPI.ClientID)
	}
	if cfg.Calendar.DefaultSyncDays != 14 {
		t.Errorf("Expected sync days 14, got %d", cfg.Calendar.DefaultSyncDays)
	}
	if cfg.Calendar.StateTTL != 2*time.Minute {
		t.Errorf("Expected state ttl 2m, got %v", cfg.Calendar.StateTTL)
	}
}

func TestLoad_InvalidWorkday(t *testing.T) {
	t.Setenv("CALENDAR_WORKDAYSTARTHOUR", "18")
	t.Setenv("CALENDAR_WORKDAYENDHOUR", "9")

	if _, err := Load("does-not-exist.env"); err == nil {
		t.Fatal("Expected an error for inverted workday hours, got nil")
	}
}
