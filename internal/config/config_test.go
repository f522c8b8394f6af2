package config

import (
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
property: "Casa Laureles"
`

// --- Parse tests ---

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Property != "Casa Laureles" {
		t.Errorf("property = %q", cfg.Property)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "innkeeper.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("property: [unclosed"))
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestParse_MissingProperty(t *testing.T) {
	_, err := Parse([]byte("timezone: UTC"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "property is required") {
		t.Errorf("error = %q", err)
	}
}

// --- Defaults tests ---

func TestDefaults_Intervals(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.PollInterval(); got != 15*time.Second {
		t.Errorf("poll interval = %v, want 15s", got)
	}
	if got := cfg.CheckInterval(); got != 15*time.Second {
		t.Errorf("check interval = %v, want 15s", got)
	}
	if got := cfg.IdleTimeout(); got != 5*time.Minute {
		t.Errorf("idle timeout = %v, want 5m", got)
	}
	if got := cfg.WatchTimeout(); got != 30*time.Minute {
		t.Errorf("watch timeout = %v, want 30m", got)
	}
	if got := cfg.Retention(); got != 24*time.Hour {
		t.Errorf("retention = %v, want 24h", got)
	}
}

func TestDefaults_AICalls(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AI.Answer.Model == "" {
		t.Error("answer model not defaulted")
	}
	if cfg.AI.Classify.MaxTokens != 15 {
		t.Errorf("classify max_tokens = %d, want 15", cfg.AI.Classify.MaxTokens)
	}
	if cfg.AI.Greeting.Temperature != 0.7 {
		t.Errorf("greeting temperature = %v, want 0.7", cfg.AI.Greeting.Temperature)
	}
}

func TestDefaults_MySQL(t *testing.T) {
	cfg, err := Parse([]byte("property: x\ndatabase:\n  driver: mysql\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("mysql defaults = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.Name != "innkeeper" {
		t.Errorf("mysql database name = %q", cfg.Database.Name)
	}
}

// --- Validation tests ---

func TestValidate_UnknownDriver(t *testing.T) {
	_, err := Parse([]byte("property: x\ndatabase:\n  driver: postgres\n"))
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestValidate_SlackMissingTokens(t *testing.T) {
	_, err := Parse([]byte("property: x\nnotifier:\n  platform: slack\n  channel: C123\n"))
	if err == nil {
		t.Fatal("expected error for missing slack tokens")
	}
	if !strings.Contains(err.Error(), "app_token") {
		t.Errorf("error = %q", err)
	}
}

func TestValidate_MissingChannel(t *testing.T) {
	_, err := Parse([]byte("property: x\nnotifier:\n  platform: discord\n  discord:\n    bot_token: tok\n"))
	if err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestValidate_NoNotifierIsAllowed(t *testing.T) {
	if _, err := Parse([]byte(minimalYAML)); err != nil {
		t.Fatalf("platform-less config should validate: %v", err)
	}
}

func TestValidate_HorizonOrdering(t *testing.T) {
	_, err := Parse([]byte("property: x\nworker:\n  idle_timeout_min: 60\n"))
	if err == nil {
		t.Fatal("expected error: idle timeout exceeds watch timeout")
	}
	_, err = Parse([]byte("property: x\nescalation:\n  watch_timeout_min: 2000\n"))
	if err == nil {
		t.Fatal("expected error: watch timeout exceeds retention")
	}
}

func TestValidate_BadTimezone(t *testing.T) {
	_, err := Parse([]byte("property: x\ntimezone: Mars/Olympus\n"))
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLocation(t *testing.T) {
	cfg, err := Parse([]byte("property: x\ntimezone: America/Bogota\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location().String() != "America/Bogota" {
		t.Errorf("location = %v", cfg.Location())
	}
}
