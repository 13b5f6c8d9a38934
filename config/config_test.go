package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort=8080, got %d", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("expected empty DatabaseURL, got %q", cfg.DatabaseURL)
	}
	if cfg.StoreMaxRetries != 25 {
		t.Errorf("expected StoreMaxRetries=25, got %d", cfg.StoreMaxRetries)
	}
	if cfg.Speech.Encoding != "LINEAR16" {
		t.Errorf("expected Speech.Encoding=LINEAR16, got %q", cfg.Speech.Encoding)
	}
	if cfg.Translate.QPS != 10 || cfg.Translate.Burst != 10 {
		t.Errorf("expected translate limit 10/10, got %v/%d", cfg.Translate.QPS, cfg.Translate.Burst)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/saythat")
	t.Setenv("TRANSLATE_QPS", "2.5")
	t.Setenv("SPEECH_API_KEY", "k")

	cfg := LoadFile(filepath.Join(t.TempDir(), "missing.json"))

	if cfg.HTTPPort != 9090 {
		t.Errorf("expected HTTPPort=9090 after env override, got %d", cfg.HTTPPort)
	}
	if cfg.DatabaseURL != "postgres://localhost/saythat" {
		t.Errorf("unexpected DatabaseURL %q", cfg.DatabaseURL)
	}
	if cfg.Translate.QPS != 2.5 {
		t.Errorf("expected QPS=2.5, got %v", cfg.Translate.QPS)
	}
	if cfg.Speech.APIKey != "k" {
		t.Errorf("expected SPEECH_API_KEY override, got %q", cfg.Speech.APIKey)
	}
	// Non-overridden fields should remain default
	if cfg.Translate.Burst != 10 {
		t.Errorf("expected Burst=10 (default), got %d", cfg.Translate.Burst)
	}
}

func TestLoadWithInvalidEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "invalid")
	t.Setenv("TRANSLATE_QPS", "fast")

	cfg := LoadFile(filepath.Join(t.TempDir(), "missing.json"))

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected HTTPPort=8080 (default) with invalid env, got %d", cfg.HTTPPort)
	}
	if cfg.Translate.QPS != 10 {
		t.Errorf("expected QPS=10 (default) with invalid env, got %v", cfg.Translate.QPS)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"http_port": 7000, "translate": {"burst": 3}, "profanity_words": ["blorp"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_PORT", "7001")

	cfg := LoadFile(path)

	if cfg.HTTPPort != 7001 {
		t.Errorf("env should win over file, got %d", cfg.HTTPPort)
	}
	if cfg.Translate.Burst != 3 {
		t.Errorf("expected Burst=3 from file, got %d", cfg.Translate.Burst)
	}
	if cfg.Translate.QPS != 10 {
		t.Errorf("fields absent from the file keep defaults, got QPS=%v", cfg.Translate.QPS)
	}
	if len(cfg.ProfanityWords) != 1 || cfg.ProfanityWords[0] != "blorp" {
		t.Errorf("unexpected ProfanityWords %v", cfg.ProfanityWords)
	}
}
