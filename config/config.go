package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
)

// SpeechConfig configures the speech-to-text client.
type SpeechConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Encoding string `json:"encoding"`
}

// TranslateConfig configures the translation client. QPS and Burst feed the
// client's token bucket.
type TranslateConfig struct {
	Endpoint    string  `json:"endpoint"`
	APIKey      string  `json:"api_key"`
	QPS         float64 `json:"qps"`
	Burst       int     `json:"burst"`
	FanoutLimit int     `json:"fanout_limit"`
}

// Config holds all service settings.
type Config struct {
	HTTPPort int `json:"http_port"`

	// DatabaseURL selects the Postgres store; empty means in-memory.
	DatabaseURL     string `json:"database_url"`
	StoreMaxRetries int    `json:"store_max_retries"`

	Speech    SpeechConfig    `json:"speech"`
	Translate TranslateConfig `json:"translate"`

	// ProfanityWords extends the built-in block list.
	ProfanityWords []string `json:"profanity_words"`

	LogLevel string `json:"log_level"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		HTTPPort:        8080,
		StoreMaxRetries: 25,
		Speech: SpeechConfig{
			Encoding: "LINEAR16",
		},
		Translate: TranslateConfig{
			QPS:         10,
			Burst:       10,
			FanoutLimit: 16,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	return LoadFile("config.json")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) *Config {
	cfg := Defaults()

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config file", "tag", "config", "path", path, "error", err)
		}
	}

	overrideInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideInt(&cfg.StoreMaxRetries, "STORE_MAX_RETRIES")
	overrideString(&cfg.Speech.Endpoint, "SPEECH_ENDPOINT")
	overrideString(&cfg.Speech.APIKey, "SPEECH_API_KEY")
	overrideString(&cfg.Speech.Encoding, "SPEECH_ENCODING")
	overrideString(&cfg.Translate.Endpoint, "TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.APIKey, "TRANSLATE_API_KEY")
	overrideFloat(&cfg.Translate.QPS, "TRANSLATE_QPS")
	overrideInt(&cfg.Translate.Burst, "TRANSLATE_BURST")
	overrideInt(&cfg.Translate.FanoutLimit, "TRANSLATE_FANOUT_LIMIT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid integer in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			*field = n
		} else {
			slog.Warn("invalid number in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
