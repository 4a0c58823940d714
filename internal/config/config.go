// Package config loads server settings from a .env file and the
// process environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the server bootstrap needs.
type Config struct {
	Addr               string
	OpenAIKey          string
	DeepgramKey        string
	STTProvider        string // "openai" (default) or "deepgram"
	TranscribeLanguage string // empty lets the provider auto-detect
	DBPath             string
	JWTSecret          string
	MaxRecordSeconds   int
	AuthThreshold      int
}

// Load reads .env when present, then the environment. It fails when a
// required key is missing so the server refuses to start half-wired.
func Load() (Config, error) {
	// Missing .env is fine; environment variables take over.
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getenv("ADDR", ":3000"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		DeepgramKey:        os.Getenv("DEEPGRAM_API_KEY"),
		STTProvider:        getenv("STT_PROVIDER", "openai"),
		TranscribeLanguage: os.Getenv("TRANSCRIBE_LANGUAGE"),
		DBPath:             getenv("DB_PATH", "speakcoach.sqlite"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		MaxRecordSeconds:   90,
		AuthThreshold:      5,
	}

	var err error
	if cfg.MaxRecordSeconds, err = getint("MAX_RECORD_SECONDS", cfg.MaxRecordSeconds); err != nil {
		return Config{}, err
	}
	if cfg.AuthThreshold, err = getint("AUTH_THRESHOLD", cfg.AuthThreshold); err != nil {
		return Config{}, err
	}

	if cfg.OpenAIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY must be set")
	}
	if cfg.STTProvider == "deepgram" && cfg.DeepgramKey == "" {
		return Config{}, fmt.Errorf("DEEPGRAM_API_KEY must be set when STT_PROVIDER=deepgram")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}
