// Command speakcoach runs the analysis service.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"speakcoach/internal/auth"
	"speakcoach/internal/config"
	"speakcoach/internal/pipeline"
	"speakcoach/internal/provider"
	"speakcoach/internal/server"
	"speakcoach/internal/store"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration error")
	}

	transcriber, err := provider.NewTranscriber(cfg.STTProvider, cfg.OpenAIKey, cfg.DeepgramKey, cfg.TranscribeLanguage)
	if err != nil {
		log.Fatal().Err(err).Msg("transcriber setup failed")
	}
	evaluator := provider.NewOpenAI(cfg.OpenAIKey, "")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store failed")
	}
	defer st.Close()

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret)
	} else {
		log.Warn().Msg("JWT_SECRET not set, all requests treated as anonymous")
	}

	p := pipeline.New(transcriber, evaluator, log)
	srv := server.New(p, st, verifier, log)

	log.Info().
		Str("addr", cfg.Addr).
		Str("stt", transcriber.Name()).
		Msg("speakcoach listening")
	if err := srv.Listen(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
