// Package server exposes the analysis pipeline and the persistence
// collaborator over HTTP.
package server

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"speakcoach/internal/auth"
	"speakcoach/internal/pipeline"
	"speakcoach/internal/store"
)

// Accepted part names for the audio upload. Older clients used
// "files[]"; keep accepting every spelling that was ever shipped.
var audioPartNames = []string{"audio", "files[]", "file", "files"}

// Server wires the Fiber app to the pipeline, store, and verifier.
type Server struct {
	app      *fiber.App
	pipeline *pipeline.Pipeline
	store    store.Store
	verifier *auth.Verifier
	log      zerolog.Logger
}

// New builds the app and registers all routes.
func New(p *pipeline.Pipeline, st store.Store, v *auth.Verifier, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // generous cap for ~90s of webm audio
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	s := &Server{app: app, pipeline: p, store: st, verifier: v, log: log}

	app.Get("/analyze", s.handleLiveness)
	app.Get("/healthz", s.handleLiveness)
	app.Post("/analyze", s.handleAnalyze)
	app.Post("/sessions", s.handleRecordSession)
	app.Post("/feedback", s.handleRecordFeedback)
	app.Get("/leaderboard", s.handleLeaderboard)

	return s
}

// App exposes the underlying Fiber app for Listen and tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving on addr.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) handleLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	sub, err := parseSubmission(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
	}

	result, err := s.pipeline.Analyze(c.UserContext(), sub)
	if err != nil {
		if pipeline.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": err.Error()})
		}
		if pe, ok := pipeline.AsProvider(err); ok {
			s.log.Error().Err(pe.Err).Str("stage", pe.Stage).Msg("provider call failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"ok": false, "error": "upstream provider failed, try again", "stage": pe.Stage,
			})
		}
		s.log.Error().Err(err).Msg("analyze failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "internal error"})
	}

	return c.JSON(result)
}

// parseSubmission reads the multipart form into a pipeline submission.
// A missing audio part is left to the pipeline's validation so the
// error message stays in one place.
func parseSubmission(c *fiber.Ctx) (pipeline.Submission, error) {
	sub := pipeline.Submission{
		DurationSec: formInt(c, "durationSec", "duration_sec"),
		Goal:        formValue(c, "goal"),
		PromptText:  formValue(c, "promptText", "prompt_text"),
	}

	for _, name := range audioPartNames {
		fh, err := c.FormFile(name)
		if err != nil || fh == nil {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return sub, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return sub, err
		}
		sub.Audio = data
		sub.Filename = fh.Filename
		break
	}
	return sub, nil
}

func formValue(c *fiber.Ctx, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.FormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

func formInt(c *fiber.Ctx, names ...string) int {
	n, _ := strconv.Atoi(formValue(c, names...))
	return n
}

type sessionBody struct {
	DurationSec int    `json:"duration_sec"`
	LevelLabel  string `json:"level_label"`
	Goal        string `json:"goal"`
	ClientID    string `json:"client_id"`
}

func (s *Server) handleRecordSession(c *fiber.Ctx) error {
	var body sessionBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid JSON"})
	}

	rec := store.SessionRecord{
		DurationSec: body.DurationSec,
		LevelLabel:  body.LevelLabel,
		Goal:        body.Goal,
		ClientID:    body.ClientID,
	}
	if id := s.verifier.FromAuthorization(c.Get(fiber.HeaderAuthorization)); id != nil {
		rec.UserID = id.UserID
	}

	// Best-effort: a storage failure must never surface to the client.
	if err := s.store.RecordSession(c.UserContext(), rec); err != nil {
		s.log.Warn().Err(err).Msg("record session failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

type feedbackBody struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

func (s *Server) handleRecordFeedback(c *fiber.Ctx) error {
	var body feedbackBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid JSON"})
	}
	if body.Rating == 0 && strings.TrimSpace(body.Text) == "" && strings.TrimSpace(body.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok": false, "error": "add a short note or a star rating, or use skip",
		})
	}
	if body.Rating != 0 && (body.Rating < 1 || body.Rating > 5) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"ok": false, "error": "rating must be between 1 and 5",
		})
	}

	rec := store.FeedbackRecord{
		Name:   body.Name,
		Email:  body.Email,
		Rating: body.Rating,
		Text:   body.Text,
	}
	if id := s.verifier.FromAuthorization(c.Get(fiber.HeaderAuthorization)); id != nil {
		rec.UserID = id.UserID
	}

	if err := s.store.RecordFeedback(c.UserContext(), rec); err != nil {
		s.log.Warn().Err(err).Msg("record feedback failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
}

func (s *Server) handleLeaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	top, err := s.store.TopUsersBySessions(c.UserContext(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("leaderboard query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "internal error"})
	}
	if top == nil {
		top = []store.LeaderboardEntry{}
	}
	return c.JSON(fiber.Map{"ok": true, "leaders": top})
}
