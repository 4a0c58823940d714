// Package pipeline turns a raw audio submission into a validated,
// normalized coach.Result. The stages run strictly in sequence:
// validate, transcribe, heuristics, short-input policy, evaluate,
// repair. The evaluator is never called when the short-input policy
// already produced a result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"speakcoach/internal/coach"
	"speakcoach/internal/prompts"
	"speakcoach/internal/provider"
)

// Thresholds for the short-input fallback.
const (
	MinSeconds = 8
	MinWords   = 8
)

// Provider call stages, reported inside ProviderError.
const (
	StageTranscribe = "transcribe"
	StageEvaluate   = "evaluate"
)

// ValidationError rejects a submission before any provider call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ProviderError reports a failed upstream call and which stage failed.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failure at %s: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Submission is one client recording plus its metadata.
type Submission struct {
	Audio       []byte
	Filename    string
	DurationSec int
	Goal        string
	PromptText  string
}

// Transcript is the intermediate STT output, computed once per
// submission.
type Transcript struct {
	Text      string
	WordCount int
}

// Pipeline wires the two providers together with the fallback and
// repair policies.
type Pipeline struct {
	transcriber provider.Transcriber
	evaluator   provider.Evaluator
	log         zerolog.Logger
}

func New(t provider.Transcriber, e provider.Evaluator, log zerolog.Logger) *Pipeline {
	return &Pipeline{transcriber: t, evaluator: e, log: log}
}

// Analyze runs the full pipeline for one submission. Errors are either
// *ValidationError or *ProviderError; every other anomaly is absorbed
// into the returned result by the fallback and repair policies.
func (p *Pipeline) Analyze(ctx context.Context, sub Submission) (coach.Result, error) {
	if len(sub.Audio) == 0 {
		return coach.Result{}, &ValidationError{Msg: "no audio supplied"}
	}
	if sub.Goal == "" {
		sub.Goal = prompts.DefaultGoal
	}

	text, err := p.transcriber.Transcribe(ctx, sub.Audio, sub.Filename)
	if err != nil {
		return coach.Result{}, &ProviderError{Stage: StageTranscribe, Err: err}
	}

	tr := Transcript{Text: strings.TrimSpace(text)}
	tr.WordCount = len(strings.Fields(tr.Text))
	wpm := heuristicWPM(tr.WordCount, sub.DurationSec)

	log := p.log.With().
		Int("duration_sec", sub.DurationSec).
		Int("words", tr.WordCount).
		Int("wpm", wpm).
		Str("goal", sub.Goal).
		Logger()

	// Short-input policy: deterministic, no evaluator call.
	if sub.DurationSec < MinSeconds || tr.WordCount < MinWords || tr.Text == "" {
		log.Info().Msg("short input, returning fallback result")
		return coach.FallbackResult(wpm, prompts.DefaultNext), nil
	}

	raw, err := p.evaluator.Evaluate(ctx, provider.EvalRequest{
		Transcript:  tr.Text,
		DurationSec: sub.DurationSec,
		Goal:        sub.Goal,
		PromptText:  sub.PromptText,
	})
	if err != nil {
		return coach.Result{}, &ProviderError{Stage: StageEvaluate, Err: err}
	}

	result, verdict := coach.Repair(raw, wpm, prompts.DefaultNext)
	log.Info().Stringer("verdict", verdict).Str("cefr", result.CEFREstimate).Msg("analysis complete")
	return result, nil
}

// heuristicWPM computes words per minute, rounding half up. Zero
// duration yields zero rather than a division by zero.
func heuristicWPM(words, durationSec int) int {
	if durationSec <= 0 {
		return 0
	}
	return int(math.Round(float64(words) / float64(durationSec) * 60))
}

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsProvider extracts a ProviderError, if any.
func AsProvider(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
