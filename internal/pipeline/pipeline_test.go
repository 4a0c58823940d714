package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"speakcoach/internal/coach"
	"speakcoach/internal/provider"
)

var longTranscript = "today I want to talk about the project my team shipped last quarter " +
	"and the three lessons we learned while doing it under a very tight deadline"

func newPipeline(t *provider.FakeTranscriber, e *provider.FakeEvaluator) *Pipeline {
	return New(t, e, zerolog.Nop())
}

func submission(durationSec int) Submission {
	return Submission{
		Audio:       []byte("fake-webm-bytes"),
		Filename:    "speech.webm",
		DurationSec: durationSec,
		Goal:        "Work English",
		PromptText:  "Describe a recent project.",
	}
}

func TestAnalyzeRejectsEmptyAudio(t *testing.T) {
	tr := provider.NewFakeTranscriber(longTranscript, nil)
	ev := provider.NewFakeEvaluator(`{}`, nil)
	p := newPipeline(tr, ev)

	_, err := p.Analyze(context.Background(), Submission{DurationSec: 30})
	require.Error(t, err)
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "no audio supplied")
	require.Zero(t, tr.Calls)
}

func TestAnalyzeTranscribeFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	tr := provider.NewFakeTranscriber("", boom)
	ev := provider.NewFakeEvaluator(`{}`, nil)
	p := newPipeline(tr, ev)

	_, err := p.Analyze(context.Background(), submission(30))
	pe, ok := AsProvider(err)
	require.True(t, ok)
	require.Equal(t, StageTranscribe, pe.Stage)
	require.ErrorIs(t, err, boom)
	require.Empty(t, ev.Requests)
}

func TestAnalyzeEvaluateFailure(t *testing.T) {
	boom := errors.New("rate limited")
	tr := provider.NewFakeTranscriber(longTranscript, nil)
	ev := provider.NewFakeEvaluator("", boom)
	p := newPipeline(tr, ev)

	_, err := p.Analyze(context.Background(), submission(60))
	pe, ok := AsProvider(err)
	require.True(t, ok)
	require.Equal(t, StageEvaluate, pe.Stage)
}

func TestAnalyzeShortDurationFallsBack(t *testing.T) {
	for _, d := range []int{0, 3, 7} {
		tr := provider.NewFakeTranscriber(longTranscript, nil)
		ev := provider.NewFakeEvaluator(`{"cefr_estimate":"C2"}`, nil)
		p := newPipeline(tr, ev)

		res, err := p.Analyze(context.Background(), submission(d))
		require.NoError(t, err, "duration=%d", d)
		require.True(t, res.Fallback, "duration=%d", d)
		require.Equal(t, coach.FallbackLevelScore, res.LevelScore)
		require.Empty(t, res.GrammarIssues)
		require.Empty(t, res.Pronunciation)
		// The evaluator must never run on the short path.
		require.Empty(t, ev.Requests, "duration=%d", d)
	}
}

func TestAnalyzeShortTranscriptFallsBack(t *testing.T) {
	tr := provider.NewFakeTranscriber("hi", nil)
	ev := provider.NewFakeEvaluator(`{"cefr_estimate":"C2"}`, nil)
	p := newPipeline(tr, ev)

	res, err := p.Analyze(context.Background(), submission(3))
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, 20, res.LevelScore)
	require.Empty(t, res.GrammarIssues)
	require.Empty(t, ev.Requests)
}

func TestAnalyzeEmptyTranscriptFallsBack(t *testing.T) {
	tr := provider.NewFakeTranscriber("   ", nil)
	ev := provider.NewFakeEvaluator(`{}`, nil)
	p := newPipeline(tr, ev)

	res, err := p.Analyze(context.Background(), submission(45))
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Zero(t, res.Fluency.WPM)
	require.Empty(t, ev.Requests)
}

func TestAnalyzeHappyPath(t *testing.T) {
	tr := provider.NewFakeTranscriber(longTranscript, nil)
	ev := provider.NewFakeEvaluator(`{
		"cefr_estimate": "B2",
		"friendly_level": "Advanced",
		"level_score": 70,
		"rationale": "r",
		"fluency": {"wpm": 120, "fillers": 2, "note": "n"},
		"grammar_issues": [],
		"pronunciation": [],
		"one_thing_to_fix": "x",
		"next_prompt": "y",
		"relevance": {"score": 80, "note": "n"}
	}`, nil)
	p := newPipeline(tr, ev)

	res, err := p.Analyze(context.Background(), submission(60))
	require.NoError(t, err)
	require.False(t, res.Fallback)
	require.Equal(t, "B2", res.CEFREstimate)
	require.Equal(t, 70, res.LevelScore)

	require.Len(t, ev.Requests, 1)
	req := ev.Requests[0]
	require.Equal(t, longTranscript, req.Transcript)
	require.Equal(t, 60, req.DurationSec)
	require.Equal(t, "Work English", req.Goal)
	require.Equal(t, "Describe a recent project.", req.PromptText)
}

func TestAnalyzeSparseEvaluatorOutputIsRepaired(t *testing.T) {
	// 40 words over 60 seconds: heuristic wpm is 40.
	words := make([]string, 40)
	for i := range words {
		words[i] = "word"
	}
	tr := provider.NewFakeTranscriber(strings.Join(words, " "), nil)
	ev := provider.NewFakeEvaluator(`{"cefr_estimate":"B1"}`, nil)
	p := newPipeline(tr, ev)

	res, err := p.Analyze(context.Background(), submission(60))
	require.NoError(t, err)
	require.False(t, res.Fallback)
	require.Equal(t, "Intermediate", res.FriendlyLevel)
	require.Equal(t, 50, res.LevelScore)
	require.Equal(t, 40, res.Fluency.WPM)
	require.Equal(t, coach.Relevance{Score: 50, Note: "—"}, res.Relevance)
}

func TestAnalyzeMalformedEvaluatorOutputDegradesToFallback(t *testing.T) {
	tr := provider.NewFakeTranscriber(longTranscript, nil)
	ev := provider.NewFakeEvaluator("Sorry, I cannot help with that.", nil)
	p := newPipeline(tr, ev)

	res, err := p.Analyze(context.Background(), submission(60))
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, coach.FallbackLevelScore, res.LevelScore)
}

func TestAnalyzeDefaultsGoal(t *testing.T) {
	tr := provider.NewFakeTranscriber(longTranscript, nil)
	ev := provider.NewFakeEvaluator(`{"cefr_estimate":"B1"}`, nil)
	p := newPipeline(tr, ev)

	sub := submission(60)
	sub.Goal = ""
	_, err := p.Analyze(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, ev.Requests, 1)
	require.Equal(t, "General English", ev.Requests[0].Goal)
}

func TestHeuristicWPM(t *testing.T) {
	tests := []struct {
		words, seconds, want int
	}{
		{40, 60, 40},
		{100, 60, 100},
		{25, 30, 50},
		{1, 7, 9},
		{10, 0, 0},
		{0, 30, 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, heuristicWPM(tc.words, tc.seconds),
			"words=%d seconds=%d", tc.words, tc.seconds)
	}
}
