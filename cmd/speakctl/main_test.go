package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"speakcoach/internal/gate"
)

func feedbackGate(t *testing.T) (*gate.Gate, *gate.MemStore) {
	t.Helper()
	st := &gate.MemStore{State: gate.CounterState{SessionsTotal: 1}}
	g, err := gate.New(st, gate.DefaultAuthThreshold)
	require.NoError(t, err)
	return g, st
}

func TestSolicitFeedbackEmptySubmitReprompts(t *testing.T) {
	g, st := feedbackGate(t)
	// Blank rating and note, decline the skip, then rate on the retry.
	in := strings.NewReader("\n\nn\n4\nloved it\n")
	var out bytes.Buffer

	fb, skipped := solicitFeedback(in, &out, g)
	require.False(t, skipped)
	require.Equal(t, 4, fb.Rating)
	require.Equal(t, "loved it", fb.Text)
	require.True(t, st.State.FeedbackGateResolved)
	require.Contains(t, out.String(), "Skip the question?")
}

func TestSolicitFeedbackSkipNeedsConfirmation(t *testing.T) {
	g, st := feedbackGate(t)
	in := strings.NewReader("\n\ny\n")
	var out bytes.Buffer

	_, skipped := solicitFeedback(in, &out, g)
	require.True(t, skipped)
	require.True(t, st.State.FeedbackGateResolved)
}

func TestSolicitFeedbackDirectRating(t *testing.T) {
	g, st := feedbackGate(t)
	in := strings.NewReader("5\n\n")
	var out bytes.Buffer

	fb, skipped := solicitFeedback(in, &out, g)
	require.False(t, skipped)
	require.Equal(t, 5, fb.Rating)
	require.True(t, st.State.FeedbackGateResolved)
	require.NotContains(t, out.String(), "Skip the question?")
}

func TestSolicitFeedbackClosedStdinSkips(t *testing.T) {
	g, st := feedbackGate(t)
	var out bytes.Buffer

	_, skipped := solicitFeedback(strings.NewReader(""), &out, g)
	require.True(t, skipped)
	require.True(t, st.State.FeedbackGateResolved)
}
