package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func deepgramPayload(transcript string) map[string]any {
	return map[string]any{
		"results": map[string]any{
			"channels": []any{
				map[string]any{
					"alternatives": []any{
						map[string]any{"transcript": transcript, "confidence": 0.97},
					},
				},
			},
		},
	}
}

func TestDeepgramTranscribe(t *testing.T) {
	var gotAuth, gotContentType, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotModel = r.URL.Query().Get("model")
		json.NewEncoder(w).Encode(deepgramPayload("hello from the test"))
	}))
	defer srv.Close()

	d := NewDeepgram("dg-key", "en")
	d.baseURL = srv.URL

	text, err := d.Transcribe(context.Background(), []byte("wav-bytes"), "speech.wav")
	require.NoError(t, err)
	require.Equal(t, "hello from the test", text)
	require.Equal(t, "Token dg-key", gotAuth)
	require.Equal(t, "audio/wav", gotContentType)
	require.Equal(t, "nova-2", gotModel)
}

func TestDeepgramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"err_msg":"rate limit"}`))
	}))
	defer srv.Close()

	d := NewDeepgram("dg-key", "")
	d.baseURL = srv.URL

	_, err := d.Transcribe(context.Background(), []byte("x"), "speech.webm")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestDeepgramEmptyChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"channels": []any{}}})
	}))
	defer srv.Close()

	d := NewDeepgram("dg-key", "")
	d.baseURL = srv.URL

	text, err := d.Transcribe(context.Background(), []byte("x"), "speech.webm")
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"speech.wav":  "audio/wav",
		"speech.mp3":  "audio/mpeg",
		"speech.flac": "audio/flac",
		"speech.ogg":  "audio/ogg",
		"speech.webm": "audio/webm",
		"":            "audio/webm",
	}
	for in, want := range tests {
		require.Equal(t, want, contentTypeFor(in), "filename=%q", in)
	}
}

func TestNewTranscriberSelection(t *testing.T) {
	tr, err := NewTranscriber("openai", "sk-x", "", "")
	require.NoError(t, err)
	require.Equal(t, "openai", tr.Name())

	tr, err = NewTranscriber("deepgram", "sk-x", "dg-x", "en")
	require.NoError(t, err)
	require.Equal(t, "deepgram", tr.Name())

	_, err = NewTranscriber("deepgram", "sk-x", "", "")
	require.Error(t, err)

	_, err = NewTranscriber("openai", "", "", "")
	require.Error(t, err)
}
