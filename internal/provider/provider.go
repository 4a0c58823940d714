// Package provider wraps the external speech-to-text and evaluation
// services behind small interfaces so the pipeline can be exercised
// without network access.
package provider

import (
	"context"
	"fmt"
)

// Transcriber converts a recorded audio payload into text. The filename
// carries the extension the provider uses to pick a decoder.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// EvalRequest is the payload handed to the evaluator, serialized as the
// user message of the chat completion.
type EvalRequest struct {
	Transcript  string `json:"transcript"`
	DurationSec int    `json:"duration_sec"`
	Goal        string `json:"goal"`
	PromptText  string `json:"prompt_text,omitempty"`
}

// Evaluator produces raw feedback text for a transcript. The output is
// untrusted and always passes through the coach repair layer.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, req EvalRequest) (string, error)
}

// NewTranscriber selects a transcription backend from the environment:
// Deepgram when STT_PROVIDER=deepgram and a key is set, otherwise the
// OpenAI backend.
func NewTranscriber(sttProvider, openaiKey, deepgramKey, language string) (Transcriber, error) {
	if sttProvider == "deepgram" {
		if deepgramKey == "" {
			return nil, fmt.Errorf("STT_PROVIDER=deepgram but DEEPGRAM_API_KEY is empty")
		}
		return NewDeepgram(deepgramKey, language), nil
	}
	if openaiKey == "" {
		return nil, fmt.Errorf("set OPENAI_API_KEY or choose another STT provider")
	}
	return NewOpenAI(openaiKey, language), nil
}
