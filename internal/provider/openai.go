package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const systemInstructions = "You are Speak Coach. Return ONLY a single JSON object with these exact keys: " +
	"cefr_estimate (A1/A2/B1/B2/C1/C2), friendly_level (string), level_score (integer 0-100), " +
	"rationale (string, under 120 words), " +
	"fluency { wpm:number, fillers:number, note:string }, " +
	"grammar_issues: [{ error, fix, why }], " +
	"pronunciation: [{ sound_or_word, issue, minimal_pair }], " +
	"one_thing_to_fix (string), next_prompt (string), " +
	"relevance { score:integer 0-100, note:string }. " +
	"Respond in English only. No markdown, no code fences, no extra text."

// OpenAI talks to the OpenAI API for both transcription (Whisper) and
// structured evaluation (chat completion constrained to JSON).
type OpenAI struct {
	client    *openai.Client
	evalModel string
	language  string
}

// NewOpenAI builds the client. language, when non-empty, forces the
// transcription language (e.g. "en"); by default Whisper auto-detects.
func NewOpenAI(apiKey, language string) *OpenAI {
	return &OpenAI{
		client:    openai.NewClient(apiKey),
		evalModel: openai.GPT4oMini,
		language:  language,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Transcribe uploads the audio payload to the Whisper endpoint.
func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "speech.webm"
	}
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: filename,
		Format:   openai.AudioResponseFormatJSON,
		Language: o.language,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return resp.Text, nil
}

// Evaluate asks the chat model for a FeedbackResult-shaped JSON object.
// The response content is returned raw; the caller owns parsing and
// repair.
func (o *OpenAI) Evaluate(ctx context.Context, req EvalRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal eval request: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.evalModel,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstructions},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("evaluation completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("evaluation completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
