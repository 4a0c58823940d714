package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

const deepgramListenURL = "https://api.deepgram.com/v1/listen"

// Deepgram transcribes prerecorded audio with one POST against the
// listen endpoint.
type Deepgram struct {
	apiKey   string
	language string
	client   *http.Client
	baseURL  string
}

func NewDeepgram(apiKey, language string) *Deepgram {
	return &Deepgram{
		apiKey:   apiKey,
		language: language,
		baseURL:  deepgramListenURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	q := url.Values{}
	q.Set("model", "nova-2")
	q.Set("smart_format", "true")
	if d.language != "" {
		q.Set("language", d.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(filename))

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepgram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(body))
	}

	var dg deepgramResponse
	if err := json.Unmarshal(body, &dg); err != nil {
		return "", fmt.Errorf("deepgram response parse error: %w", err)
	}
	if len(dg.Results.Channels) == 0 || len(dg.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return dg.Results.Channels[0].Alternatives[0].Transcript, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/webm"
	}
}
