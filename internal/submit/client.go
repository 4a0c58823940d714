// Package submit packages a finished recording into one multipart
// request against the analysis service.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"speakcoach/internal/capture"
	"speakcoach/internal/coach"
	"speakcoach/internal/prompts"
)

// ErrBusy rejects a second submission while one is in flight. Consume
// the response (success or error) first.
var ErrBusy = fmt.Errorf("a submission is already in flight")

// APIError is a non-200 response from the analysis service. There is
// no automatic retry: the caller re-records or resubmits manually.
type APIError struct {
	StatusCode int
	Message    string
	Stage      string // set on provider failures
}

func (e *APIError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("analysis failed (%d, stage %s): %s", e.StatusCode, e.Stage, e.Message)
	}
	return fmt.Sprintf("analysis failed (%d): %s", e.StatusCode, e.Message)
}

// Client submits recordings and collaborator records to the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string

	mu       sync.Mutex
	inFlight bool
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// SetToken attaches a Bearer token to subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Analyze submits one recording session and returns the feedback
// result. Exactly one submission may be in flight at a time.
func (c *Client) Analyze(ctx context.Context, sess capture.Session) (coach.Result, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return coach.Result{}, ErrBusy
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	goal := sess.Goal
	if goal == "" {
		goal = prompts.DefaultGoal
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", "speech.wav")
	if err != nil {
		return coach.Result{}, err
	}
	if _, err := part.Write(sess.AudioBytes); err != nil {
		return coach.Result{}, err
	}
	fields := map[string]string{
		"durationSec": strconv.Itoa(sess.DurationSec),
		"goal":        goal,
		"promptText":  sess.PromptText,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return coach.Result{}, err
		}
	}
	if err := w.Close(); err != nil {
		return coach.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &body)
	if err != nil {
		return coach.Result{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return coach.Result{}, fmt.Errorf("submit analysis: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return coach.Result{}, fmt.Errorf("read analysis response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return coach.Result{}, decodeAPIError(resp.StatusCode, data)
	}

	var result coach.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return coach.Result{}, fmt.Errorf("decode analysis response: %w", err)
	}
	return result, nil
}

// RecordSession reports a completed analysis to the persistence store.
// Best-effort: callers log the error and move on.
func (c *Client) RecordSession(ctx context.Context, durationSec int, levelLabel, goal string) error {
	return c.postJSON(ctx, "/sessions", map[string]any{
		"duration_sec": durationSec,
		"level_label":  levelLabel,
		"goal":         goal,
	})
}

// RecordFeedback submits the one-time solicitation response.
func (c *Client) RecordFeedback(ctx context.Context, name, email string, rating int, text string) error {
	return c.postJSON(ctx, "/feedback", map[string]any{
		"name":   name,
		"email":  email,
		"rating": rating,
		"text":   text,
	})
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, body)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var parsed struct {
		Error string `json:"error"`
		Stage string `json:"stage"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		apiErr.Message = parsed.Error
		apiErr.Stage = parsed.Stage
	}
	return apiErr
}
