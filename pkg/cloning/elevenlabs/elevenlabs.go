// Package elevenlabs implements the cloning.Client interface against the
// ElevenLabs REST API: instant voice cloning via POST /v1/voices/add and
// synthesis via POST /v1/text-to-speech/{voice_id}.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_monolingual_v1"

	// maxTextLen mirrors the documented per-request character limit.
	maxTextLen = 5000
)

// Compile-time interface check.
var _ cloning.Client = (*Client)(nil)

// Option is a functional option for configuring the ElevenLabs Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests against httptest
// servers.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the synthesis model ID (e.g. "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client implements cloning.Client backed by the ElevenLabs REST API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates an ElevenLabs Client. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ---- wire types ----

// addVoiceResponse is the body returned by POST /v1/voices/add.
type addVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// speechRequest is the body sent to POST /v1/text-to-speech/{voice_id}.
type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// apiError mirrors the ElevenLabs error envelope. The detail field is either
// a plain string or an object with status/message, so it is kept raw and
// flattened by errorDetail.
type apiError struct {
	Detail json.RawMessage `json:"detail"`
}

// ---- CreateVoice ----

// CreateVoice uploads the sample at audioPath as a new instant voice clone
// and returns the assigned voice ID.
func (c *Client) CreateVoice(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: open sample: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("elevenlabs: read sample: %w", err)
	}
	_ = mw.WriteField("name", "Voice Clone")
	_ = mw.WriteField("description", "Voice cloned from video audio")
	_ = mw.WriteField("labels", `{"accent":"neutral"}`)
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs: finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create voice: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", classifyCreateError(resp.StatusCode, raw)
	}

	var out addVoiceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("elevenlabs: decode voice response: %w", err)
	}
	if out.VoiceID == "" {
		return "", &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: "response missing voice_id"}
	}
	return out.VoiceID, nil
}

// ---- Synthesize ----

// Synthesize renders text with the given voice and returns MPEG audio bytes.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &cloning.Error{Kind: cloning.KindInvalidText, Detail: "text must not be empty"}
	}
	if len(text) > maxTextLen {
		return nil, &cloning.Error{
			Kind:   cloning.KindInvalidText,
			Detail: fmt.Sprintf("text length %d exceeds limit %d", len(text), maxTextLen),
		}
	}

	payload, _ := json.Marshal(speechRequest{Text: text, ModelID: c.model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, classifySpeechError(resp.StatusCode, raw)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: err.Error()}
	}
	return audio, nil
}

// ---- RenameVoice ----

// RenameVoice updates the voice's display name upstream.
func (c *Client) RenameVoice(ctx context.Context, voiceID, name string) error {
	payload, _ := json.Marshal(map[string]any{
		"name":   name,
		"labels": map[string]string{"accent": "neutral"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch,
		c.baseURL+"/voices/"+voiceID, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("elevenlabs: rename voice: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return classifySpeechError(resp.StatusCode, raw)
	}
	return nil
}

// ---- DeleteVoice ----

// DeleteVoice removes the voice from the upstream account.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/voices/"+voiceID, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: delete voice: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return classifySpeechError(resp.StatusCode, raw)
	}
	return nil
}

// ---- error classification ----

// classifyCreateError maps a non-200 /voices/add response to a cloning.Error.
func classifyCreateError(status int, body []byte) error {
	detail := errorDetail(body)
	lower := strings.ToLower(detail)

	switch {
	case status == http.StatusRequestEntityTooLarge:
		return &cloning.Error{Kind: cloning.KindFileTooLarge, Detail: detail}
	case status == http.StatusUnsupportedMediaType:
		return &cloning.Error{Kind: cloning.KindUnsupportedFormat, Detail: detail}
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return &cloning.Error{Kind: cloning.KindQuotaExceeded, Detail: detail}
	case strings.Contains(lower, "voice_limit") || strings.Contains(lower, "quota"):
		return &cloning.Error{Kind: cloning.KindQuotaExceeded, Detail: detail}
	case strings.Contains(lower, "corrupted") || strings.Contains(lower, "invalid_content") || strings.Contains(lower, "could not decode"):
		return &cloning.Error{Kind: cloning.KindUnsupportedFormat, Detail: detail}
	case status >= 500:
		return &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: statusDetail(status, detail)}
	default:
		return &cloning.Error{Kind: cloning.KindUnsupportedFormat, Detail: statusDetail(status, detail)}
	}
}

// classifySpeechError maps a non-200 voice-scoped response to a cloning.Error.
func classifySpeechError(status int, body []byte) error {
	detail := errorDetail(body)
	switch {
	case status == http.StatusNotFound:
		return &cloning.Error{Kind: cloning.KindUnknownVoice, Detail: detail}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &cloning.Error{Kind: cloning.KindInvalidText, Detail: detail}
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return &cloning.Error{Kind: cloning.KindQuotaExceeded, Detail: detail}
	default:
		return &cloning.Error{Kind: cloning.KindUpstreamUnavailable, Detail: statusDetail(status, detail)}
	}
}

// errorDetail flattens the ElevenLabs error envelope into a single line.
// The detail field may be a string or an object with a message field.
func errorDetail(body []byte) string {
	var env apiError
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var obj struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Detail, &obj); err == nil {
		if obj.Message != "" {
			if obj.Status != "" {
				return obj.Status + ": " + obj.Message
			}
			return obj.Message
		}
		if obj.Status != "" {
			return obj.Status
		}
	}
	return strings.TrimSpace(string(env.Detail))
}

func statusDetail(status int, detail string) string {
	if detail == "" {
		return fmt.Sprintf("unexpected status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, detail)
}
