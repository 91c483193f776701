package geminiservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"NutriScan/internal/utility"
)

// --- Gemini API Configuration ---
const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel          = "gemini-2.5-flash"
	defaultTimeoutSeconds = 30
	defaultMaxImageBytes  = 10 << 20
	structuredMimeType    = "application/json"
)

// --- Structs for Gemini API Request/Response ---

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType"`
	ResponseSchema   *GeminiSchema `json:"responseSchema,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

/* =================================================================================
								ERRORS
=================================================================================*/

// ErrCompletion matches every failure returned by Complete.
var ErrCompletion = errors.New("completion failed")

type CompletionErrorKind string

const (
	KindConfig  CompletionErrorKind = "config"
	KindImage   CompletionErrorKind = "image"
	KindNetwork CompletionErrorKind = "network"
	KindStatus  CompletionErrorKind = "status"
	KindDecode  CompletionErrorKind = "decode"
	KindEmpty   CompletionErrorKind = "empty"
)

// CompletionError is a typed failure of the completion endpoint.
type CompletionError struct {
	Kind       CompletionErrorKind
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gemini %s error (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gemini %s error: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func (e *CompletionError) Is(target error) bool { return target == ErrCompletion }

/* =================================================================================
								CLIENT
=================================================================================*/

// Completer turns a scan prompt into the model's raw response text.
type Completer interface {
	Complete(ctx context.Context, prompt ScanPrompt) (string, error)
}

// Client calls the Gemini generateContent endpoint. It never retries.
type Client struct {
	apiKey        string
	model         string
	baseURL       string
	maxImageBytes int64
	httpClient    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

func WithMaxImageBytes(n int64) Option { return func(c *Client) { c.maxImageBytes = n } }

func NewClient(apiKey, model string, timeout time.Duration, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}
	c := &Client{
		apiKey:        apiKey,
		model:         model,
		baseURL:       defaultBaseURL,
		maxImageBytes: defaultMaxImageBytes,
		httpClient:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewClientFromEnv reads GEMINI_API_KEY, GEMINI_MODEL and GEMINI_TIMEOUT_SECONDS.
func NewClientFromEnv(opts ...Option) *Client {
	timeout := time.Duration(utility.EnvInt("GEMINI_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	return NewClient(os.Getenv("GEMINI_API_KEY"), os.Getenv("GEMINI_MODEL"), timeout, opts...)
}

// Complete fetches the image, sends it inline with the prompt and returns the text of the
// first candidate.
func (c *Client) Complete(ctx context.Context, prompt ScanPrompt) (string, error) {
	logger := utility.Logger(ctx)

	if c.apiKey == "" {
		logger.Error().Msg("GEMINI_API_KEY environment variable is not set")
		return "", &CompletionError{Kind: KindConfig, Err: errors.New("server is not configured for image analysis")}
	}

	image, mimeType, err := c.fetchImage(ctx, prompt.ImageURL)
	if err != nil {
		return "", err
	}

	payload := GeminiPayload{
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: prompt.System}},
		},
		Contents: []GeminiContent{{
			Role: "user",
			Parts: []GeminiPart{
				{Text: prompt.User},
				{InlineData: &InlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
			},
		}},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   NutritionSchema,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", &CompletionError{Kind: KindConfig, Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", &CompletionError{Kind: KindConfig, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Info().Str("model", c.model).Int("image_bytes", len(image)).Msg("Calling Gemini API")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &CompletionError{Kind: KindNetwork, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &CompletionError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned non-200 status: %s, Body: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", &CompletionError{Kind: KindDecode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &CompletionError{Kind: KindEmpty, Err: errors.New("no content found in Gemini response")}
	}
	text := geminiResp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", &CompletionError{Kind: KindEmpty, Err: errors.New("empty text in Gemini response")}
	}
	return text, nil
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	if imageURL == "" {
		return nil, "", &CompletionError{Kind: KindImage, Err: errors.New("image url is empty")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", &CompletionError{Kind: KindImage, Err: fmt.Errorf("invalid image url: %w", err)}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &CompletionError{Kind: KindNetwork, Err: fmt.Errorf("image download failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &CompletionError{Kind: KindImage, StatusCode: resp.StatusCode, Err: fmt.Errorf("image download returned %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, "", &CompletionError{Kind: KindNetwork, Err: fmt.Errorf("image download failed: %w", err)}
	}
	if int64(len(data)) > c.maxImageBytes {
		return nil, "", &CompletionError{Kind: KindImage, Err: fmt.Errorf("image exceeds %d bytes", c.maxImageBytes)}
	}
	if len(data) == 0 {
		return nil, "", &CompletionError{Kind: KindImage, Err: errors.New("image is empty")}
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", &CompletionError{Kind: KindImage, Err: fmt.Errorf("unsupported content type %q", mimeType)}
	}
	return data, mimeType, nil
}
