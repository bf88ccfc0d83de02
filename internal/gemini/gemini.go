// Package gemini is a minimal client for the Google generative-language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// FinishStop is the finish reason of a normally completed candidate.
const FinishStop = "STOP"

// NoResponseText substitutes for a candidate that carries no text part.
const NoResponseText = "No response received."

// Result is the normalized outcome of one successful generate call.
type Result struct {
	Text         string
	FinishReason string
	StatusCode   int
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// KindUnavailable covers transport failures: timeout, refused, reset.
	KindUnavailable ErrorKind = "unavailable"
	// KindRateLimited maps HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindNotConfigured maps HTTP 404: wrong model or endpoint.
	KindNotConfigured ErrorKind = "not_configured"
	// KindUpstream covers any other non-success provider response.
	KindUpstream ErrorKind = "upstream"
	// KindInterrupted covers empty or abnormally finished candidates.
	KindInterrupted ErrorKind = "interrupted"
)

// Error is a classified provider failure.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, for upstream failures
	Reason  string // finish reason, for interrupted generations
	Message string
	Err     error // underlying transport error, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnavailable:
		return fmt.Sprintf("gemini unavailable: %v", e.Err)
	case KindInterrupted:
		return fmt.Sprintf("gemini generation interrupted: %s", e.Reason)
	case KindUpstream:
		return fmt.Sprintf("gemini error status=%d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("gemini %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Client is a minimal Gemini generateContent client.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a Gemini client. Timeouts are applied per call, not on
// the client, because title generation runs on a shorter budget than chat.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt and returns the normalized outcome. Any failure
// is returned as *Error with its classification.
func (c *Client) Generate(ctx context.Context, prompt string, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, errors.Wrap(err, "marshal gemini request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, errors.Wrap(err, "create gemini request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &Error{Kind: KindUnavailable, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, classifyStatus(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, &Error{Kind: KindUpstream, Status: resp.StatusCode, Message: "unparseable provider response"}
	}

	if len(parsed.Candidates) == 0 {
		return Result{}, &Error{Kind: KindInterrupted, Reason: "UNKNOWN"}
	}
	cand := parsed.Candidates[0]
	if cand.FinishReason != FinishStop {
		return Result{}, &Error{Kind: KindInterrupted, Reason: cand.FinishReason}
	}

	result := Result{FinishReason: cand.FinishReason, StatusCode: resp.StatusCode}
	if len(cand.Content.Parts) > 0 {
		result.Text = strings.TrimSpace(cand.Content.Parts[0].Text)
	}
	if result.Text == "" {
		result.Text = NoResponseText
	}
	return result, nil
}

func classifyStatus(status int, body []byte) *Error {
	message := "the AI service responded with an error"
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: status, Message: message}
	case http.StatusNotFound:
		return &Error{Kind: KindNotConfigured, Status: status, Message: message}
	default:
		return &Error{Kind: KindUpstream, Status: status, Message: message}
	}
}
