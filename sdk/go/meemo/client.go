// Package meemo provides a Go SDK client for the Meemo tutoring HTTP API.
//
// Usage:
//
//	client := meemo.NewClient("http://localhost:8080", meemo.WithAPIKey("my-key"))
//	sess, err := client.CreateSession(ctx)
//	result, err := client.SendMessage(ctx, sess.SessionID, "(start)")
//	if result.Suspended {
//		result, err = client.Resume(ctx, sess.SessionID, "I'm Sam")
//	}
package meemo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Slide is one presentation slide built during a session.
type Slide struct {
	SlideNumber       int      `json:"slide_number"`
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	FullContent       string   `json:"full_content"`
	Topic             string   `json:"topic"`
	KeyPoints         []string `json:"key_points,omitempty"`
	VisualDescription string   `json:"visual_description"`
	VisualType        string   `json:"visual_type"`
	VisualData        any      `json:"visual_data,omitempty"`
}

// Summary is the progress view of a session.
type Summary struct {
	Stage              string   `json:"current_stage"`
	CurrentTopic       string   `json:"current_topic,omitempty"`
	TopicsCovered      []string `json:"topics_covered"`
	TopicsRemaining    []string `json:"topics_remaining"`
	QuestionsAsked     int      `json:"questions_asked"`
	UnderstandingLevel string   `json:"understanding_level"`
	CurrentSlideIndex  int      `json:"current_slide_index"`
	TotalSlides        int      `json:"total_slides"`
}

// TurnResult is the terminal payload of one turn. When Suspended is
// true the session is waiting for an answer to Prompt and the turn
// must be continued with Resume.
type TurnResult struct {
	SessionID   string  `json:"session_id"`
	Suspended   bool    `json:"suspended"`
	Prompt      string  `json:"prompt,omitempty"`
	InterruptID string  `json:"interrupt_id,omitempty"`
	Message     string  `json:"message,omitempty"`
	Stage       string  `json:"stage"`
	Slide       *Slide  `json:"slide,omitempty"`
	Summary     Summary `json:"summary"`
}

// SessionInfo holds information about a created session.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is the response from the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// StreamEvent is a single event from a streaming turn.
type StreamEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// APIError represents an error response from the Meemo API.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client is the Meemo API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Meemo client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var apiErr APIError
		apiErr.StatusCode = resp.StatusCode
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			apiErr.ErrorCode = "unknown"
			apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, &apiErr
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// Health checks the server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var result HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSession provisions a new tutoring session.
func (c *Client) CreateSession(ctx context.Context) (*SessionInfo, error) {
	var result SessionInfo
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendMessage runs one learner utterance as a turn. Sessions are
// created lazily, so an unknown session id starts a fresh one. When
// the returned result is suspended, answer it with Resume.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	body := map[string]interface{}{"message": message}

	var result TurnResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/message", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Resume answers a pending suspension.
func (c *Client) Resume(ctx context.Context, sessionID, answer string) (*TurnResult, error) {
	body := map[string]interface{}{"answer": answer}

	var result TurnResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/resume", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StreamCallback is called with each streaming event.
type StreamCallback func(event StreamEvent) error

// StreamMessage runs one turn with streaming and calls the callback
// for each SSE event. Set resume to answer a pending suspension
// instead of sending a regular message.
func (c *Client) StreamMessage(ctx context.Context, sessionID, input string, resume bool, callback StreamCallback) error {
	body := map[string]interface{}{"resume": resume}
	if resume {
		body["answer"] = input
	} else {
		body["message"] = input
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/stream", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	eventType := ""

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			eventType = line[7:]
		} else if strings.HasPrefix(line, "data: ") {
			dataStr := line[6:]
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(dataStr), &data); err != nil {
				data = map[string]interface{}{"raw": dataStr}
			}

			event := StreamEvent{Event: eventType, Data: data}
			if err := callback(event); err != nil {
				return err
			}
			if eventType == "turn_end" {
				return nil
			}
			eventType = ""
		}
	}

	return scanner.Err()
}

// Summary returns the progress view for a session.
func (c *Client) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	var result Summary
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Slides returns all slides built for a session.
func (c *Client) Slides(ctx context.Context, sessionID string) ([]Slide, error) {
	var result struct {
		Slides []Slide `json:"slides"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/slides", nil, &result); err != nil {
		return nil, err
	}
	return result.Slides, nil
}

// Navigate moves the session's slide pointer one step. Direction is
// "next" or "previous".
func (c *Client) Navigate(ctx context.Context, sessionID, direction string) (*Slide, error) {
	body := map[string]interface{}{"direction": direction}

	var result struct {
		Slide *Slide `json:"slide"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/slides/navigate", body, &result); err != nil {
		return nil, err
	}
	return result.Slide, nil
}

// DeleteSession deletes a session and its state.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}
