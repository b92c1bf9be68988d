package assistant

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sony/gobreaker/v2"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1/messages"
	anthropicModel   = "claude-sonnet-4-20250514"
	anthropicVersion = "2023-06-01"
	maxErrorBodyLen  = 512
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls after repeated upstream failures.
	ErrCircuitOpen = errors.New("assistant circuit open")
	ErrNoAPIKey    = errors.New("ANTHROPIC_API_KEY not set")
)

// UpstreamError is a non-200 answer of the Messages API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("anthropic API error (%d): %s", e.StatusCode, e.Body)
}

// serverSide statuses trip the breaker, client errors do not.
func (e *UpstreamError) serverSide() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig tunes the upstream client.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration

	// Breaker trips after FailureThreshold consecutive failures and stays open for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultClientConfig returns the production settings for apiKey.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:                apiKey,
		BaseURL:               anthropicBaseURL,
		DialTimeout:           10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		FailureThreshold:      5,
		OpenTimeout:           30 * time.Second,
	}
}

// Client calls the Anthropic Messages API in streaming mode.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one prompt with its sampling settings.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	settings := gobreaker.Settings{
		Name:    "anthropic",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var upstream *UpstreamError
			if errors.As(err, &upstream) {
				return !upstream.serverSide()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[Assistant] Circuit breaker %s changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		// No overall timeout, streams stay open as long as tokens arrive.
		client:  &http.Client{Transport: transport},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// Stream opens a streaming completion. The caller must Close the stream.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	body, err := json.Marshal(messagesRequest{
		Model:       anthropicModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
			resp.Body.Close()
			return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body), nil
}

// Stream yields text deltas of one completion. It is single consumer and
// cannot be restarted.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func newStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Next returns the next text chunk, or io.EOF after message_stop.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return "", fmt.Errorf("decode stream event: %w", err)
		}
		switch evt.Type {
		case "content_block_delta":
			if evt.Delta.Type == "text_delta" && evt.Delta.Text != "" {
				return evt.Delta.Text, nil
			}
		case "message_stop":
			s.done = true
			return "", io.EOF
		case "error":
			s.done = true
			return "", fmt.Errorf("upstream stream error (%s): %s", evt.Error.Type, evt.Error.Message)
		}
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", io.ErrUnexpectedEOF
}

func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}
