package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

var (
	ErrUnavailable     = errors.New("AI service not configured")
	ErrNoResources     = errors.New("no resources to analyze")
	ErrEmptyPrompt     = errors.New("prompt cannot be empty")
	ErrInvalidProvider = errors.New("invalid cloud provider")
)

// Streamer opens a streaming completion.
type Streamer interface {
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// Service builds prompts and relays completions for the editor.
type Service struct {
	streamer Streamer
}

// NewService creates the assistant. A nil streamer disables it.
func NewService(streamer Streamer) *Service {
	if streamer == nil {
		log.Warn("[Assistant] ANTHROPIC_API_KEY not configured - AI features disabled")
	}
	return &Service{streamer: streamer}
}

func (s *Service) Available() bool {
	return s != nil && s.streamer != nil
}

// CostOptimization streams cost saving suggestions for the given design.
func (s *Service) CostOptimization(ctx context.Context, resources []Resource, currentCost float64) (*Stream, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	if len(resources) == 0 {
		return nil, ErrNoResources
	}
	return s.streamer.Stream(ctx, Request{
		Prompt:      costOptimizationPrompt(resources, currentCost),
		MaxTokens:   2048,
		Temperature: 0.3,
	})
}

// Design streams an infrastructure design for a natural language request.
func (s *Service) Design(ctx context.Context, prompt, provider string) (*Stream, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if provider == "" {
		provider = "aws"
	}
	if !IsValidProvider(provider) {
		return nil, ErrInvalidProvider
	}
	return s.streamer.Stream(ctx, Request{
		Prompt:      designPrompt(prompt, provider),
		MaxTokens:   3072,
		Temperature: 0.5,
	})
}
