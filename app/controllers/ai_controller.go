package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/assistant"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/entitlements"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/usercontext"
)

// streamTimeout caps one relayed completion once the handler has returned.
const streamTimeout = 5 * time.Minute

type costOptimizationRequest struct {
	Resources   *[]assistant.Resource `json:"resources"`
	CurrentCost float64               `json:"current_cost"`
}

type designRequest struct {
	Prompt        *string `json:"prompt"`
	CloudProvider string  `json:"cloud_provider"`
}

// AIController relays design assistant completions as server-sent events
type AIController struct {
	app *appctx.App
}

func NewAIController(app *appctx.App) *AIController {
	return &AIController{app: app}
}

func (ac *AIController) HandleAvailable(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"available": ac.app.Assistant.Available()})
}

func (ac *AIController) HandleCostOptimization(c *fiber.Ctx) error {
	if denied := requireAI(c); denied != nil {
		return denied()
	}

	var req costOptimizationRequest
	if err := c.BodyParser(&req); err != nil || req.Resources == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Resources required")
	}
	if len(*req.Resources) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "No resources to analyze")
	}
	if !ac.app.Assistant.Available() {
		return errorJSON(c, fiber.StatusServiceUnavailable, "AI service not configured")
	}

	userID := usercontext.GetUserID(c)
	log.Infof("[Assistant] Cost optimization started for user %s", userID)
	return ac.stream(c, func(ctx context.Context) (*assistant.Stream, error) {
		return ac.app.Assistant.CostOptimization(ctx, *req.Resources, req.CurrentCost)
	})
}

func (ac *AIController) HandleDesign(c *fiber.Ctx) error {
	if denied := requireAI(c); denied != nil {
		return denied()
	}

	var req designRequest
	if err := c.BodyParser(&req); err != nil || req.Prompt == nil {
		return errorJSON(c, fiber.StatusBadRequest, "Prompt required")
	}
	prompt := strings.TrimSpace(*req.Prompt)
	if prompt == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Prompt cannot be empty")
	}
	provider := req.CloudProvider
	if provider == "" {
		provider = "aws"
	}
	if !assistant.IsValidProvider(provider) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":           "Invalid cloud provider",
			"valid_providers": assistant.ValidProviders,
		})
	}
	if !ac.app.Assistant.Available() {
		return errorJSON(c, fiber.StatusServiceUnavailable, "AI service not configured")
	}

	userID := usercontext.GetUserID(c)
	log.Infof("[Assistant] Design generation started for user %s (%s)", userID, provider)
	return ac.stream(c, func(ctx context.Context) (*assistant.Stream, error) {
		return ac.app.Assistant.Design(ctx, prompt, provider)
	})
}

// requireAI returns a responder when the caller lacks an entitling pro plan.
func requireAI(c *fiber.Ctx) func() error {
	if entitlements.CanUseAI(usercontext.GetUser(c)) {
		return nil
	}
	return func() error {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":       "AI features require Pro subscription",
			"upgrade_url": "/pricing",
		})
	}
}

// stream opens the completion and writes it as SSE frames. Every stream ends
// with a [DONE] frame, also after an error frame.
func (ac *AIController) stream(c *fiber.Ctx, open func(ctx context.Context) (*assistant.Stream, error)) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithTimeout(context.Background(), streamTimeout)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		s, err := open(ctx)
		if err != nil {
			log.Errorf("[Assistant] Opening completion failed: %v", err)
			writeFrame(w, fiber.Map{"error": streamErrorMessage(err)})
			writeDone(w)
			return
		}
		defer s.Close()

		for {
			chunk, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Errorf("[Assistant] Stream failed: %v", err)
				writeFrame(w, fiber.Map{"error": streamErrorMessage(err)})
				break
			}
			if writeFrame(w, fiber.Map{"chunk": chunk}) != nil {
				// client went away
				return
			}
		}
		writeDone(w)
	})
	return nil
}

func streamErrorMessage(err error) string {
	if errors.Is(err, assistant.ErrCircuitOpen) {
		return "AI service temporarily unavailable"
	}
	return "AI request failed"
}

func writeFrame(w *bufio.Writer, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}
	return w.Flush()
}

func writeDone(w *bufio.Writer) {
	_, _ = w.WriteString("data: [DONE]\n\n")
	_ = w.Flush()
}
