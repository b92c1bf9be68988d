package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/projects/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/projects/"+id, nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/projects/:id", "204")))

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `http_requests_total{code="204",method="GET",path="/api/projects/:id"} 3`)
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.WebhookProcessed("customer.subscription.updated", "ok")
	m.WebhookProcessed("customer.subscription.updated", "ok")
	m.VersionSaved("conflict")
	m.TrialSweep("expired", 4)
	m.TrialSweep("expired", 0)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.webhookEvents.WithLabelValues("customer.subscription.updated", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.versionsSaved.WithLabelValues("conflict")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.trialSweeps.WithLabelValues("expired")))
}
