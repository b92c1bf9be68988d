package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/appctx"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/assistant"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/billing"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/config"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/database"
)

const webhookSecret = "whsec_router_test"

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:           "dev",
		PublicDomain:     "http://localhost:4000",
		FrontendURL:      "http://localhost:4000",
		CORSOrigins:      []string{"http://localhost"},
		RateLimitMax:     1000,
		JWTSecret:        "router-test-secret",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
		FreeProjectLimit: 3,
		ProProjectLimit:  -1,
		TrialDays:        14,

		StripeWebhookSecret: webhookSecret,
		MetricsUser:         "admin",
		MetricsPassword:     "secret",
	}
}

func newTestServer(t *testing.T, streamer assistant.Streamer) (*fiber.App, *appctx.App) {
	t.Helper()
	gateway := billing.NewStripeGateway(billing.StripeConfig{WebhookSecret: webhookSecret})
	return newServerWithGateway(t, testConfig(), gateway, streamer)
}

func newServerWithGateway(t *testing.T, cfg *config.Config, gateway billing.Gateway, streamer assistant.Streamer) (*fiber.App, *appctx.App) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	a := appctx.Build(cfg, db, nil, gateway, streamer)
	return NewServer(a, ServerOptions{}), a
}

type response struct {
	status int
	body   map[string]interface{}
	raw    string
	header http.Header
}

func do(t *testing.T, app *fiber.App, method, path, token string, body interface{}) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := response{status: resp.StatusCode, raw: string(raw), header: resp.Header}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func register(t *testing.T, app *fiber.App, email string) (string, string) {
	t.Helper()
	r := do(t, app, "POST", "/api/auth/register", "", fiber.Map{"name": "Test", "email": email, "password": "password123"})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	return r.body["access_token"].(string), r.body["user"].(map[string]interface{})["id"].(string)
}

func TestEndToEndProjectFlow(t *testing.T) {
	app, _ := newTestServer(t, nil)

	r := do(t, app, "POST", "/api/auth/register", "", fiber.Map{"name": "A", "email": "a@example.com", "password": "password123"})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	assert.Equal(t, true, r.body["success"])
	assert.NotEmpty(t, r.body["access_token"])
	assert.NotEmpty(t, r.body["refresh_token"])
	assert.Contains(t, strings.Join(r.header.Values("Set-Cookie"), ";"), "access_token_cookie=")
	token := r.body["access_token"].(string)

	r = do(t, app, "POST", "/api/auth/register", "", fiber.Map{"name": "A", "email": "a@example.com", "password": "password123"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Email already registered", r.body["error"])

	r = do(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": "a@example.com", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "Invalid email or password", r.body["error"])

	r = do(t, app, "POST", "/api/projects/", token, fiber.Map{"name": "Infra"})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	projectID := r.body["project"].(map[string]interface{})["id"].(string)

	two := []fiber.Map{{"id": "a", "type": "aws_instance"}, {"id": "b", "type": "aws_s3_bucket"}}
	r = do(t, app, "POST", "/api/projects/"+projectID+"/save", token, fiber.Map{"resources": two, "connections": []interface{}{}, "positions": fiber.Map{}})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	assert.EqualValues(t, 1, r.body["version"].(map[string]interface{})["version_number"])

	three := append(two, fiber.Map{"id": "c", "type": "aws_vpc"})
	r = do(t, app, "POST", "/api/projects/"+projectID+"/save", token, fiber.Map{"resources": three, "connections": []interface{}{}, "positions": fiber.Map{}})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	assert.EqualValues(t, 2, r.body["version"].(map[string]interface{})["version_number"])

	r = do(t, app, "GET", "/api/projects/"+projectID+"/versions", token, nil)
	require.Equal(t, fiber.StatusOK, r.status, r.raw)
	versions := r.body["versions"].([]interface{})
	require.Len(t, versions, 2)
	first := versions[0].(map[string]interface{})
	second := versions[1].(map[string]interface{})
	assert.EqualValues(t, 2, first["version_number"])
	assert.EqualValues(t, 3, first["resource_count"])
	assert.EqualValues(t, 1, second["version_number"])
	assert.EqualValues(t, 2, second["resource_count"])

	r = do(t, app, "GET", "/api/projects/"+projectID+"/load", token, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.EqualValues(t, 2, r.body["version"].(map[string]interface{})["version_number"])

	r = do(t, app, "GET", "/api/projects/"+projectID+"/versions/1", token, nil)
	assert.Equal(t, fiber.StatusOK, r.status)
	r = do(t, app, "GET", "/api/projects/"+projectID+"/versions/9", token, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "Version not found", r.body["error"])
	r = do(t, app, "GET", "/api/projects/"+projectID+"/versions/abc", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
}

func TestAuthEndpoints(t *testing.T) {
	app, _ := newTestServer(t, nil)

	r := do(t, app, "POST", "/api/auth/register", "", fiber.Map{"email": "x@example.com", "password": "password123"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Missing required fields", r.body["error"])

	r = do(t, app, "POST", "/api/auth/register", "", fiber.Map{"name": "X", "email": "x@example.com", "password": "short"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Password must be at least 8 characters", r.body["error"])

	r = do(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": "x@example.com"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Missing email or password", r.body["error"])

	r = do(t, app, "POST", "/api/auth/register", "", fiber.Map{"name": "X", "email": " X@Example.com ", "password": "password123"})
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	refresh := r.body["refresh_token"].(string)

	r = do(t, app, "POST", "/api/auth/login", "", fiber.Map{"email": "x@example.com", "password": "password123"})
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "Login successful", r.body["message"])
	access := r.body["access_token"].(string)

	r = do(t, app, "GET", "/api/auth/me", access, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	user := r.body["user"].(map[string]interface{})
	assert.Equal(t, "x@example.com", user["email"])
	assert.Equal(t, "free", user["subscription_tier"])
	assert.NotContains(t, user, "password_hash")

	r = do(t, app, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)

	r = do(t, app, "POST", "/api/auth/refresh", access, nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status, "access tokens cannot refresh")
	r = do(t, app, "POST", "/api/auth/refresh", refresh, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.NotEmpty(t, r.body["access_token"])

	r = do(t, app, "POST", "/api/auth/logout", access, nil)
	assert.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "Logout successful", r.body["message"])

	r = do(t, app, "GET", "/api/auth/google/login", "", nil)
	assert.Equal(t, fiber.StatusInternalServerError, r.status)
	assert.Equal(t, "Google OAuth not configured", r.body["error"])
}

func TestProjectAuthorization(t *testing.T) {
	app, _ := newTestServer(t, nil)
	owner, _ := register(t, app, "owner@example.com")
	other, _ := register(t, app, "other@example.com")

	r := do(t, app, "POST", "/api/projects/", owner, fiber.Map{"name": "Mine"})
	require.Equal(t, fiber.StatusCreated, r.status)
	id := r.body["project"].(map[string]interface{})["id"].(string)

	r = do(t, app, "GET", "/api/projects/"+id, other, nil)
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "Unauthorized", r.body["error"])

	r = do(t, app, "GET", "/api/projects/missing", owner, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "Project not found", r.body["error"])

	r = do(t, app, "GET", "/api/projects/"+id+"/load", owner, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.EqualValues(t, 0, r.body["version"].(map[string]interface{})["version_number"])

	r = do(t, app, "POST", "/api/projects/", owner, fiber.Map{"description": "no name"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Project name is required", r.body["error"])

	r = do(t, app, "POST", "/api/projects/", owner, fiber.Map{"name": "Long", "description": strings.Repeat("x", 10001)})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid project data", r.body["error"])

	req := httptest.NewRequest("POST", "/api/projects/", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+owner)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Invalid project data"}`, string(raw))

	for i := 0; i < 2; i++ {
		r = do(t, app, "POST", "/api/projects/", owner, fiber.Map{"name": fmt.Sprintf("p%d", i)})
		require.Equal(t, fiber.StatusCreated, r.status)
	}
	r = do(t, app, "POST", "/api/projects/", owner, fiber.Map{"name": "fourth"})
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "Project limit reached", r.body["error"])
	assert.Equal(t, "Upgrade to Pro for unlimited projects", r.body["message"])

	r = do(t, app, "GET", "/api/projects/", owner, nil)
	assert.Len(t, r.body["projects"], 3)

	r = do(t, app, "DELETE", "/api/projects/"+id, owner, nil)
	assert.Equal(t, fiber.StatusOK, r.status)
	r = do(t, app, "GET", "/api/projects/"+id, owner, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
}

func signPayload(payload []byte) string {
	return signWithSecret(webhookSecret, payload)
}

func signWithSecret(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, sig string) response {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", sig)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode, raw: string(raw)}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func subscriptionEvent(userID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"customer.subscription.created","created":%d,"data":{"object":{"id":"sub_1","object":"subscription","customer":"cus_1","status":"active","metadata":{"user_id":"%s"},"items":{"object":"list","data":[{"id":"si_1","object":"subscription_item","price":{"id":"price_pro","object":"price"}}]}}}}`,
		time.Now().Unix(), userID))
}

func TestWebhookSignature(t *testing.T) {
	app, a := newTestServer(t, nil)
	_, userID := register(t, app, "billing@example.com")

	payload := subscriptionEvent(userID)

	r := postWebhook(t, app, payload, "t=1,v1=deadbeef")
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid signature", r.body["error"])
	assert.Zero(t, countRows(t, a.DB, &models.BillingWebhookEvent{}))
	assert.Zero(t, countRows(t, a.DB, &models.Subscription{}))

	r = postWebhook(t, app, payload, signPayload(payload))
	require.Equal(t, fiber.StatusOK, r.status, r.raw)
	assert.Equal(t, true, r.body["success"])
	assert.EqualValues(t, 1, countRows(t, a.DB, &models.Subscription{}))

	user, err := a.Repos.User.GetByID(userID)
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, user.SubscriptionTier)

	r = do(t, app, "GET", "/api/webhooks/stripe/test", "", nil)
	assert.Equal(t, true, r.body["webhook_configured"])
	assert.Equal(t, "/api/webhooks/stripe", r.body["endpoint"])
}

func TestWebhookRejectedWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.StripeWebhookSecret = ""
	app, a := newServerWithGateway(t, cfg, billing.NewStripeGateway(billing.StripeConfig{}), nil)
	_, userID := register(t, app, "nosecret@example.com")

	payload := subscriptionEvent(userID)
	r := postWebhook(t, app, payload, signWithSecret("", payload))
	assert.Equal(t, fiber.StatusServiceUnavailable, r.status)
	assert.Equal(t, "Webhook not configured", r.body["error"])
	assert.Zero(t, countRows(t, a.DB, &models.BillingWebhookEvent{}))
	assert.Zero(t, countRows(t, a.DB, &models.Subscription{}))

	user, err := a.Repos.User.GetByID(userID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, user.SubscriptionTier)

	r = do(t, app, "GET", "/api/webhooks/stripe/test", "", nil)
	assert.Equal(t, false, r.body["webhook_configured"])
}

func TestSubscriptionEndpointsWithoutStripe(t *testing.T) {
	app, _ := newTestServer(t, nil)
	token, _ := register(t, app, "sub@example.com")

	r := do(t, app, "GET", "/api/subscription/available", "", nil)
	assert.Equal(t, false, r.body["available"])
	assert.Equal(t, "Payment processing is not configured", r.body["message"])

	r = do(t, app, "POST", "/api/subscription/create-checkout-session", token, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, r.status)

	r = do(t, app, "POST", "/api/subscription/create-portal-session", token, nil)
	assert.Equal(t, fiber.StatusForbidden, r.status)

	r = do(t, app, "GET", "/api/subscription/invoices", token, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)

	r = do(t, app, "POST", "/api/subscription/cancel", token, nil)
	assert.Equal(t, fiber.StatusNotFound, r.status)
	assert.Equal(t, "No active subscription found", r.body["error"])

	r = do(t, app, "GET", "/api/subscription/status", token, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "free", r.body["tier"])
	assert.Equal(t, "active", r.body["status"])
	assert.Nil(t, r.body["subscription"])

	r = do(t, app, "GET", "/api/subscription/payments", token, nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Empty(t, r.body["payments"])
}

func sseDelta(text string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]string{"type": "text_delta", "text": text},
	})
	return fmt.Sprintf("event: content_block_delta\ndata: %s\n\n", raw)
}

func fakeAnthropic(t *testing.T, events ...string) assistant.Streamer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			_, _ = io.WriteString(w, e)
		}
	}))
	t.Cleanup(srv.Close)
	cfg := assistant.DefaultClientConfig("test-key")
	cfg.BaseURL = srv.URL
	return assistant.NewClient(cfg)
}

func makePro(t *testing.T, a *appctx.App, userID string) {
	t.Helper()
	user, err := a.Repos.User.GetByID(userID)
	require.NoError(t, err)
	user.SubscriptionTier = models.TierPro
	user.SubscriptionStatus = models.STATUS_ACTIVE
	require.NoError(t, a.Repos.User.Update(user))
}

func TestAIStreamsChunks(t *testing.T) {
	app, a := newTestServer(t, fakeAnthropic(t,
		sseDelta("Use "), sseDelta("spot instances."),
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
	))
	token, userID := register(t, app, "ai@example.com")

	r := do(t, app, "GET", "/api/ai/available", "", nil)
	assert.Equal(t, true, r.body["available"])

	resources := []fiber.Map{{"type": "aws_instance", "instanceType": "m5.large"}}
	r = do(t, app, "POST", "/api/ai/cost-optimization", token, fiber.Map{"resources": resources, "current_cost": 120})
	assert.Equal(t, fiber.StatusForbidden, r.status)
	assert.Equal(t, "AI features require Pro subscription", r.body["error"])
	assert.Equal(t, "/pricing", r.body["upgrade_url"])

	makePro(t, a, userID)

	r = do(t, app, "POST", "/api/ai/cost-optimization", token, fiber.Map{"current_cost": 120})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Resources required", r.body["error"])
	r = do(t, app, "POST", "/api/ai/cost-optimization", token, fiber.Map{"resources": []interface{}{}})
	assert.Equal(t, "No resources to analyze", r.body["error"])

	r = do(t, app, "POST", "/api/ai/cost-optimization", token, fiber.Map{"resources": resources, "current_cost": 120})
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "text/event-stream", r.header.Get("Content-Type"))
	assert.Equal(t, "no", r.header.Get("X-Accel-Buffering"))
	assert.Equal(t, "data: {\"chunk\":\"Use \"}\n\ndata: {\"chunk\":\"spot instances.\"}\n\ndata: [DONE]\n\n", r.raw)
}

func TestAIDesignValidation(t *testing.T) {
	app, a := newTestServer(t, fakeAnthropic(t, sseDelta("ok")))
	token, userID := register(t, app, "design@example.com")
	makePro(t, a, userID)

	r := do(t, app, "POST", "/api/ai/design", token, fiber.Map{})
	assert.Equal(t, "Prompt required", r.body["error"])
	r = do(t, app, "POST", "/api/ai/design", token, fiber.Map{"prompt": "   "})
	assert.Equal(t, "Prompt cannot be empty", r.body["error"])
	r = do(t, app, "POST", "/api/ai/design", token, fiber.Map{"prompt": "three tier app", "cloud_provider": "ibm"})
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "Invalid cloud provider", r.body["error"])
	assert.Len(t, r.body["valid_providers"], 5)

	// the upstream stream ends without message_stop
	r = do(t, app, "POST", "/api/ai/design", token, fiber.Map{"prompt": "three tier app"})
	require.Equal(t, fiber.StatusOK, r.status)
	assert.True(t, strings.HasPrefix(r.raw, "data: {\"chunk\":\"ok\"}\n\n"), r.raw)
	assert.Contains(t, r.raw, "data: {\"error\":")
	assert.True(t, strings.HasSuffix(r.raw, "data: [DONE]\n\n"))
}

func TestAIUnavailable(t *testing.T) {
	app, a := newTestServer(t, nil)
	token, userID := register(t, app, "noai@example.com")
	makePro(t, a, userID)

	r := do(t, app, "GET", "/api/ai/available", "", nil)
	assert.Equal(t, false, r.body["available"])
	r = do(t, app, "POST", "/api/ai/design", token, fiber.Map{"prompt": "vpc"})
	assert.Equal(t, fiber.StatusServiceUnavailable, r.status)
}

func TestTerraformStubs(t *testing.T) {
	app, _ := newTestServer(t, nil)
	token, _ := register(t, app, "tf@example.com")

	r := do(t, app, "POST", "/api/terraform/parse", token, fiber.Map{"code": "resource \"aws_vpc\" \"main\" {}"})
	assert.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "Terraform parsing coming soon", r.body["message"])
	r = do(t, app, "POST", "/api/terraform/parse", token, fiber.Map{})
	assert.Equal(t, "Terraform code is required", r.body["error"])

	r = do(t, app, "POST", "/api/terraform/generate", token, fiber.Map{"resources": []interface{}{}})
	assert.Equal(t, fiber.StatusOK, r.status)
	r = do(t, app, "POST", "/api/terraform/generate", token, fiber.Map{})
	assert.Equal(t, "Resources are required", r.body["error"])

	r = do(t, app, "POST", "/api/terraform/validate", token, fiber.Map{"code": ""})
	assert.Equal(t, true, r.body["valid"])

	r = do(t, app, "POST", "/api/terraform/validate", "", fiber.Map{"code": ""})
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
}

func TestPlatformEndpoints(t *testing.T) {
	app, _ := newTestServer(t, nil)

	r := do(t, app, "GET", "/health", "", nil)
	require.Equal(t, fiber.StatusOK, r.status)
	assert.Equal(t, "healthy", r.body["status"])
	assert.Equal(t, "connected", r.body["database"])
	assert.Equal(t, "not_configured", r.body["redis"])

	r = do(t, app, "GET", "/api", "", nil)
	assert.Equal(t, "TFVisualizer API", r.body["name"])

	r = do(t, app, "GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	app, a := newTestServer(t, nil)
	sqlDB, err := a.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := do(t, app, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, r.status)
	assert.Equal(t, "unhealthy", r.body["status"])
}
