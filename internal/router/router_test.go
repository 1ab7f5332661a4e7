package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74"

	"github.com/pactwise/pactwise-backend/internal/cache"
	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/i18n"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/repository/memory"
	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

const (
	testJWTSecret     = "router-test-secret"
	testWebhookSecret = "whsec_router_test"
)

type stubGateway struct{}

func (stubGateway) CreateCustomer(context.Context, string, string, map[string]string) (string, error) {
	return "cus_test", nil
}

func (stubGateway) CreateCheckoutSession(_ context.Context, input services.CheckoutSessionInput) (*services.CheckoutSession, error) {
	return &services.CheckoutSession{SessionID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (stubGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (stubGateway) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	return nil, fmt.Errorf("no such subscription: %s", id)
}

func (stubGateway) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id, CancelAtPeriodEnd: cancel}, nil
}

type recordingAuditLogs struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAuditLogs) Create(_ context.Context, entry *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingAuditLogs) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *recordingAuditLogs) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type RouterTestSuite struct {
	suite.Suite
	repos      *repository.Repositories
	audit      *recordingAuditLogs
	engine     *gin.Engine
	release    func()
	enterprise uuid.UUID
	owner      uuid.UUID
	ownerToken string
}

func (s *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
	utils.SetJWTSecret(testJWTSecret)
	utils.SetJWTIssuer("")
}

func (s *RouterTestSuite) SetupTest() {
	s.T().Setenv(config.EnvStripeWebhookSecret, testWebhookSecret)

	cfg := &config.Config{
		Environment: "test",
		Storage:     config.StorageConfig{Driver: services.StorageDriverLocal, MaxUploadMB: 1, PresignExpiry: 15 * time.Minute},
		I18n:        config.I18nConfig{DefaultLocale: "en"},
		Frontend:    config.FrontendConfig{BaseURL: "http://app.test"},
	}

	s.repos = memory.NewRepositories()
	s.audit = &recordingAuditLogs{}
	s.repos.AuditLogs = s.audit

	svc, err := services.NewContainer(s.repos, cache.NewMemory(), stubGateway{}, cfg)
	s.Require().NoError(err)
	s.engine, s.release = Initialize(svc, s.repos, cfg)

	s.enterprise = uuid.New()
	s.owner = uuid.New()
	s.ownerToken = s.token(s.owner, models.UserRoleOwner)
}

func (s *RouterTestSuite) token(userID uuid.UUID, role models.UserRole) string {
	token, err := utils.GenerateJWT(userID, s.enterprise, string(role), "someone@acme.test", time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterTestSuite) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var body envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func (s *RouterTestSuite) do(method, path string, payload interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req, token)
}

func (s *RouterTestSuite) decode(body envelope, dest interface{}) {
	s.Require().NoError(json.Unmarshal(body.Data, dest))
}

func (s *RouterTestSuite) TearDownTest() {
	s.release()
}

func (s *RouterTestSuite) TestReleaseIsIdempotent() {
	s.release()
	s.NotPanics(s.release)

	w, _ := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestHealthAndMetrics() {
	w, _ := s.do(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "healthy")
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	w, _ = s.do(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterTestSuite) TestRequiresBearerToken() {
	w, body := s.do(http.MethodGet, "/v1/contracts", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", body.Error.Code)

	w, _ = s.do(http.MethodGet, "/v1/contracts", nil, "not-a-jwt")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterTestSuite) TestContractLifecycle() {
	w, body := s.do(http.MethodPost, "/v1/vendors", map[string]interface{}{"name": "Globex", "category": "software"}, s.ownerToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var vendor models.Vendor
	s.decode(body, &vendor)

	w, body = s.do(http.MethodPost, "/v1/contracts", map[string]interface{}{
		"title":     "Globex MSA",
		"vendor_id": vendor.ID,
	}, s.ownerToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var contract models.Contract
	s.decode(body, &contract)
	s.Equal(models.ContractStatusDraft, contract.Status)

	w, _ = s.do(http.MethodGet, "/v1/contracts?status=draft,pending_analysis", nil, s.ownerToken)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("1", w.Header().Get("X-Total-Count"))

	// upload a document
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "msa.pdf")
	s.Require().NoError(err)
	_, err = part.Write([]byte("%PDF-1.4 master services agreement"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/contracts/"+contract.ID.String()+"/document", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, body = s.send(req, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(body, &contract)
	s.Equal(models.ContractStatusPendingAnalysis, contract.Status)
	s.Equal("msa.pdf", contract.FileName)

	w, body = s.do(http.MethodGet, "/v1/contracts/"+contract.ID.String()+"/document", nil, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var link services.DocumentLink
	s.decode(body, &link)
	s.Contains(link.URL, "?expires=")

	w, body = s.do(http.MethodPut, "/v1/contracts/"+contract.ID.String()+"/status", map[string]string{"status": "active"}, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.decode(body, &contract)
	s.Equal(models.ContractStatusActive, contract.Status)

	s.Eventually(func() bool {
		actions := s.audit.actions()
		for _, a := range actions {
			if a == "PUT /v1/contracts/:id/status" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func (s *RouterTestSuite) TestRequestErrors() {
	w, body := s.do(http.MethodPost, "/v1/contracts", map[string]string{"notes": "no title"}, s.ownerToken)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", body.Error.Code)

	w, body = s.do(http.MethodGet, "/v1/contracts/not-a-uuid", nil, s.ownerToken)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("BAD_REQUEST", body.Error.Code)

	w, body = s.do(http.MethodGet, "/v1/contracts/"+uuid.NewString(), nil, s.ownerToken)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Contract not found", body.Error.Message)

	viewer := s.token(uuid.New(), models.UserRoleViewer)
	w, body = s.do(http.MethodPost, "/v1/contracts", map[string]string{"title": "x"}, viewer)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("FORBIDDEN", body.Error.Code)
}

func (s *RouterTestSuite) TestVendorPlanLimit() {
	for i := 0; i < 5; i++ {
		w, _ := s.do(http.MethodPost, "/v1/vendors", map[string]string{"name": fmt.Sprintf("Vendor %d", i)}, s.ownerToken)
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	w, body := s.do(http.MethodPost, "/v1/vendors", map[string]string{"name": "Vendor 6"}, s.ownerToken)
	s.Equal(http.StatusPaymentRequired, w.Code)
	s.Equal("USAGE_LIMIT_EXCEEDED", body.Error.Code)

	w, body = s.do(http.MethodGet, "/v1/billing/usage/vendors", nil, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code)
	var check services.UsageCheck
	s.decode(body, &check)
	s.False(check.Allowed)
	s.Equal(int64(5), check.Used)

	w, _ = s.do(http.MethodGet, "/v1/billing/usage/bogus", nil, s.ownerToken)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestDashboard() {
	for _, path := range []string{"/v1/dashboard", "/v1/dashboard/stats", "/v1/dashboard/renewals?days=60",
		"/v1/dashboard/risk-alerts", "/v1/dashboard/spend", "/v1/dashboard/activity"} {
		w, _ := s.do(http.MethodGet, path, nil, s.ownerToken)
		s.Equal(http.StatusOK, w.Code, path)
	}

	w, _ := s.do(http.MethodGet, "/v1/dashboard/renewals?days=abc", nil, s.ownerToken)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestTemplateGenerate() {
	w, body := s.do(http.MethodPost, "/v1/templates", map[string]interface{}{
		"name":    "NDA",
		"content": "This agreement is between {{party}} and Acme.",
		"variables": []map[string]interface{}{
			{"name": "party", "label": "Party", "type": "text", "required": true},
		},
	}, s.ownerToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var tmpl models.ContractTemplate
	s.decode(body, &tmpl)

	w, body = s.do(http.MethodPost, "/v1/templates/"+tmpl.ID.String()+"/generate",
		map[string]interface{}{"values": map[string]string{"party": "Globex"}}, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var generated services.GeneratedContract
	s.decode(body, &generated)
	s.Equal("This agreement is between Globex and Acme.", generated.Content)
	s.Empty(generated.MissingVariables)

	user := s.token(uuid.New(), models.UserRoleUser)
	w, _ = s.do(http.MethodDelete, "/v1/templates/"+tmpl.ID.String(), nil, user)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterTestSuite) TestNotifications() {
	for _, title := range []string{"Renewal due", "Payment failed"} {
		s.Require().NoError(s.repos.Notifications.Create(context.Background(), &models.Notification{
			EnterpriseID: s.enterprise,
			RecipientID:  s.owner,
			Type:         "renewal",
			Title:        title,
			Priority:     models.NotificationPriorityMedium,
		}))
	}

	w, body := s.do(http.MethodGet, "/v1/notifications/unread-count", nil, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"unread":2}`, string(body.Data))

	w, _ = s.do(http.MethodGet, "/v1/notifications", nil, s.ownerToken)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("2", w.Header().Get("X-Total-Count"))

	w, body = s.do(http.MethodPut, "/v1/notifications/read-all", nil, s.ownerToken)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"updated":2}`, string(body.Data))

	w, _ = s.do(http.MethodPut, "/v1/notifications/"+uuid.NewString()+"/read", nil, s.ownerToken)
	s.Equal(http.StatusNotFound, w.Code)
}

func signWebhook(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func (s *RouterTestSuite) webhook(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) TestStripeWebhook() {
	payload := []byte(`{"id":"evt_router_1","object":"event","type":"customer.created","livemode":false,"data":{"object":{}}}`)

	w := s.webhook(payload, "t=1,v1=deadbeef")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.webhook(payload, signWebhook(payload))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Contains(w.Body.String(), `"received":true`)
	s.Contains(w.Body.String(), `"status":"ignored"`)

	w = s.webhook(payload, signWebhook(payload))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"duplicate":true`)

	s.T().Setenv(config.EnvStripeWebhookSecret, "")
	w = s.webhook(payload, signWebhook(payload))
	s.Equal(http.StatusInternalServerError, w.Code)
}

func (s *RouterTestSuite) TestBillingEndpoints() {
	w, _ := s.do(http.MethodGet, "/v1/billing/plans", nil, s.ownerToken)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/billing/usage", nil, s.ownerToken)
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/v1/billing/invoices?limit=5", nil, s.ownerToken)
	s.Equal(http.StatusOK, w.Code)

	viewer := s.token(uuid.New(), models.UserRoleViewer)
	w, _ = s.do(http.MethodPost, "/v1/billing/checkout", map[string]string{"plan": "professional", "billing_period": "monthly"}, viewer)
	s.Equal(http.StatusForbidden, w.Code)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
