package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arena-sports/backend/config"
	"github.com/arena-sports/backend/internal/middleware"
	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/internal/pricing"
	"github.com/arena-sports/backend/internal/registrations"
)

type mockGateway struct {
	configured  bool
	intents     map[string]*Intent
	createCalls int
}

func (g *mockGateway) Configured() bool { return g.configured }

func (g *mockGateway) CreateIntent(_ context.Context, amountCents int64, currency, _ string, metadata map[string]string) (*IntentResult, error) {
	if amountCents == 0 {
		return &IntentResult{PaymentRequired: false}, nil
	}
	if !g.configured {
		return nil, ErrGatewayUnavailable
	}
	g.createCalls++
	id := fmt.Sprintf("pi_mock_%d", g.createCalls)
	g.intents[id] = &Intent{ID: id, AmountCents: amountCents, Currency: currency, Status: "requires_payment_method", Metadata: metadata}
	return &IntentResult{PaymentRequired: true, ClientSecret: id + "_secret", IntentID: id}, nil
}

func (g *mockGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	if !g.configured {
		return nil, ErrGatewayUnavailable
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (g *mockGateway) VerifyWebhook(_ []byte, sig string) (string, string, error) {
	if sig != "valid" {
		return "", "", errors.New("bad signature")
	}
	return "evt_1", "payment_intent.succeeded", nil
}

// mockWriter fails BulkRegister when bulkErr is set; RegisterOne fails for
// student IDs present in failOne.
type mockWriter struct {
	bulkErr  error
	failOne  map[uuid.UUID]error
	created  []models.Registration
	byIntent map[string][]models.Registration
	notified []models.Registration
}

func newMockWriter() *mockWriter {
	return &mockWriter{failOne: map[uuid.UUID]error{}, byIntent: map[string][]models.Registration{}}
}

func (w *mockWriter) BulkRegister(_ context.Context, actingUserID uuid.UUID, in registrations.BulkInput) (*registrations.BulkResult, error) {
	if w.bulkErr != nil {
		return nil, w.bulkErr
	}
	var regs []models.Registration
	for _, sid := range in.StudentIDs {
		regs = append(regs, w.record(actingUserID, sid, in))
	}
	return &registrations.BulkResult{Registrations: regs, SuccessCount: len(regs)}, nil
}

func (w *mockWriter) RegisterOne(_ context.Context, actingUserID, studentID uuid.UUID, in registrations.BulkInput) (*models.Registration, error) {
	if err, ok := w.failOne[studentID]; ok {
		return nil, err
	}
	reg := w.record(actingUserID, studentID, in)
	return &reg, nil
}

func (w *mockWriter) FindByPaymentIntent(_ context.Context, intentID string) ([]models.Registration, error) {
	return w.byIntent[intentID], nil
}

func (w *mockWriter) Notify(regs []models.Registration) {
	w.notified = append(w.notified, regs...)
}

func (w *mockWriter) record(actingUserID, studentID uuid.UUID, in registrations.BulkInput) models.Registration {
	reg := models.Registration{
		ID:              uuid.New(),
		StudentID:       studentID,
		SportID:         in.SportID,
		ParentID:        actingUserID,
		Status:          models.RegistrationStatusPending,
		PaymentStatus:   in.Payment.Status,
		PaymentIntentID: in.Payment.IntentID,
	}
	w.created = append(w.created, reg)
	w.byIntent[in.Payment.IntentID] = append(w.byIntent[in.Payment.IntentID], reg)
	return reg
}

type testEnv struct {
	router  *gin.Engine
	gateway *mockGateway
	writer  *mockWriter
	userID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gateway := &mockGateway{configured: true, intents: map[string]*Intent{}}
	writer := newMockWriter()
	resolver := pricing.NewResolver(config.DefaultPricing(), sportStoreStub{})
	handler := NewHandler(resolver, gateway, writer, nil, nil)

	userID := uuid.New()
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) })
	router.GET("/payment/countries", handler.Countries)
	router.POST("/payment/calculate", handler.Calculate)
	router.POST("/payment/create-payment-intent", handler.CreateIntent)
	router.POST("/payment/confirm-payment", handler.ConfirmPayment)
	router.POST("/payment/webhook", handler.Webhook)

	return &testEnv{router: router, gateway: gateway, writer: writer, userID: userID}
}

type sportStoreStub struct{}

func (sportStoreStub) GetSport(context.Context, uuid.UUID) (*models.Sport, error) {
	return nil, errors.New("no rows")
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func succeededIntent(id string, studentIDs []uuid.UUID, sportID uuid.UUID) *Intent {
	ids := make([]string, len(studentIDs))
	for i, sid := range studentIDs {
		ids[i] = sid.String()
	}
	meta := EncodeMetadata(RegistrationContext{
		StudentIDs: ids,
		SportID:    sportID.String(),
		Country:    "dubai",
	})
	return &Intent{ID: id, AmountCents: 16500, Currency: "aed", Status: "succeeded", Metadata: meta}
}

func TestCalculateRequiresCountryOrSport(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/payment/calculate", gin.H{"student_count": 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCalculateUnknownCountry(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/payment/calculate", gin.H{"country": "atlantis", "student_count": 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateIntentFreeCountrySkipsGateway(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/payment/create-payment-intent", gin.H{
		"country":     "malaysia",
		"student_ids": []string{uuid.NewString(), uuid.NewString(), uuid.NewString()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if env.gateway.createCalls != 0 {
		t.Errorf("gateway called %d times for a free batch", env.gateway.createCalls)
	}
	if !strings.Contains(rec.Body.String(), `"payment_required":false`) {
		t.Errorf("body = %s, want payment_required false", rec.Body.String())
	}
}

func TestCreateIntentTooManyStudents(t *testing.T) {
	env := newTestEnv(t)
	ids := make([]string, 51)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	rec := env.do(t, http.MethodPost, "/payment/create-payment-intent", gin.H{"country": "dubai", "student_ids": ids})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateIntentGatewayUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.configured = false
	rec := env.do(t, http.MethodPost, "/payment/create-payment-intent", gin.H{
		"country":     "dubai",
		"student_ids": []string{uuid.NewString()},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (config state, not a crash)", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want success false", rec.Body.String())
	}
}

func TestConfirmPaymentNotSucceeded(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.intents["pi_1"] = &Intent{ID: "pi_1", Status: "requires_payment_method", Metadata: map[string]string{}}

	rec := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "requires_payment_method") {
		t.Errorf("body should name the actual status: %s", rec.Body.String())
	}
	if len(env.writer.created) != 0 {
		t.Errorf("registrations created for unpaid intent")
	}
}

func TestConfirmPaymentBulkSuccess(t *testing.T) {
	env := newTestEnv(t)
	students := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sportID := uuid.New()
	env.gateway.intents["pi_ok"] = succeededIntent("pi_ok", students, sportID)

	rec := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_ok"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.writer.created) != 3 {
		t.Errorf("created = %d, want 3", len(env.writer.created))
	}
	if !strings.Contains(rec.Body.String(), `"success_count":3`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	env := newTestEnv(t)
	students := []uuid.UUID{uuid.New()}
	sportID := uuid.New()
	env.gateway.intents["pi_dup"] = succeededIntent("pi_dup", students, sportID)

	first := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_dup"})
	if first.Code != http.StatusOK {
		t.Fatalf("first call status = %d", first.Code)
	}
	second := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_dup"})
	if second.Code != http.StatusOK {
		t.Fatalf("second call status = %d", second.Code)
	}
	if !strings.Contains(second.Body.String(), `"already_processed":true`) {
		t.Errorf("second call body = %s, want already_processed", second.Body.String())
	}
	if len(env.writer.created) != 1 {
		t.Errorf("created = %d, want 1 (no duplicates)", len(env.writer.created))
	}
}

func TestConfirmPaymentFallbackPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	students := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sportID := uuid.New()
	env.gateway.intents["pi_fb"] = succeededIntent("pi_fb", students, sportID)
	env.writer.bulkErr = errors.New("deadlock detected")
	env.writer.failOne[students[1]] = &registrations.DuplicateRegistrationError{StudentIDs: []uuid.UUID{students[1]}}

	rec := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_fb"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on partial failure: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"success_count":2`) || !strings.Contains(body, `"failed_count":1`) {
		t.Errorf("body = %s, want 2 succeeded / 1 failed", body)
	}
	if !strings.Contains(body, students[1].String()) {
		t.Errorf("failed detail should name the student: %s", body)
	}
	if len(env.writer.notified) != 2 {
		t.Errorf("notified = %d, want 2 (fallback successes)", len(env.writer.notified))
	}
}

func TestConfirmPaymentMissingMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.intents["pi_meta"] = &Intent{ID: "pi_meta", Status: "succeeded", Metadata: map[string]string{"country": "dubai"}}

	rec := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_meta"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "retry registration") {
		t.Errorf("body = %s, want retry guidance", rec.Body.String())
	}
}

func TestConfirmPaymentIntentNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/payment/confirm-payment", gin.H{"payment_intent_id": "pi_missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWebhookSignature(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "valid")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"received":true`) {
		t.Errorf("valid signature: status = %d body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "bogus")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid signature: status = %d, want 400", rec.Code)
	}
}
