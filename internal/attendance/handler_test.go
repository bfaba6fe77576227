package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arena-sports/backend/internal/models"
)

type fakeStore struct {
	tokens   map[string]*models.CheckInToken
	details  map[uuid.UUID]*CheckInDetail
	attended map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens:   map[string]*models.CheckInToken{},
		details:  map[uuid.UUID]*CheckInDetail{},
		attended: map[uuid.UUID]bool{},
	}
}

func (s *fakeStore) CreateToken(_ context.Context, t *models.CheckInToken) error {
	t.CreatedAt = time.Now()
	s.tokens[t.Token] = t
	return nil
}

func (s *fakeStore) GetToken(_ context.Context, tokenStr string) (*models.CheckInToken, error) {
	return s.tokens[tokenStr], nil
}

func (s *fakeStore) MarkTokenUsed(_ context.Context, tokenID uuid.UUID) (bool, error) {
	for _, t := range s.tokens {
		if t.ID == tokenID {
			if t.UsedAt != nil {
				return false, nil
			}
			now := time.Now()
			t.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) MarkAttended(_ context.Context, regID uuid.UUID) error {
	s.attended[regID] = true
	return nil
}

func (s *fakeStore) GetDetail(_ context.Context, regID uuid.UUID) (*CheckInDetail, error) {
	return s.details[regID], nil
}

func newRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	r := gin.New()
	r.POST("/attendance/registrations/:id/token", h.IssueToken)
	r.GET("/attendance/validate/:token", h.ValidateToken)
	r.POST("/attendance/check-in", h.CheckIn)
	return r
}

func seedRegistration(store *fakeStore) uuid.UUID {
	regID := uuid.New()
	store.details[regID] = &CheckInDetail{
		RegistrationID: regID,
		StudentName:    "Aisha",
		SportName:      "Swimming",
		Status:         models.RegistrationStatusApproved,
		PaymentStatus:  models.PaymentStatusPaid,
	}
	return regID
}

func seedToken(store *fakeStore, regID uuid.UUID, expiresAt time.Time) *models.CheckInToken {
	tok := &models.CheckInToken{
		ID:             uuid.New(),
		RegistrationID: regID,
		Token:          "tok-" + uuid.NewString(),
		ExpiresAt:      expiresAt,
	}
	store.tokens[tok.Token] = tok
	return tok
}

func TestIssueToken(t *testing.T) {
	store := newFakeStore()
	regID := seedRegistration(store)
	router := newRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/attendance/registrations/"+regID.String()+"/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.tokens) != 1 {
		t.Fatalf("tokens = %d, want 1", len(store.tokens))
	}
	for tokStr := range store.tokens {
		if len(tokStr) != 43 {
			t.Errorf("token length = %d, want 43", len(tokStr))
		}
	}
}

func TestIssueTokenRejectedRegistration(t *testing.T) {
	store := newFakeStore()
	regID := seedRegistration(store)
	store.details[regID].Status = models.RegistrationStatusRejected
	router := newRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/attendance/registrations/"+regID.String()+"/token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestValidateTokenDoesNotConsume(t *testing.T) {
	store := newFakeStore()
	regID := seedRegistration(store)
	tok := seedToken(store, regID, time.Now().Add(time.Hour))
	router := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/attendance/validate/"+tok.Token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Aisha") {
		t.Errorf("body = %s, want student name", rec.Body.String())
	}
	if tok.UsedAt != nil {
		t.Error("validate consumed the token")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	store := newFakeStore()
	regID := seedRegistration(store)
	tok := seedToken(store, regID, time.Now().Add(-time.Minute))
	router := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/attendance/validate/"+tok.Token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "expired") {
		t.Errorf("status = %d body = %s, want expired error", rec.Code, rec.Body.String())
	}
}

func TestCheckInMarksAttendedAndConsumes(t *testing.T) {
	store := newFakeStore()
	regID := seedRegistration(store)
	tok := seedToken(store, regID, time.Now().Add(time.Hour))
	router := newRouter(store)

	body, _ := json.Marshal(gin.H{"token": tok.Token})
	req := httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !store.attended[regID] {
		t.Error("registration not marked attended")
	}
	if tok.UsedAt == nil {
		t.Error("token not consumed")
	}

	// second scan of the same pass
	req = httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "already used") {
		t.Errorf("replay: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestCheckInUnknownToken(t *testing.T) {
	store := newFakeStore()
	router := newRouter(store)

	body, _ := json.Marshal(gin.H{"token": "nope"})
	req := httptest.NewRequest(http.MethodPost, "/attendance/check-in", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
