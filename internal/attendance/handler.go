package attendance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/response"
)

// TokenTTL is how long a check-in pass stays valid after issue.
const TokenTTL = 30 * 24 * time.Hour

// Store is the persistence surface the handler needs.
type Store interface {
	CreateToken(ctx context.Context, t *models.CheckInToken) error
	GetToken(ctx context.Context, tokenStr string) (*models.CheckInToken, error)
	MarkTokenUsed(ctx context.Context, tokenID uuid.UUID) (bool, error)
	MarkAttended(ctx context.Context, registrationID uuid.UUID) error
	GetDetail(ctx context.Context, registrationID uuid.UUID) (*CheckInDetail, error)
}

// Handler handles attendance endpoints: issuing check-in passes and scanning
// them at the venue.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an attendance handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// IssueToken handles POST /attendance/registrations/:id/token. Creates a
// single-use check-in pass for a registration; its string form becomes the
// QR payload.
func (h *Handler) IssueToken(c *gin.Context) {
	regID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	detail, err := h.store.GetDetail(c.Request.Context(), regID)
	if err != nil {
		h.logger.Error("load registration failed", zap.Error(err))
		response.Internal(c, "failed to issue check-in pass")
		return
	}
	if detail == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if detail.Status == models.RegistrationStatusRejected {
		response.BadRequest(c, "registration is rejected")
		return
	}

	tokenStr, err := generateToken()
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to issue check-in pass")
		return
	}
	tok := &models.CheckInToken{
		ID:             uuid.New(),
		RegistrationID: regID,
		Token:          tokenStr,
		ExpiresAt:      time.Now().Add(TokenTTL),
	}
	if err := h.store.CreateToken(c.Request.Context(), tok); err != nil {
		h.logger.Error("create token failed", zap.Error(err), zap.String("registration_id", regID.String()))
		response.Internal(c, "failed to issue check-in pass")
		return
	}
	response.Created(c, gin.H{
		"registration_id": regID,
		"token":           tokenStr,
		"expires_at":      tok.ExpiresAt,
	})
}

// ValidateToken handles GET /attendance/validate/:token. Read-only preview of
// what a scan would check in; does not consume the token.
func (h *Handler) ValidateToken(c *gin.Context) {
	tok, ok := h.lookupToken(c, c.Param("token"))
	if !ok {
		return
	}
	detail, err := h.store.GetDetail(c.Request.Context(), tok.RegistrationID)
	if err != nil || detail == nil {
		response.NotFound(c, "registration not found")
		return
	}
	response.OK(c, gin.H{"valid": true, "registration": detail})
}

// CheckInRequest is the body for POST /attendance/check-in.
type CheckInRequest struct {
	Token string `json:"token" binding:"required"`
}

// CheckIn handles POST /attendance/check-in. Consumes the token and marks the
// registration attended.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "token required")
		return
	}
	tok, ok := h.lookupToken(c, req.Token)
	if !ok {
		return
	}

	used, err := h.store.MarkTokenUsed(c.Request.Context(), tok.ID)
	if err != nil {
		h.logger.Error("mark token used failed", zap.Error(err), zap.String("token_id", tok.ID.String()))
		response.Internal(c, "check-in failed")
		return
	}
	if !used {
		// lost the race with a concurrent scan of the same pass
		response.BadRequest(c, "token already used")
		return
	}
	if err := h.store.MarkAttended(c.Request.Context(), tok.RegistrationID); err != nil {
		h.logger.Error("mark attended failed", zap.Error(err), zap.String("registration_id", tok.RegistrationID.String()))
		response.Internal(c, "check-in failed")
		return
	}

	detail, err := h.store.GetDetail(c.Request.Context(), tok.RegistrationID)
	if err != nil {
		h.logger.Error("load check-in detail failed", zap.Error(err))
	}
	response.OK(c, gin.H{"checked_in": true, "registration": detail})
}

func (h *Handler) lookupToken(c *gin.Context, tokenStr string) (*models.CheckInToken, bool) {
	if tokenStr == "" {
		response.BadRequest(c, "token required")
		return nil, false
	}
	tok, err := h.store.GetToken(c.Request.Context(), tokenStr)
	if err != nil {
		h.logger.Error("token lookup failed", zap.Error(err))
		response.Internal(c, "failed to validate token")
		return nil, false
	}
	if tok == nil {
		response.NotFound(c, "invalid token")
		return nil, false
	}
	if tok.UsedAt != nil {
		response.BadRequest(c, "token already used")
		return nil, false
	}
	if time.Now().After(tok.ExpiresAt) {
		response.BadRequest(c, "token expired")
		return nil, false
	}
	return tok, true
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b)[:43], nil
}
