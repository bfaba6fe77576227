package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/middleware"
	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/internal/pricing"
	"github.com/arena-sports/backend/internal/registrations"
	"github.com/arena-sports/backend/pkg/response"
)

// RegistrationService is the slice of the registration writer the payment
// endpoints drive.
type RegistrationService interface {
	BulkRegister(ctx context.Context, actingUserID uuid.UUID, in registrations.BulkInput) (*registrations.BulkResult, error)
	RegisterOne(ctx context.Context, actingUserID, studentID uuid.UUID, in registrations.BulkInput) (*models.Registration, error)
	FindByPaymentIntent(ctx context.Context, intentID string) ([]models.Registration, error)
	Notify(regs []models.Registration)
}

// Handler handles payment HTTP endpoints, including the reconciliation
// endpoint that turns a succeeded payment intent into registrations.
type Handler struct {
	resolver *pricing.Resolver
	gateway  Gateway
	writer   RegistrationService
	events   *WebhookRepository
	logger   *zap.Logger
}

// NewHandler creates a payments handler. events may be nil; webhook deliveries
// are then verified but not persisted.
func NewHandler(resolver *pricing.Resolver, gateway Gateway, writer RegistrationService, events *WebhookRepository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{resolver: resolver, gateway: gateway, writer: writer, events: events, logger: logger}
}

// Countries handles GET /payment/countries.
func (h *Handler) Countries(c *gin.Context) {
	response.OK(c, gin.H{"countries": h.resolver.Countries()})
}

// CalculateRequest is the body for POST /payment/calculate.
type CalculateRequest struct {
	Country              string `json:"country"`
	SportID              string `json:"sport_id"`
	IncludeCertification bool   `json:"include_certification"`
	StudentCount         int    `json:"student_count" binding:"required"`
}

// Calculate handles POST /payment/calculate.
func (h *Handler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	quote, ok := h.quote(c, req.Country, req.SportID, req.IncludeCertification, req.StudentCount)
	if !ok {
		return
	}
	response.OK(c, gin.H{"calculation": quote})
}

// SportPricing handles GET /payment/sport/:sportId/pricing.
func (h *Handler) SportPricing(c *gin.Context) {
	sportID, err := uuid.Parse(c.Param("sportId"))
	if err != nil {
		response.BadRequest(c, "invalid sport id")
		return
	}
	quote, err := h.resolver.CalculateBySport(c.Request.Context(), sportID, false, 1)
	if err != nil {
		response.NotFound(c, "sport not found")
		return
	}
	response.OK(c, gin.H{"pricing": gin.H{
		"sport_id":              sportID,
		"currency":              quote.Currency,
		"per_student_fee_cents": quote.PerStudentFeeCents,
	}})
}

// CreateIntentRequest is the body for POST /payment/create-payment-intent.
type CreateIntentRequest struct {
	Country              string   `json:"country"`
	SportID              string   `json:"sport_id"`
	EventID              string   `json:"event_id"`
	IncludeCertification bool     `json:"include_certification"`
	StudentIDs           []string `json:"student_ids" binding:"required"`
}

// CreateIntent handles POST /payment/create-payment-intent (auth required).
func (h *Handler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.StudentIDs) < pricing.MinStudentsPerBatch || len(req.StudentIDs) > pricing.MaxStudentsPerBatch {
		response.BadRequest(c, pricing.ErrStudentCount.Error())
		return
	}

	quote, ok := h.quote(c, req.Country, req.SportID, req.IncludeCertification, len(req.StudentIDs))
	if !ok {
		return
	}

	meta := EncodeMetadata(RegistrationContext{
		StudentIDs:           req.StudentIDs,
		SportID:              req.SportID,
		EventID:              req.EventID,
		Country:              req.Country,
		IncludeCertification: req.IncludeCertification,
	})
	result, err := h.gateway.CreateIntent(c.Request.Context(), quote.TotalCents, quote.Currency, "sports registration", meta)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			// configuration state, not a crash: 200 with a human message
			c.JSON(http.StatusOK, gin.H{
				"success":          false,
				"payment_required": true,
				"error":            "online payment is temporarily unavailable, please try again later",
			})
			return
		}
		h.logger.Error("create intent failed", zap.Error(err))
		response.Internal(c, "failed to create payment intent")
		return
	}

	response.OK(c, gin.H{
		"payment_required":  result.PaymentRequired,
		"client_secret":     result.ClientSecret,
		"payment_intent_id": result.IntentID,
		"calculation":       quote,
	})
}

// GetIntent handles GET /payment/payment-intent/:id (auth required). Returns
// a sanitized view of the provider intent.
func (h *Handler) GetIntent(c *gin.Context) {
	intent, err := h.gateway.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrGatewayUnavailable):
			c.JSON(http.StatusOK, gin.H{
				"success":          false,
				"payment_required": true,
				"error":            "online payment is temporarily unavailable, please try again later",
			})
		case errors.Is(err, ErrIntentNotFound):
			response.NotFound(c, "payment intent not found")
		default:
			h.logger.Error("get intent failed", zap.Error(err))
			response.Internal(c, "failed to fetch payment intent")
		}
		return
	}
	response.OK(c, intent)
}

// ConfirmRequest is the body for POST /payment/confirm-payment.
type ConfirmRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// FailedRegistration is one per-student failure in a partially successful
// reconciliation.
type FailedRegistration struct {
	StudentID string `json:"student_id"`
	Error     string `json:"error"`
}

// ConfirmPayment handles POST /payment/confirm-payment (auth required). It
// re-fetches the authoritative intent state from the provider, decodes the
// registration context out of its metadata, and drives the registration
// writer: strict bulk first, per-student fallback when bulk fails. Once the
// provider reports the payment succeeded this endpoint never returns an HTTP
// error for registration-side problems alone.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "payment_intent_id required")
		return
	}
	actingUserID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	ctx := c.Request.Context()

	// A replayed confirm for an already-reconciled intent is a no-op.
	existing, err := h.writer.FindByPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		h.logger.Error("idempotency lookup failed", zap.Error(err))
		response.Internal(c, "failed to confirm payment")
		return
	}
	if len(existing) > 0 {
		response.OK(c, gin.H{
			"already_processed": true,
			"registrations": registrations.BulkResult{
				Registrations: existing,
				SuccessCount:  len(existing),
			},
		})
		return
	}

	intent, err := h.gateway.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrGatewayUnavailable):
			c.JSON(http.StatusOK, gin.H{
				"success":          false,
				"payment_required": true,
				"error":            "online payment is temporarily unavailable, please try again later",
			})
		case errors.Is(err, ErrIntentNotFound):
			response.NotFound(c, "payment intent not found")
		default:
			h.logger.Error("fetch intent failed", zap.Error(err), zap.String("intent_id", req.PaymentIntentID))
			response.Internal(c, "failed to fetch payment intent")
		}
		return
	}
	if intent.Status != IntentStatusSucceeded {
		response.BadRequest(c, "payment not completed, status: "+intent.Status)
		return
	}

	rc, err := DecodeMetadata(intent.Metadata)
	if err != nil || rc.SportID == "" || len(rc.StudentIDs) == 0 {
		response.BadRequest(c, "payment succeeded but registration details are missing, please retry registration")
		return
	}
	in, err := buildBulkInput(rc, intent)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.writer.BulkRegister(ctx, actingUserID, *in)
	if err == nil {
		response.OK(c, gin.H{
			"payment": gin.H{
				"intent_id":    intent.ID,
				"amount_cents": intent.AmountCents,
				"currency":     intent.Currency,
				"status":       intent.Status,
			},
			"registrations": result,
		})
		return
	}

	// The payment is already collected and cannot be undone here, so a bulk
	// failure degrades to best-effort per-student registration.
	h.logger.Warn("bulk registration failed, falling back to per-student",
		zap.Error(err),
		zap.String("intent_id", intent.ID),
		zap.Int("students", len(in.StudentIDs)),
	)
	registered, failed := h.fallback(ctx, actingUserID, *in)
	h.writer.Notify(registered)

	response.OK(c, gin.H{
		"payment": gin.H{
			"intent_id":    intent.ID,
			"amount_cents": intent.AmountCents,
			"currency":     intent.Currency,
			"status":       intent.Status,
		},
		"registrations": gin.H{
			"success_count": len(registered),
			"failed_count":  len(failed),
			"registrations": registered,
			"failed":        failed,
		},
	})
}

// Webhook handles POST /payment/webhook. The raw body is verified against the
// provider signature; recognized events are persisted for audit.
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}
	eventID, eventType, err := h.gateway.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		response.BadRequest(c, "invalid webhook signature")
		return
	}
	if h.events != nil {
		if err := h.events.Insert(c.Request.Context(), eventID, eventType, payload); err != nil {
			h.logger.Error("persist webhook event failed", zap.Error(err), zap.String("event_id", eventID))
		}
	}
	h.logger.Info("webhook received", zap.String("event_id", eventID), zap.String("type", eventType))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) fallback(ctx context.Context, actingUserID uuid.UUID, in registrations.BulkInput) ([]models.Registration, []FailedRegistration) {
	var registered []models.Registration
	var failed []FailedRegistration
	for _, studentID := range in.StudentIDs {
		reg, err := h.writer.RegisterOne(ctx, actingUserID, studentID, in)
		if err != nil {
			failed = append(failed, FailedRegistration{StudentID: studentID.String(), Error: err.Error()})
			continue
		}
		registered = append(registered, *reg)
	}
	return registered, failed
}

func (h *Handler) quote(c *gin.Context, country, sportID string, includeCertification bool, studentCount int) (pricing.Quote, bool) {
	var quote pricing.Quote
	var err error
	switch {
	case sportID != "":
		var id uuid.UUID
		id, err = uuid.Parse(sportID)
		if err != nil {
			response.BadRequest(c, "invalid sport id")
			return quote, false
		}
		quote, err = h.resolver.CalculateBySport(c.Request.Context(), id, includeCertification, studentCount)
	case country != "":
		quote, err = h.resolver.CalculateByCountry(country, includeCertification, studentCount)
	default:
		response.BadRequest(c, "either country or sport_id is required")
		return quote, false
	}
	if err != nil {
		if errors.Is(err, pricing.ErrSportNotFound) {
			response.NotFound(c, err.Error())
		} else {
			response.BadRequest(c, err.Error())
		}
		return quote, false
	}
	return quote, true
}

func buildBulkInput(rc RegistrationContext, intent *Intent) (*registrations.BulkInput, error) {
	sportID, err := uuid.Parse(rc.SportID)
	if err != nil {
		return nil, errors.New("metadata has an invalid sport id, please retry registration")
	}
	studentIDs := make([]uuid.UUID, 0, len(rc.StudentIDs))
	for _, raw := range rc.StudentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("metadata has an invalid student id, please retry registration")
		}
		studentIDs = append(studentIDs, id)
	}
	var eventID *uuid.UUID
	if rc.EventID != "" {
		id, err := uuid.Parse(rc.EventID)
		if err != nil {
			return nil, errors.New("metadata has an invalid event id, please retry registration")
		}
		eventID = &id
	}
	perStudent := intent.AmountCents / int64(len(studentIDs))
	return &registrations.BulkInput{
		StudentIDs: studentIDs,
		SportID:    sportID,
		EventID:    eventID,
		Payment: registrations.PaymentContext{
			IntentID:    intent.ID,
			AmountCents: perStudent,
			Currency:    intent.Currency,
			Method:      models.PaymentMethodCard,
			Status:      models.PaymentStatusPaid,
		},
	}, nil
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.UUID{}, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
