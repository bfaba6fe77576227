package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/response"
)

// Handler handles event endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /events (admin).
type CreateRequest struct {
	Name     string     `json:"name" binding:"required"`
	Location string     `json:"location"`
	Country  string     `json:"country"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		response.BadRequest(c, "ends_at must not be before starts_at")
		return
	}
	event := &models.Event{
		ID:       uuid.New(),
		Name:     req.Name,
		Location: req.Location,
		Country:  req.Country,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
	if err := h.repo.Create(c.Request.Context(), event); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, gin.H{"event": event})
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, gin.H{"events": list})
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err))
		response.Internal(c, "failed to fetch event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"event": event})
}
