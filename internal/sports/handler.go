package sports

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/response"
)

// Handler handles sport endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a sports handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /sports (admin).
type CreateRequest struct {
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description"`
	PerStudentFeeCents int64  `json:"per_student_fee_cents"`
	FeeCurrency        string `json:"fee_currency" binding:"required"`
	IsTeamSport        bool   `json:"is_team_sport"`
	MinRosterSize      int    `json:"min_roster_size"`
}

// Create handles POST /sports.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.PerStudentFeeCents < 0 {
		response.BadRequest(c, "per_student_fee_cents must not be negative")
		return
	}
	minRoster := req.MinRosterSize
	if minRoster < 1 {
		minRoster = 1
	}
	sport := &models.Sport{
		ID:                 uuid.New(),
		Name:               req.Name,
		Description:        req.Description,
		PerStudentFeeCents: req.PerStudentFeeCents,
		FeeCurrency:        req.FeeCurrency,
		IsTeamSport:        req.IsTeamSport,
		MinRosterSize:      minRoster,
	}
	if err := h.repo.Create(c.Request.Context(), sport); err != nil {
		h.logger.Error("create sport failed", zap.Error(err))
		response.Internal(c, "failed to create sport")
		return
	}
	response.Created(c, gin.H{"sport": sport})
}

// List handles GET /sports.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list sports failed", zap.Error(err))
		response.Internal(c, "failed to list sports")
		return
	}
	response.OK(c, gin.H{"sports": list})
}

// Get handles GET /sports/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid sport id")
		return
	}
	sport, err := h.repo.GetSport(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get sport failed", zap.Error(err))
		response.Internal(c, "failed to fetch sport")
		return
	}
	if sport == nil {
		response.NotFound(c, "sport not found")
		return
	}
	response.OK(c, gin.H{"sport": sport})
}

// Update handles PUT /sports/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid sport id")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sport := &models.Sport{
		ID:                 id,
		Name:               req.Name,
		Description:        req.Description,
		PerStudentFeeCents: req.PerStudentFeeCents,
		FeeCurrency:        req.FeeCurrency,
		IsTeamSport:        req.IsTeamSport,
		MinRosterSize:      req.MinRosterSize,
	}
	if err := h.repo.Update(c.Request.Context(), sport); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "sport not found")
			return
		}
		h.logger.Error("update sport failed", zap.Error(err))
		response.Internal(c, "failed to update sport")
		return
	}
	response.OK(c, gin.H{"sport": sport})
}
