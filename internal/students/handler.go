package students

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/internal/middleware"
	"github.com/arena-sports/backend/internal/models"
	"github.com/arena-sports/backend/pkg/response"
)

// Handler handles student endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a students handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /students.
type CreateRequest struct {
	FullName    string     `json:"full_name" binding:"required"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	SchoolName  string     `json:"school_name"`
	Country     string     `json:"country"`
}

// Create handles POST /students. The creating account claims the student in
// the same request, so a freshly created student is immediately registrable.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	student := &models.Student{
		ID:          uuid.New(),
		FullName:    req.FullName,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		SchoolName:  req.SchoolName,
		Country:     req.Country,
	}
	if err := h.repo.Create(c.Request.Context(), student); err != nil {
		h.logger.Error("create student failed", zap.Error(err))
		response.Internal(c, "failed to create student")
		return
	}
	if err := h.repo.Claim(c.Request.Context(), userID, student.ID); err != nil {
		h.logger.Error("claim on create failed", zap.Error(err), zap.String("student_id", student.ID.String()))
		response.Internal(c, "failed to create student")
		return
	}
	response.Created(c, gin.H{"student": student})
}

// List handles GET /students. Admins see everyone; parents and schools see
// only students they claimed.
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var (
		list []models.Student
		err  error
	)
	if role, _ := c.Get(middleware.ContextUserRole); role == string(models.RoleAdmin) {
		list, err = h.repo.ListAll(c.Request.Context())
	} else {
		list, err = h.repo.ListByParent(c.Request.Context(), userID)
	}
	if err != nil {
		h.logger.Error("list students failed", zap.Error(err))
		response.Internal(c, "failed to list students")
		return
	}
	response.OK(c, gin.H{"students": list})
}

// Get handles GET /students/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	student, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get student failed", zap.Error(err))
		response.Internal(c, "failed to fetch student")
		return
	}
	if student == nil {
		response.NotFound(c, "student not found")
		return
	}
	response.OK(c, gin.H{"student": student})
}

// Claim handles POST /students/:id/claim. A student already claimed by a
// different account cannot be claimed again; repeat claims by the same
// account are a no-op.
func (h *Handler) Claim(c *gin.Context) {
	studentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}

	student, err := h.repo.GetByID(c.Request.Context(), studentID)
	if err != nil {
		h.logger.Error("get student failed", zap.Error(err))
		response.Internal(c, "failed to claim student")
		return
	}
	if student == nil {
		response.NotFound(c, "student not found")
		return
	}

	claimant, err := h.repo.Claimant(c.Request.Context(), studentID)
	if err != nil {
		h.logger.Error("claimant lookup failed", zap.Error(err))
		response.Internal(c, "failed to claim student")
		return
	}
	if claimant != uuid.Nil && claimant != userID {
		response.Conflict(c, "student is already claimed by another account")
		return
	}

	if err := h.repo.Claim(c.Request.Context(), userID, studentID); err != nil {
		h.logger.Error("claim failed", zap.Error(err), zap.String("student_id", studentID.String()))
		response.Internal(c, "failed to claim student")
		return
	}
	response.OK(c, gin.H{"claimed": true, "student_id": studentID})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return uuid.UUID{}, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
