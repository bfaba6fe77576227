package registrations

import (
	"bytes"
	"encoding/csv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-sports/backend/pkg/response"
	"github.com/arena-sports/backend/pkg/storage"
)

// Handler serves the admin registration surface: listing and roster export.
// Registrations themselves are only ever created by the Writer through the
// payment reconciliation flow.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a registrations handler. s3 may be nil; export then 503s.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// List handles GET /registrations with optional sport_id/event_id/parent_id/status filters.
func (h *Handler) List(c *gin.Context) {
	var filter ListFilter
	if v := c.Query("sport_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid sport_id")
			return
		}
		filter.SportID = &id
	}
	if v := c.Query("event_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		filter.EventID = &id
	}
	if v := c.Query("parent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid parent_id")
			return
		}
		filter.ParentID = &id
	}
	filter.Status = c.Query("status")

	list, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// ExportRoster handles GET /sports/:id/roster/export. Builds a CSV
// roster for the sport, uploads it to S3 and returns a presigned download URL.
func (h *Handler) ExportRoster(c *gin.Context) {
	sportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid sport id")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "export storage not configured")
		return
	}

	roster, err := h.repo.Roster(c.Request.Context(), sportID)
	if err != nil {
		h.logger.Error("load roster failed", zap.Error(err), zap.String("sport_id", sportID.String()))
		response.Internal(c, "failed to load roster")
		return
	}

	var buf bytes.Buffer
	wr := csv.NewWriter(&buf)
	_ = wr.Write([]string{"registration_id", "student", "parent_email", "event", "status", "payment_status"})
	for _, row := range roster {
		_ = wr.Write([]string{row.RegistrationID.String(), row.StudentName, row.ParentEmail, row.EventName, row.Status, row.PaymentStatus})
	}
	wr.Flush()
	if err := wr.Error(); err != nil {
		response.Internal(c, "failed to build export")
		return
	}

	key := storage.ExportKey(sportID.String(), time.Now())
	if _, err := h.s3.Upload(c.Request.Context(), h.s3.ExportsBucket(), key, "text/csv", &buf, int64(buf.Len())); err != nil {
		h.logger.Error("export upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload export")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.ExportsBucket(), key, h.s3.PresignExpire())
	if err != nil {
		response.Internal(c, "failed to presign export")
		return
	}

	response.OK(c, gin.H{
		"download_url": url,
		"row_count":    len(roster),
		"expires_in":   h.s3.PresignExpire().String(),
	})
}
