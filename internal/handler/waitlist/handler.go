package waitlist

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

type Handler struct {
	waitlist *waitlist.Service
}

func NewHandler(waitlist *waitlist.Service) *Handler {
	return &Handler{waitlist: waitlist}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	wl := r.Group("/waitlist")
	{
		wl.GET("", h.ListEntries)
		wl.GET("/:patientID/position", h.GetPosition)
		wl.POST("/:patientID/contact", h.RecordContact)
		wl.DELETE("/:patientID", h.Cancel)
	}
}

func (h *Handler) ListEntries(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.waitlist.Entries())
}

func (h *Handler) GetPosition(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid patient ID", err))
		return
	}

	pos := h.waitlist.Position(patientID)
	if pos == 0 {
		httputil.RespondWithError(c, apperrors.NotFound("waitlist entry", nil))
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"patient_id": patientID, "position": pos})
}

// RecordContact registers a manual outreach, for front-desk staff calling a
// patient outside the automated cadence.
func (h *Handler) RecordContact(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid patient ID", err))
		return
	}

	entry, expired, err := h.waitlist.RecordContactAttempt(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"entry": entry, "expired": expired})
}

// Cancel is idempotent; removing an absent entry succeeds.
func (h *Handler) Cancel(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid patient ID", err))
		return
	}

	if err := h.waitlist.Cancel(c.Request.Context(), patientID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"patient_id": patientID, "cancelled": true})
}
