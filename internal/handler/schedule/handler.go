package schedule

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/slot"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

type Handler struct {
	slots *slot.Service
}

func NewHandler(slots *slot.Service) *Handler {
	return &Handler{slots: slots}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/schedules", h.CreateSchedule)
	r.GET("/schedules/:doctorID/availability", h.GetAvailability)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req model.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(err.Error(), err))
		return
	}

	sched, err := h.slots.AddDoctorSchedule(c.Request.Context(), req.DoctorID, req.StartDate, req.EndDate, req.Hours, req.SlotMinutes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, sched)
}

// GetAvailability lists a doctor's free slots for one date, given as
// ?date=2026-09-01.
func (h *Handler) GetAvailability(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Param("doctorID"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid doctor ID", err))
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("date must be YYYY-MM-DD", err))
		return
	}

	free, err := h.slots.GetAvailability(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"doctor_id": doctorID,
		"date":      date.Format("2006-01-02"),
		"slots":     free,
	})
}
