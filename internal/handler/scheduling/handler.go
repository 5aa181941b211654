package scheduling

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/scheduler"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

// Predictor resolves a no-show probability when the caller does not supply
// one.
type Predictor interface {
	Predict(ctx context.Context, patientID uuid.UUID) (*model.Prediction, error)
}

// AppointmentReleaser is the slice of the slot optimizer the cancellation
// endpoints use.
type AppointmentReleaser interface {
	Release(ctx context.Context, appointmentID uuid.UUID) (*model.SlotFreedEvent, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error)
}

type Handler struct {
	scheduler *scheduler.Service
	slots     AppointmentReleaser
	predictor Predictor
}

func NewHandler(scheduler *scheduler.Service, slots AppointmentReleaser, predictor Predictor) *Handler {
	return &Handler{
		scheduler: scheduler,
		slots:     slots,
		predictor: predictor,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/scheduling/requests", h.CreateRequest)
	r.GET("/appointments/:id", h.GetAppointment)
	r.DELETE("/appointments/:id", h.CancelAppointment)
}

// CreateRequest runs one scheduling request to a terminal decision. A missing
// no-show probability is resolved from the prediction service before the
// decision engine runs.
func (h *Handler) CreateRequest(c *gin.Context) {
	var req model.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput(bindingMessage(err), err))
		return
	}

	if req.NoShowProbability == nil {
		if h.predictor == nil {
			httputil.RespondWithError(c, apperrors.InvalidInput("no_show_probability is required", nil))
			return
		}
		pred, err := h.predictor.Predict(c.Request.Context(), req.PatientID)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Internal(err))
			return
		}
		req.NoShowProbability = &pred.NoShowProbability
	}

	decision, err := h.scheduler.Schedule(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if decision.Outcome == model.OutcomeConfirmed {
		httputil.RespondWithCreated(c, decision)
		return
	}
	httputil.RespondWithSuccess(c, decision)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid appointment ID", err))
		return
	}

	appt, err := h.slots.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

// CancelAppointment releases the slot and its held buffer; the freed slot is
// offered to the waitlist asynchronously.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInput("invalid appointment ID", err))
		return
	}

	evt, err := h.slots.Release(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, evt)
}

// bindingMessage flattens validator errors into one caller-facing line.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min", "max":
		return fe.Field() + " is out of range"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
