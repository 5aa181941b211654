package status

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/service/slot"
	"github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	"github.com/jwalitptl/scheduler-api/pkg/httputil"
)

// Handler exposes the operational status surface: grid utilization, queue
// depth, and the active policy configuration.
type Handler struct {
	slots    *slot.Service
	waitlist *waitlist.Service
	risk     config.RiskConfig
	sched    config.SchedulingConfig
}

func NewHandler(slots *slot.Service, waitlist *waitlist.Service, risk config.RiskConfig, sched config.SchedulingConfig) *Handler {
	return &Handler{
		slots:    slots,
		waitlist: waitlist,
		risk:     risk,
		sched:    sched,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/stats/slots", h.SlotStats)
	r.GET("/stats/waitlist", h.WaitlistStats)
	r.GET("/status", h.SystemStatus)
}

func (h *Handler) SlotStats(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.slots.Stats())
}

func (h *Handler) WaitlistStats(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.waitlist.Stats())
}

func (h *Handler) SystemStatus(c *gin.Context) {
	httputil.RespondWithSuccess(c, gin.H{
		"slots":    h.slots.Stats(),
		"waitlist": h.waitlist.Stats(),
		"policy": gin.H{
			"risk_thresholds": gin.H{
				"low":    h.risk.LowThreshold,
				"medium": h.risk.MediumThreshold,
				"high":   h.risk.HighThreshold,
			},
			"buffers_minutes": gin.H{
				"low":    h.risk.Buffers.Low,
				"medium": h.risk.Buffers.Medium,
				"high":   h.risk.Buffers.High,
			},
			"working_hours": h.sched.WorkingHours,
			"slot_minutes":  h.sched.SlotMinutes,
		},
	})
}
