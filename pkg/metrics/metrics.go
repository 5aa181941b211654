package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling decision metrics
	DecisionsTotal     *prometheus.CounterVec
	AllocationAttempts *prometheus.CounterVec
	AllocationRaces    prometheus.Counter
	AllocationLatency  prometheus.Histogram

	// Waitlist metrics
	WaitlistDepth      prometheus.Gauge
	WaitlistPromotions prometheus.Counter
	WaitlistExpiries   prometheus.Counter
	ContactAttempts    prometheus.Counter

	// Slot grid metrics
	SlotsFree   prometheus.Gauge
	SlotsBooked prometheus.Gauge
	SlotsHeld   prometheus.Gauge

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec

	// Broker metrics
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Scheduling decisions by terminal outcome",
		}, []string{"outcome"}),
		AllocationAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocation_attempts_total",
			Help:      "Slot allocation attempts by result",
		}, []string{"result"}),
		AllocationRaces: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocation_races_total",
			Help:      "Allocations lost to a concurrent booking of the same slot",
		}),
		AllocationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "allocation_duration_seconds",
			Help:      "Time spent inside TryAllocate",
		}),
		WaitlistDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "waitlist_depth",
			Help:      "Current number of waiting entries",
		}),
		WaitlistPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "waitlist_promotions_total",
			Help:      "Waitlist entries promoted into freed slots",
		}),
		WaitlistExpiries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "waitlist_expiries_total",
			Help:      "Waitlist entries expired at the contact-attempt cap",
		}),
		ContactAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "contact_attempts_total",
			Help:      "Recorded waitlist contact attempts",
		}),
		SlotsFree: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slots_free",
			Help:      "Free slots across all doctor grids",
		}),
		SlotsBooked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slots_booked",
			Help:      "Booked slots across all doctor grids",
		}),
		SlotsHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slots_held",
			Help:      "Held buffer slots across all doctor grids",
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Database operations by name and status",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Database operation latency",
		}, []string{"operation"}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Broker events published by channel",
		}, []string{"channel"}),
		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_consumed_total",
			Help:      "Broker events consumed by channel",
		}, []string{"channel"}),
	}
}
