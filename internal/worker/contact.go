package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// ContactWorker polls the waitlist for entries whose outreach is due, records
// the attempt, and publishes a waitlist.contact event for the notification
// process. Entries that hit the attempt cap expire here.
type ContactWorker struct {
	waitlist *waitlist.Service
	broker   messaging.Broker
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewContactWorker(waitlist *waitlist.Service, broker messaging.Broker, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *ContactWorker {
	return &ContactWorker{
		waitlist: waitlist,
		broker:   broker,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

func (w *ContactWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *ContactWorker) run(ctx context.Context) {
	due := w.waitlist.DueForContact(time.Now())
	for _, e := range due {
		entry, expired, err := w.waitlist.RecordContactAttempt(ctx, e.PatientID)
		if err != nil {
			// Entry may have been filled or cancelled since the snapshot.
			w.logger.Debug("skipping contact attempt", "patient_id", e.PatientID.String(), "reason", err.Error())
			continue
		}

		evt := &model.ContactDueEvent{
			PatientID:       entry.PatientID,
			ContactAttempts: entry.ContactAttempts,
			Expired:         expired,
			PriorityScore:   entry.PriorityScore,
		}
		if w.broker != nil {
			if err := w.broker.Publish(ctx, messaging.ChannelContactDue, evt); err != nil {
				w.logger.Error(err, "failed to publish waitlist.contact event", "patient_id", entry.PatientID.String())
				continue
			}
			if w.metrics != nil {
				w.metrics.EventsPublished.WithLabelValues(messaging.ChannelContactDue).Inc()
			}
		}
		if expired {
			w.logger.Info("waitlist entry expired after final contact", "patient_id", entry.PatientID.String())
		}
	}
}
