package worker

import (
	"context"
	"encoding/json"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/service/waitlist"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	"github.com/jwalitptl/scheduler-api/pkg/metrics"
)

// SlotFillWorker turns slot.freed events into waitlist promotions. It is the
// only consumer of the channel in the API process, so each freed slot is
// offered at most once per event.
type SlotFillWorker struct {
	broker   messaging.Broker
	waitlist *waitlist.Service
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewSlotFillWorker(broker messaging.Broker, waitlist *waitlist.Service, logger *logger.Logger, metrics *metrics.Metrics) *SlotFillWorker {
	return &SlotFillWorker{
		broker:   broker,
		waitlist: waitlist,
		logger:   logger,
		metrics:  metrics,
	}
}

func (w *SlotFillWorker) Start(ctx context.Context) error {
	msgs, err := w.broker.Subscribe(ctx, messaging.ChannelSlotFreed)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-msgs:
				if !ok {
					return
				}
				w.handle(ctx, payload)
			}
		}
	}()
	return nil
}

func (w *SlotFillWorker) handle(ctx context.Context, payload []byte) {
	var evt model.SlotFreedEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		w.logger.Error(err, "failed to decode slot.freed event")
		return
	}
	if w.metrics != nil {
		w.metrics.EventsConsumed.WithLabelValues(messaging.ChannelSlotFreed).Inc()
	}

	appt, err := w.waitlist.OnSlotFreed(ctx, &evt)
	if err != nil {
		w.logger.Error(err, "failed to back-fill freed slot", "slot_id", evt.SlotID.String())
		return
	}
	if appt != nil {
		w.logger.Info("freed slot back-filled from waitlist",
			"slot_id", evt.SlotID.String(), "appointment_id", appt.ID.String())
	}
}
