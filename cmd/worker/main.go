package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/email"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
	"github.com/jwalitptl/scheduler-api/pkg/messaging"
	redisBroker "github.com/jwalitptl/scheduler-api/pkg/messaging/redis"
)

// The worker process consumes waitlist.contact events and notifies the front
// desk, which holds the actual patient contact details. Separating it from
// the API keeps SMTP latency out of the request path.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(nil)

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	var mailer email.Service
	if cfg.SMTP.Host != "" {
		mailer = email.NewSMTPService(cfg.SMTP, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := broker.Subscribe(ctx, messaging.ChannelContactDue)
	if err != nil {
		log.Fatal(err, "failed to subscribe to contact channel")
	}

	go func() {
		for payload := range msgs {
			handleContactEvent(ctx, payload, mailer, cfg.SMTP.FrontDesk, log)
		}
	}()

	log.Info("notification worker started")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down notification worker")
}

func handleContactEvent(ctx context.Context, payload []byte, mailer email.Service, frontDesk string, log *logger.Logger) {
	var evt model.ContactDueEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		log.Error(err, "failed to decode waitlist.contact event")
		return
	}

	log.Info("contact due",
		"patient_id", evt.PatientID.String(),
		"attempts", evt.ContactAttempts,
		"expired", evt.Expired)

	if mailer == nil || frontDesk == "" {
		return
	}
	var err error
	if evt.Expired {
		err = mailer.SendCustom(ctx, frontDesk,
			"Waitlist entry expired",
			fmt.Sprintf("Patient %s could not be reached after %d attempts; the waitlist entry has been closed.",
				evt.PatientID, evt.ContactAttempts))
	} else {
		err = mailer.SendCustom(ctx, frontDesk,
			"Waitlist outreach due",
			fmt.Sprintf("Please contact patient %s about their waitlisted appointment (attempt %d).",
				evt.PatientID, evt.ContactAttempts))
	}
	if err != nil {
		log.Error(err, "failed to send contact notification", "patient_id", evt.PatientID.String())
	}
}
