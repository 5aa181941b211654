package riskmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/scheduler-api/pkg/errors"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

// Client calls the external no-show prediction service. Predictions are
// cached per patient so repeated scheduling attempts within the TTL do not
// hammer the model; the circuit breaker shields the API when the model is
// down.
//
// The model is a black box: the client validates only that the returned
// probability is a real number in [0,1] and never inspects features or
// model internals.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *gocache.Cache
	breaker *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
}

type predictRequest struct {
	PatientID string `json:"patient_id"`
}

type predictResponse struct {
	NoShowProbability float64 `json:"no_show_probability"`
	PredictedLabel    string  `json:"predicted_label"`
}

func NewClient(cfg config.ModelConfig, logger *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   gocache.New(cfg.CacheTTL, cfg.CacheSweep),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "risk-model",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		logger: logger,
	}
}

// Predict returns the cached prediction when fresh, otherwise calls the
// model service through the circuit breaker.
func (c *Client) Predict(ctx context.Context, patientID uuid.UUID) (*model.Prediction, error) {
	key := patientID.String()
	if cached, ok := c.cache.Get(key); ok {
		pred := cached.(model.Prediction)
		return &pred, nil
	}

	var pred *model.Prediction
	err := c.breaker.Execute(func() error {
		p, err := c.predict(ctx, patientID)
		if err != nil {
			return err
		}
		pred = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, *pred, gocache.DefaultExpiration)
	return pred, nil
}

func (c *Client) predict(ctx context.Context, patientID uuid.UUID) (*model.Prediction, error) {
	body, err := json.Marshal(predictRequest{PatientID: patientID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.Internal(
			fmt.Errorf("model service returned %d: %s", resp.StatusCode, string(b)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	if out.NoShowProbability < 0 || out.NoShowProbability > 1 {
		return nil, apperrors.InvalidInput(
			fmt.Sprintf("model returned probability outside [0,1]: %v", out.NoShowProbability), nil)
	}

	label := out.PredictedLabel
	if label == "" {
		label = model.PredictionLabelShow
		if out.NoShowProbability > 0.5 {
			label = model.PredictionLabelNoShow
		}
	}
	return &model.Prediction{
		NoShowProbability: out.NoShowProbability,
		PredictedLabel:    label,
	}, nil
}
