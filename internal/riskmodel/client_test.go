package riskmodel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/scheduler-api/internal/config"
	"github.com/jwalitptl/scheduler-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newTestClient(baseURL string) *Client {
	return NewClient(config.ModelConfig{
		BaseURL:    baseURL,
		Timeout:    time.Second,
		CacheTTL:   time.Minute,
		CacheSweep: time.Minute,
	}, testLogger())
}

func TestPredict_ReturnsModelOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"no_show_probability": 0.73,
			"predicted_label":     "No-show",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pred, err := c.Predict(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0.73, pred.NoShowProbability)
	assert.Equal(t, "No-show", pred.PredictedLabel)
}

func TestPredict_CachesPerPatient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{"no_show_probability": 0.4})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	patientID := uuid.New()

	_, err := c.Predict(context.Background(), patientID)
	require.NoError(t, err)
	_, err = c.Predict(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = c.Predict(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPredict_RejectsOutOfRangeProbability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"no_show_probability": 1.7})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Predict(context.Background(), uuid.New())
	require.Error(t, err)
}

func TestPredict_DerivesLabelWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"no_show_probability": 0.8})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pred, err := c.Predict(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "No-show", pred.PredictedLabel)
}

func TestPredict_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Predict(context.Background(), uuid.New())
	require.Error(t, err)
}
