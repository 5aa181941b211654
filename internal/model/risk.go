package model

import "github.com/google/uuid"

type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// RiskAssessment is produced once per scheduling request and never mutated.
// The no-show probability comes from the external prediction model; the core
// only validates its numeric range.
type RiskAssessment struct {
	PatientID         uuid.UUID `json:"patient_id"`
	NoShowProbability float64   `json:"no_show_probability"`
	RiskLevel         RiskLevel `json:"risk_level"`
	BufferMinutes     int       `json:"buffer_minutes"`
	PriorityScore     float64   `json:"priority_score"`
	Urgency           int       `json:"urgency"`
}

// Prediction is the fixed-shape payload returned by the external
// risk-prediction model.
type Prediction struct {
	NoShowProbability float64 `json:"no_show_probability"`
	PredictedLabel    string  `json:"predicted_label"`
}

const (
	PredictionLabelShow   = "Show"
	PredictionLabelNoShow = "No-show"
)
