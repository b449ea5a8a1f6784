package models

// RiskBucket is a coarse human-readable risk category
type RiskBucket string

const (
	BucketLow    RiskBucket = "Low Risk"
	BucketMedium RiskBucket = "Medium Risk"
	BucketHigh   RiskBucket = "High Risk"
)

// BucketForScore maps a 0-100 risk score to its bucket
func BucketForScore(score float64) RiskBucket {
	switch {
	case score < 30:
		return BucketLow
	case score < 60:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// ScoredRow is a feature row with the model's output appended
type ScoredRow struct {
	FeatureRow
	RiskProbability float64    `json:"risk_probability"`
	RiskScore       float64    `json:"risk_score"`
	RiskBucket      RiskBucket `json:"risk_bucket"`
	ModelVersion    string     `json:"model_version"`
}

// PredictionResponse is returned by the predict endpoint.
// ExpectedLoss is part of the public contract but is never populated: no
// exposure amount exists to derive it from.
type PredictionResponse struct {
	RiskScore    float64    `json:"risk_score"`
	RiskBucket   RiskBucket `json:"risk_bucket"`
	ExpectedLoss *float64   `json:"expected_loss,omitempty"`
	ModelVersion string     `json:"model_version"`
}

// SimulationRequest holds what-if parameters in percent
type SimulationRequest struct {
	CollectionImprovement float64 `json:"collection_improvement"`
	ExpenseReduction      float64 `json:"expense_reduction"`
}

// SimulationResult compares the baseline and simulated scores of an SME's latest month
type SimulationResult struct {
	SMEID           string            `json:"sme_id"`
	Month           string            `json:"month"`
	Request         SimulationRequest `json:"request"`
	BaselineScore   float64           `json:"baseline_score"`
	BaselineBucket  RiskBucket        `json:"baseline_bucket"`
	SimulatedScore  float64           `json:"simulated_score"`
	SimulatedBucket RiskBucket        `json:"simulated_bucket"`
	ModelVersion    string            `json:"model_version"`
}
