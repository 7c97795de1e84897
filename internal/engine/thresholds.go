package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ThresholdConfig is the engine's only tunable surface: the two decision
// thresholds plus the confidence factor weights. Configs are replaced as a
// whole, never mutated in place, so a reader can never observe a torn update.
type ThresholdConfig struct {
	AutoApprove float64           `json:"auto_approve" toml:"auto_approve"`
	AutoReject  float64           `json:"auto_reject" toml:"auto_reject"`
	Weights     ConfidenceWeights `json:"weights" toml:"weights"`
	Version     int               `json:"version" toml:"-"`
	UpdatedAt   time.Time         `json:"updated_at" toml:"-"`
}

// ConfidenceWeights scale the five confidence factors. They need not sum to
// one; the calculator renormalizes by the total.
type ConfidenceWeights struct {
	ClaudeConfidence     float64 `json:"claude_confidence" toml:"claude_confidence"`
	EmotionalCoherence   float64 `json:"emotional_coherence" toml:"emotional_coherence"`
	RelationshipAccuracy float64 `json:"relationship_accuracy" toml:"relationship_accuracy"`
	TemporalConsistency  float64 `json:"temporal_consistency" toml:"temporal_consistency"`
	ContentQuality       float64 `json:"content_quality" toml:"content_quality"`
}

// DefaultThresholds returns the starting configuration. The weights are
// tuning defaults, not calibrated ground truth.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		AutoApprove: 0.85,
		AutoReject:  0.40,
		Weights: ConfidenceWeights{
			ClaudeConfidence:     0.30,
			EmotionalCoherence:   0.25,
			RelationshipAccuracy: 0.20,
			TemporalConsistency:  0.15,
			ContentQuality:       0.10,
		},
		Version:   1,
		UpdatedAt: time.Now(),
	}
}

// Total returns the sum of all five weights.
func (w ConfidenceWeights) Total() float64 {
	return w.ClaudeConfidence + w.EmotionalCoherence + w.RelationshipAccuracy +
		w.TemporalConsistency + w.ContentQuality
}

// Validate checks the structural invariants a config must hold.
func (c ThresholdConfig) Validate() error {
	if c.AutoApprove <= 0 || c.AutoApprove > 1 {
		return fmt.Errorf("auto_approve %.2f out of (0,1]", c.AutoApprove)
	}
	if c.AutoReject < 0 || c.AutoReject >= 1 {
		return fmt.Errorf("auto_reject %.2f out of [0,1)", c.AutoReject)
	}
	if c.AutoReject >= c.AutoApprove {
		return fmt.Errorf("auto_reject %.2f must be below auto_approve %.2f", c.AutoReject, c.AutoApprove)
	}
	if c.Weights.Total() <= 0 {
		return fmt.Errorf("weights sum to %.2f, need > 0", c.Weights.Total())
	}
	return nil
}

// ThresholdManager owns the active config. All reads go through a single
// atomic snapshot; SetConfig swaps the whole pointer.
type ThresholdManager struct {
	current atomic.Pointer[ThresholdConfig]
}

// NewThresholdManager creates a manager holding the default config.
func NewThresholdManager() *ThresholdManager {
	m := &ThresholdManager{}
	cfg := DefaultThresholds()
	m.current.Store(&cfg)
	return m
}

// Config returns the active configuration snapshot. Batch operations must
// capture this once per batch, not per record.
func (m *ThresholdManager) Config() ThresholdConfig {
	return *m.current.Load()
}

// SetConfig replaces the active configuration after validating it.
func (m *ThresholdManager) SetConfig(cfg ThresholdConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("set config: %w", err)
	}
	prev := m.current.Load()
	cfg.Version = prev.Version + 1
	cfg.UpdatedAt = time.Now()
	m.current.Store(&cfg)
	return nil
}

// ThresholdProposal is a candidate config plus the evidence for it. The
// caller decides whether to commit; analysis never mutates the active config.
type ThresholdProposal struct {
	Config              ThresholdConfig `json:"config"`
	ExpectedImprovement float64         `json:"expected_improvement"`
	Reasons             []string        `json:"reasons"`
}

const (
	// Rates above this trigger a threshold nudge.
	errorRateBar = 0.05
	// Step size for a single threshold adjustment.
	thresholdStep = 0.05
	// Minimum feedback entries before weights are touched.
	minWeightSamples = 50
)

// ProposeUpdate analyzes a feedback batch and returns a candidate config with
// an estimated accuracy improvement. A nil proposal means the feedback gave
// no reason to move anything.
func (m *ThresholdManager) ProposeUpdate(feedback []Feedback) *ThresholdProposal {
	if len(feedback) == 0 {
		return nil
	}

	cur := m.Config()
	candidate := cur
	var reasons []string
	improvement := 0.0

	var approved, approvedWrong, rejected, rejectedWrong int
	for _, f := range feedback {
		switch f.Decision {
		case DecisionAutoApprove:
			approved++
			if f.HumanDecision == HumanRejected {
				approvedWrong++
			}
		case DecisionAutoReject:
			rejected++
			if f.HumanDecision == HumanValidated {
				rejectedWrong++
			}
		}
	}

	total := float64(len(feedback))
	fpRate := 0.0
	if approved > 0 {
		fpRate = float64(approvedWrong) / float64(approved)
	}
	fnRate := 0.0
	if rejected > 0 {
		fnRate = float64(rejectedWrong) / float64(rejected)
	}

	if fpRate > errorRateBar {
		next := cur.AutoApprove + thresholdStep
		if next > 0.95 {
			next = 0.95
		}
		if next > cur.AutoApprove {
			candidate.AutoApprove = next
			reasons = append(reasons, fmt.Sprintf(
				"raise auto-approve %.2f -> %.2f: false-positive rate %.1f%% over %d approvals",
				cur.AutoApprove, next, fpRate*100, approved))
			// Approvals that would now defer to review instead of being wrong.
			improvement += fpRate * float64(approved) / total
		}
	}

	if fnRate > errorRateBar {
		next := cur.AutoReject - thresholdStep
		if next < 0.05 {
			next = 0.05
		}
		if next < cur.AutoReject {
			candidate.AutoReject = next
			reasons = append(reasons, fmt.Sprintf(
				"lower auto-reject %.2f -> %.2f: false-negative rate %.1f%% over %d rejections",
				cur.AutoReject, next, fnRate*100, rejected))
			improvement += fnRate * float64(rejected) / total
		}
	}

	if len(feedback) >= minWeightSamples {
		if w, desc := rebalanceWeights(cur.Weights, feedback); desc != "" {
			candidate.Weights = w
			reasons = append(reasons, desc)
		}
	}

	if len(reasons) == 0 {
		return nil
	}

	// Keep the decision bands ordered after independent nudges.
	if candidate.AutoReject >= candidate.AutoApprove {
		candidate.AutoReject = candidate.AutoApprove - 0.1
	}

	return &ThresholdProposal{
		Config:              candidate,
		ExpectedImprovement: improvement,
		Reasons:             reasons,
	}
}

// rebalanceWeights nudges each factor weight toward its observed correlation
// with decision correctness, then rescales so the total is unchanged. Returns
// a zero description when no factor correlates strongly enough to matter.
func rebalanceWeights(w ConfidenceWeights, feedback []Feedback) (ConfidenceWeights, string) {
	correct := make([]float64, len(feedback))
	for i, f := range feedback {
		if decisionCorrect(f.Decision, f.HumanDecision) {
			correct[i] = 1
		}
	}

	factors := []struct {
		name   string
		value  func(ConfidenceFactors) float64
		weight *float64
	}{
		{"claude_confidence", func(f ConfidenceFactors) float64 { return f.ClaudeConfidence }, &w.ClaudeConfidence},
		{"emotional_coherence", func(f ConfidenceFactors) float64 { return f.EmotionalCoherence }, &w.EmotionalCoherence},
		{"relationship_accuracy", func(f ConfidenceFactors) float64 { return f.RelationshipAccuracy }, &w.RelationshipAccuracy},
		{"temporal_consistency", func(f ConfidenceFactors) float64 { return f.TemporalConsistency }, &w.TemporalConsistency},
		{"content_quality", func(f ConfidenceFactors) float64 { return f.ContentQuality }, &w.ContentQuality},
	}

	before := w.Total()
	adjusted := ""
	for _, fc := range factors {
		values := make([]float64, len(feedback))
		for i, f := range feedback {
			values[i] = fc.value(f.Confidence.Factors)
		}
		corr := pearson(values, correct)
		if corr > 0.3 || corr < -0.3 {
			*fc.weight *= 1 + 0.2*corr
			if *fc.weight < 0.01 {
				*fc.weight = 0.01
			}
			if adjusted != "" {
				adjusted += ", "
			}
			adjusted += fmt.Sprintf("%s (corr %.2f)", fc.name, corr)
		}
	}
	if adjusted == "" {
		return w, ""
	}

	// Rescale to the original total so thresholds keep their meaning.
	scale := before / w.Total()
	w.ClaudeConfidence *= scale
	w.EmotionalCoherence *= scale
	w.RelationshipAccuracy *= scale
	w.TemporalConsistency *= scale
	w.ContentQuality *= scale

	return w, "rebalance weights toward predictive factors: " + adjusted
}

// decisionCorrect applies the correctness rule: approvals must be validated,
// rejections must be rejected, and deferring to review is always correct.
func decisionCorrect(decision, human string) bool {
	switch decision {
	case DecisionAutoApprove:
		return human == HumanValidated
	case DecisionAutoReject:
		return human == HumanRejected
	default:
		return true
	}
}
