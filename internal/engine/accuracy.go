package engine

import (
	"math"
	"sync"
)

// feedbackWindow caps the rolling ledger. Appends past the cap drop the
// oldest entries.
const feedbackWindow = 1000

const calibrationBuckets = 5

// AccuracyTracker is an append-only, capacity-bounded ledger of human
// feedback on engine decisions. Append-then-trim is serialized behind a
// mutex; trimming does not commute with concurrent appends.
type AccuracyTracker struct {
	mu      sync.Mutex
	entries []Feedback
}

// NewAccuracyTracker creates an empty tracker.
func NewAccuracyTracker() *AccuracyTracker {
	return &AccuracyTracker{}
}

// Record appends one feedback entry, trimming the window if needed.
func (t *AccuracyTracker) Record(f Feedback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, f)
	if len(t.entries) > feedbackWindow {
		t.entries = t.entries[len(t.entries)-feedbackWindow:]
	}
}

// Window returns a copy of the current feedback window, oldest first.
func (t *AccuracyTracker) Window() []Feedback {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Feedback, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries currently held.
func (t *AccuracyTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// CalibrationBucket summarizes predicted-vs-actual agreement for one
// confidence band.
type CalibrationBucket struct {
	Low          float64 `json:"low"`
	High         float64 `json:"high"`
	Count        int     `json:"count"`
	AvgPredicted float64 `json:"avg_predicted"`
	Accuracy     float64 `json:"accuracy"`
}

// AccuracyMetrics are the rolling quality numbers derived from the ledger.
type AccuracyMetrics struct {
	Samples            int                 `json:"samples"`
	Overall            float64             `json:"overall"`
	FalsePositiveRate  float64             `json:"false_positive_rate"`
	FalseNegativeRate  float64             `json:"false_negative_rate"`
	PerDecision        map[string]float64  `json:"per_decision"`
	Calibration        float64             `json:"calibration"`
	Buckets            []CalibrationBucket `json:"buckets"`
	FactorCorrelations map[string]float64  `json:"factor_correlations"`
}

// Metrics computes accuracy, error rates, calibration, and per-factor
// correlations over the current window.
func (t *AccuracyTracker) Metrics() AccuracyMetrics {
	entries := t.Window()
	m := AccuracyMetrics{
		Samples:            len(entries),
		PerDecision:        make(map[string]float64),
		FactorCorrelations: make(map[string]float64),
	}
	if len(entries) == 0 {
		return m
	}

	correct := 0
	decisionTotal := make(map[string]int)
	correctByDecision := make(map[string]int)
	var approved, approvedWrong, rejected, rejectedWrong int
	correctness := make([]float64, len(entries))

	for i, f := range entries {
		decisionTotal[f.Decision]++
		if decisionCorrect(f.Decision, f.HumanDecision) {
			correct++
			correctByDecision[f.Decision]++
			correctness[i] = 1
		}
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

	m.Overall = float64(correct) / float64(len(entries))
	if approved > 0 {
		m.FalsePositiveRate = float64(approvedWrong) / float64(approved)
	}
	if rejected > 0 {
		m.FalseNegativeRate = float64(rejectedWrong) / float64(rejected)
	}
	for decision, total := range decisionTotal {
		m.PerDecision[decision] = float64(correctByDecision[decision]) / float64(total)
	}

	m.Buckets = calibration(entries, correctness)
	m.Calibration = calibrationScore(m.Buckets, len(entries))
	m.FactorCorrelations = factorCorrelations(entries, correctness)
	return m
}

// calibration splits the window into five equal-width confidence bands and
// compares average predicted confidence with observed accuracy per band.
func calibration(entries []Feedback, correctness []float64) []CalibrationBucket {
	buckets := make([]CalibrationBucket, calibrationBuckets)
	width := 1.0 / calibrationBuckets
	for i := range buckets {
		buckets[i].Low = float64(i) * width
		buckets[i].High = buckets[i].Low + width
	}

	sums := make([]float64, calibrationBuckets)
	hits := make([]float64, calibrationBuckets)
	for i, f := range entries {
		b := int(f.Confidence.Overall / width)
		if b >= calibrationBuckets {
			b = calibrationBuckets - 1
		}
		if b < 0 {
			b = 0
		}
		buckets[b].Count++
		sums[b] += f.Confidence.Overall
		hits[b] += correctness[i]
	}

	for i := range buckets {
		if buckets[i].Count == 0 {
			continue
		}
		n := float64(buckets[i].Count)
		buckets[i].AvgPredicted = sums[i] / n
		buckets[i].Accuracy = hits[i] / n
	}
	return buckets
}

// calibrationScore is one minus the count-weighted mean absolute gap between
// predicted confidence and observed accuracy.
func calibrationScore(buckets []CalibrationBucket, total int) float64 {
	if total == 0 {
		return 0
	}
	weighted := 0.0
	for _, b := range buckets {
		if b.Count == 0 {
			continue
		}
		weighted += float64(b.Count) * math.Abs(b.AvgPredicted-b.Accuracy)
	}
	return clamp01(1 - weighted/float64(total))
}

// factorCorrelations measures, per confidence factor, how strongly the
// factor's value tracks decision correctness. Factors near zero are not
// predictive and are candidates for down-weighting.
func factorCorrelations(entries []Feedback, correctness []float64) map[string]float64 {
	factors := map[string]func(ConfidenceFactors) float64{
		"claude_confidence":     func(f ConfidenceFactors) float64 { return f.ClaudeConfidence },
		"emotional_coherence":   func(f ConfidenceFactors) float64 { return f.EmotionalCoherence },
		"relationship_accuracy": func(f ConfidenceFactors) float64 { return f.RelationshipAccuracy },
		"temporal_consistency":  func(f ConfidenceFactors) float64 { return f.TemporalConsistency },
		"content_quality":       func(f ConfidenceFactors) float64 { return f.ContentQuality },
	}

	out := make(map[string]float64, len(factors))
	for name, get := range factors {
		values := make([]float64, len(entries))
		for i, f := range entries {
			values[i] = get(f.Confidence.Factors)
		}
		out[name] = pearson(values, correctness)
	}
	return out
}

// pearson computes the Pearson correlation coefficient between two equal
// length series. Returns 0 when either series has no variance.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
