package engine

import (
	"testing"
	"time"
)

func TestAccuracyTracker_PerfectApprovals(t *testing.T) {
	tracker := NewAccuracyTracker()
	for i := 0; i < 100; i++ {
		tracker.Record(Feedback{
			MemoryID:      "mem",
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: HumanValidated,
			Timestamp:     time.Now(),
		})
	}

	m := tracker.Metrics()
	if m.Samples != 100 {
		t.Fatalf("samples = %d, want 100", m.Samples)
	}
	if m.Overall != 1.0 {
		t.Errorf("overall = %f, want 1.0", m.Overall)
	}
	if m.PerDecision[DecisionAutoApprove] != 1.0 {
		t.Errorf("approve accuracy = %f, want 1.0", m.PerDecision[DecisionAutoApprove])
	}
	if m.FalsePositiveRate != 0 {
		t.Errorf("false-positive rate = %f, want 0", m.FalsePositiveRate)
	}
}

func TestAccuracyTracker_MismatchesDropProportionally(t *testing.T) {
	tracker := NewAccuracyTracker()
	for i := 0; i < 90; i++ {
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: HumanValidated,
		})
	}
	for i := 0; i < 10; i++ {
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: HumanRejected,
		})
	}

	m := tracker.Metrics()
	if !closeTo(m.PerDecision[DecisionAutoApprove], 0.9) {
		t.Errorf("approve accuracy = %f, want 0.9", m.PerDecision[DecisionAutoApprove])
	}
	if !closeTo(m.FalsePositiveRate, 0.1) {
		t.Errorf("false-positive rate = %f, want 0.1", m.FalsePositiveRate)
	}
}

func TestAccuracyTracker_NeedsReviewAlwaysCorrect(t *testing.T) {
	tracker := NewAccuracyTracker()
	tracker.Record(Feedback{Decision: DecisionNeedsReview, HumanDecision: HumanValidated})
	tracker.Record(Feedback{Decision: DecisionNeedsReview, HumanDecision: HumanRejected})

	m := tracker.Metrics()
	if m.Overall != 1.0 {
		t.Errorf("overall = %f, want 1.0 — deferring is always correct", m.Overall)
	}
}

func TestAccuracyTracker_WindowCap(t *testing.T) {
	tracker := NewAccuracyTracker()
	for i := 0; i < 1200; i++ {
		human := HumanValidated
		if i < 200 {
			// The first 200 are wrong; they should age out of the window.
			human = HumanRejected
		}
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: human,
		})
	}

	if n := tracker.Len(); n != feedbackWindow {
		t.Fatalf("window length = %d, want %d", n, feedbackWindow)
	}
	if m := tracker.Metrics(); m.Overall != 1.0 {
		t.Errorf("overall = %f, want 1.0 after the wrong entries aged out", m.Overall)
	}
}

func TestCalibration_WellCalibrated(t *testing.T) {
	tracker := NewAccuracyTracker()
	// 0.9-confidence approvals that are right 90% of the time.
	for i := 0; i < 100; i++ {
		human := HumanValidated
		if i%10 == 0 {
			human = HumanRejected
		}
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: human,
		})
	}

	m := tracker.Metrics()
	if m.Calibration < 0.95 {
		t.Errorf("calibration = %f, want near 1.0 for matched confidence and accuracy", m.Calibration)
	}

	var populated int
	for _, b := range m.Buckets {
		if b.Count > 0 {
			populated++
			if b.Low > 0.9 || b.High < 0.9 {
				t.Errorf("entries landed in bucket [%.1f,%.1f), want the top band", b.Low, b.High)
			}
		}
	}
	if populated != 1 {
		t.Errorf("populated buckets = %d, want 1", populated)
	}
}

func TestCalibration_Overconfident(t *testing.T) {
	tracker := NewAccuracyTracker()
	// Claims 0.9 but is right only half the time.
	for i := 0; i < 100; i++ {
		human := HumanValidated
		if i%2 == 0 {
			human = HumanRejected
		}
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: human,
		})
	}

	m := tracker.Metrics()
	if m.Calibration > 0.7 {
		t.Errorf("calibration = %f, want well below 1.0 for overconfident scores", m.Calibration)
	}
}

func TestFactorCorrelations(t *testing.T) {
	tracker := NewAccuracyTracker()
	// content_quality tracks correctness exactly; claude_confidence is flat.
	for i := 0; i < 60; i++ {
		correct := i%2 == 0
		human := HumanRejected
		quality := 0.2
		if correct {
			human = HumanValidated
			quality = 0.9
		}
		tracker.Record(Feedback{
			Decision: DecisionAutoApprove,
			Confidence: ConfidenceScore{
				Overall: 0.8,
				Factors: ConfidenceFactors{
					ClaudeConfidence: 0.8,
					ContentQuality:   quality,
				},
			},
			HumanDecision: human,
		})
	}

	m := tracker.Metrics()
	if corr := m.FactorCorrelations["content_quality"]; corr < 0.95 {
		t.Errorf("content_quality correlation = %f, want near 1.0", corr)
	}
	if corr := m.FactorCorrelations["claude_confidence"]; corr != 0 {
		t.Errorf("claude_confidence correlation = %f, want 0 for a constant factor", corr)
	}
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"no variance", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		if got := pearson(tt.x, tt.y); !closeTo(got, tt.want) {
			t.Errorf("%s: pearson = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_Empty(t *testing.T) {
	m := NewAccuracyTracker().Metrics()
	if m.Samples != 0 || m.Overall != 0 {
		t.Errorf("empty tracker metrics = %+v, want zeros", m)
	}
}
