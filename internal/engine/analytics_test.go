package engine

import (
	"strings"
	"testing"
	"time"
)

func trackerWithFeedback(t *testing.T, good, falsePos, falseNeg int) *AccuracyTracker {
	t.Helper()
	tracker := NewAccuracyTracker()
	for i := 0; i < good; i++ {
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: HumanValidated,
		})
	}
	for i := 0; i < falsePos; i++ {
		tracker.Record(Feedback{
			Decision:      DecisionAutoApprove,
			Confidence:    ConfidenceScore{Overall: 0.9},
			HumanDecision: HumanRejected,
		})
	}
	for i := 0; i < falseNeg; i++ {
		tracker.Record(Feedback{
			Decision:      DecisionAutoReject,
			Confidence:    ConfidenceScore{Overall: 0.2},
			HumanDecision: HumanValidated,
		})
	}
	return tracker
}

func batchOf(overall float64, n int) BatchResult {
	batch := BatchResult{Processed: n, Elapsed: time.Duration(n) * time.Second}
	for i := 0; i < n; i++ {
		batch.Results = append(batch.Results, ConfirmationResult{
			Decision:   DecisionAutoApprove,
			Confidence: ConfidenceScore{Overall: overall},
		})
	}
	batch.Approved = n
	return batch
}

func TestAnalytics_HealthScore(t *testing.T) {
	a := NewAnalytics(trackerWithFeedback(t, 100, 0, 0))
	a.RecordBatch(batchOf(0.9, 120)) // 120 records in 2 minutes: 60/min

	report := a.Report()
	// 0.5·1.0 + 0.3·1.0 + 0.2·min(1, 60/60) = 1.0
	if !closeTo(report.Health, 1.0) {
		t.Errorf("health = %f, want 1.0", report.Health)
	}
	if len(report.Issues) != 0 {
		t.Errorf("issues = %v, want none", report.Issues)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want none", report.Recommendations)
	}
}

func TestAnalytics_FlagsHighErrorRates(t *testing.T) {
	a := NewAnalytics(trackerWithFeedback(t, 60, 20, 20))
	a.RecordBatch(batchOf(0.9, 120))

	report := a.Report()
	joined := strings.Join(report.Issues, "; ")
	if !strings.Contains(joined, "false-positive") {
		t.Errorf("issues %v missing false-positive flag", report.Issues)
	}
	if !strings.Contains(joined, "false-negative") {
		t.Errorf("issues %v missing false-negative flag", report.Issues)
	}

	recs := strings.Join(report.Recommendations, "; ")
	if !strings.Contains(recs, "raise the auto-approve threshold") {
		t.Errorf("recommendations %v missing approve-threshold advice", report.Recommendations)
	}
	if !strings.Contains(recs, "lower the auto-reject threshold") {
		t.Errorf("recommendations %v missing reject-threshold advice", report.Recommendations)
	}
}

func TestAnalytics_FlagsLowAccuracy(t *testing.T) {
	a := NewAnalytics(trackerWithFeedback(t, 50, 50, 0))

	report := a.Report()
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "accuracy") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues %v missing accuracy flag for 50%% accuracy", report.Issues)
	}
	if report.Health >= 0.8 {
		t.Errorf("health = %f, want degraded", report.Health)
	}
}

func TestAnalytics_FlagsLowThroughputAndConfidence(t *testing.T) {
	a := NewAnalytics(NewAccuracyTracker())
	// 10 records over 1 minute: 10/min, below the 30/min bar, and a weak
	// average confidence.
	batch := batchOf(0.4, 10)
	batch.Elapsed = time.Minute
	a.RecordBatch(batch)

	report := a.Report()
	joined := strings.Join(report.Issues, "; ")
	if !strings.Contains(joined, "throughput") {
		t.Errorf("issues %v missing throughput flag", report.Issues)
	}
	if !strings.Contains(joined, "average confidence") {
		t.Errorf("issues %v missing batch confidence flag", report.Issues)
	}
}

func TestAnalytics_RecommendsRecalibration(t *testing.T) {
	tracker := NewAccuracyTracker()
	// 0.9-claimed confidence, 50% observed accuracy: a 0.4 calibration gap.
	for i := 0; i < 40; i++ {
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

	report := NewAnalytics(tracker).Report()
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "recalibrate") {
			found = true
		}
	}
	if !found {
		t.Errorf("recommendations %v missing recalibration advice", report.Recommendations)
	}
}

func TestAnalytics_BatchHistoryBounded(t *testing.T) {
	a := NewAnalytics(NewAccuracyTracker())
	for i := 0; i < batchHistory+20; i++ {
		a.RecordBatch(batchOf(0.8, 1))
	}
	if got := a.Report().Batches; got != batchHistory {
		t.Errorf("batches = %d, want capped at %d", got, batchHistory)
	}
}

func TestThroughputPerMin(t *testing.T) {
	batches := []BatchStats{
		{Processed: 30, Elapsed: 30 * time.Second},
		{Processed: 30, Elapsed: 30 * time.Second},
	}
	if got := throughputPerMin(batches); !closeTo(got, 60) {
		t.Errorf("throughput = %f, want 60/min", got)
	}
	if got := throughputPerMin(nil); got != 0 {
		t.Errorf("throughput = %f, want 0 for no batches", got)
	}
}
