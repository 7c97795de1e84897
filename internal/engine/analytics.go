package engine

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// batchHistory bounds the rolling batch log used for throughput math.
const batchHistory = 100

// BatchStats is the per-batch line the analytics layer keeps.
type BatchStats struct {
	Timestamp     time.Time     `json:"timestamp"`
	Processed     int           `json:"processed"`
	Approved      int           `json:"approved"`
	Review        int           `json:"review"`
	Rejected      int           `json:"rejected"`
	Errors        int           `json:"errors"`
	Elapsed       time.Duration `json:"elapsed"`
	AvgConfidence float64       `json:"avg_confidence"`
}

// AnalyticsReport closes the loop: rolling metrics, system health, flagged
// issues, and tuning recommendations for the threshold manager's owner.
type AnalyticsReport struct {
	Metrics          AccuracyMetrics `json:"metrics"`
	Health           float64         `json:"health"`
	ThroughputPerMin float64         `json:"throughput_per_min"`
	Batches          int             `json:"batches"`
	Issues           []string        `json:"issues,omitempty"`
	Recommendations  []string        `json:"recommendations,omitempty"`
}

// Analytics layers batch logging and health reporting on top of the
// accuracy tracker.
type Analytics struct {
	Tracker *AccuracyTracker

	mu      sync.Mutex
	batches []BatchStats
}

// NewAnalytics creates an analytics layer over the given tracker.
func NewAnalytics(tracker *AccuracyTracker) *Analytics {
	return &Analytics{Tracker: tracker}
}

// RecordBatch logs one processed batch for throughput and quality tracking.
func (a *Analytics) RecordBatch(batch BatchResult) {
	stats := BatchStats{
		Timestamp:     time.Now(),
		Processed:     batch.Processed,
		Approved:      batch.Approved,
		Review:        batch.Review,
		Rejected:      batch.Rejected,
		Errors:        batch.Errors,
		Elapsed:       batch.Elapsed,
		AvgConfidence: avgConfidence(batch.Results),
	}

	a.mu.Lock()
	a.batches = append(a.batches, stats)
	if len(a.batches) > batchHistory {
		a.batches = a.batches[len(a.batches)-batchHistory:]
	}
	a.mu.Unlock()

	log.Printf("analytics: batch processed=%d approved=%d review=%d rejected=%d avg_confidence=%.2f",
		stats.Processed, stats.Approved, stats.Review, stats.Rejected, stats.AvgConfidence)
}

func avgConfidence(results []ConfirmationResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence.Overall
	}
	return sum / float64(len(results))
}

// Report assembles the current health picture.
func (a *Analytics) Report() AnalyticsReport {
	metrics := a.Tracker.Metrics()

	a.mu.Lock()
	batches := make([]BatchStats, len(a.batches))
	copy(batches, a.batches)
	a.mu.Unlock()

	throughput := throughputPerMin(batches)
	report := AnalyticsReport{
		Metrics:          metrics,
		ThroughputPerMin: throughput,
		Batches:          len(batches),
		Health:           healthScore(metrics, throughput),
	}
	report.Issues = issues(metrics, throughput, batches)
	report.Recommendations = recommendations(metrics)
	return report
}

// healthScore blends accuracy, error rates, and throughput into one number:
// 0.5·accuracy + 0.3·(1 − mean(FP,FN)) + 0.2·min(1, throughput/60).
func healthScore(m AccuracyMetrics, throughput float64) float64 {
	errRate := (m.FalsePositiveRate + m.FalseNegativeRate) / 2
	tp := throughput / 60
	if tp > 1 {
		tp = 1
	}
	return clamp01(0.5*m.Overall + 0.3*(1-errRate) + 0.2*tp)
}

// throughputPerMin is records per minute over the batch history.
func throughputPerMin(batches []BatchStats) float64 {
	var processed int
	var elapsed time.Duration
	for _, b := range batches {
		processed += b.Processed
		elapsed += b.Elapsed
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(processed) / elapsed.Minutes()
}

func issues(m AccuracyMetrics, throughput float64, batches []BatchStats) []string {
	var out []string
	if m.Samples > 0 && m.Overall < 0.8 {
		out = append(out, fmt.Sprintf("accuracy %.1f%% below 80%%", m.Overall*100))
	}
	if m.FalsePositiveRate > 0.05 {
		out = append(out, fmt.Sprintf("false-positive rate %.1f%% above 5%%", m.FalsePositiveRate*100))
	}
	if m.FalseNegativeRate > 0.05 {
		out = append(out, fmt.Sprintf("false-negative rate %.1f%% above 5%%", m.FalseNegativeRate*100))
	}
	if len(batches) > 0 && throughput > 0 && throughput < 30 {
		out = append(out, fmt.Sprintf("throughput %.0f/min below 30/min", throughput))
	}
	if len(batches) > 0 {
		last := batches[len(batches)-1]
		if last.Processed > 0 && last.AvgConfidence < 0.6 {
			out = append(out, fmt.Sprintf("last batch average confidence %.2f below 0.60", last.AvgConfidence))
		}
	}
	return out
}

// recommendations are the textual tuning hints fed back toward the threshold
// manager's owner. They never change configuration themselves.
func recommendations(m AccuracyMetrics) []string {
	var out []string
	if m.FalsePositiveRate > 0.05 {
		out = append(out, "raise the auto-approve threshold: too many approvals are overturned by reviewers")
	}
	if m.FalseNegativeRate > 0.05 {
		out = append(out, "lower the auto-reject threshold: too many rejections are overturned by reviewers")
	}
	for _, b := range m.Buckets {
		gap := b.AvgPredicted - b.Accuracy
		if gap < 0 {
			gap = -gap
		}
		if b.Count >= 10 && gap > 0.2 {
			out = append(out, fmt.Sprintf(
				"recalibrate confidence weights: bucket %.1f-%.1f predicts %.2f but scores %.2f over %d samples",
				b.Low, b.High, b.AvgPredicted, b.Accuracy, b.Count))
		}
	}
	return out
}
