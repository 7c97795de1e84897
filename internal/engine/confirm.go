package engine

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// minImprovement is the bar a threshold proposal must clear before it is
// committed. Calibration only moves forward; a proposal that cannot
// demonstrate at least this much expected gain is dropped.
const minImprovement = 0.01

// Confirmer decides, per memory, whether it can be auto-approved, must be
// reviewed by a human, or should be auto-rejected.
type Confirmer struct {
	Thresholds *ThresholdManager
}

// NewConfirmer creates a Confirmer around a threshold manager.
func NewConfirmer(tm *ThresholdManager) *Confirmer {
	return &Confirmer{Thresholds: tm}
}

// Evaluate classifies a single memory against the current thresholds.
func (c *Confirmer) Evaluate(mem Memory) ConfirmationResult {
	return evaluate(mem, c.Thresholds.Config())
}

// ProcessBatch classifies each memory independently against one config
// snapshot. A record that fails evaluation is recorded as needs-review with
// an evaluation-error reason; it never aborts the batch.
func (c *Confirmer) ProcessBatch(memories []Memory) BatchResult {
	start := time.Now()
	cfg := c.Thresholds.Config()

	batch := BatchResult{Results: make([]ConfirmationResult, 0, len(memories))}
	for _, mem := range memories {
		res, err := evaluateSafe(mem, cfg)
		if err != nil {
			log.Printf("confirm: memory %s: %v", mem.ID, err)
			res = ConfirmationResult{
				MemoryID: mem.ID,
				Decision: DecisionNeedsReview,
				Reasons:  []string{fmt.Sprintf("evaluation error: %v", err)},
			}
			batch.Errors++
		}
		switch res.Decision {
		case DecisionAutoApprove:
			batch.Approved++
		case DecisionAutoReject:
			batch.Rejected++
		default:
			batch.Review++
		}
		batch.Results = append(batch.Results, res)
	}

	batch.Processed = len(batch.Results)
	batch.Elapsed = time.Since(start)
	log.Printf("confirm: batch of %d: %d approved, %d review, %d rejected, %d errors in %s",
		batch.Processed, batch.Approved, batch.Review, batch.Rejected, batch.Errors, batch.Elapsed)
	return batch
}

// UpdateThresholds asks the threshold manager for a proposal based on the
// feedback batch and commits it only if it clears the improvement bar.
// Returns true when a new config was applied.
func (c *Confirmer) UpdateThresholds(feedback []Feedback) bool {
	proposal := c.Thresholds.ProposeUpdate(feedback)
	if proposal == nil {
		log.Printf("confirm: %d feedback entries, no threshold change proposed", len(feedback))
		return false
	}
	if proposal.ExpectedImprovement < minImprovement {
		log.Printf("confirm: threshold proposal below improvement bar (%.3f < %.3f), keeping current config",
			proposal.ExpectedImprovement, minImprovement)
		return false
	}
	if err := c.Thresholds.SetConfig(proposal.Config); err != nil {
		log.Printf("confirm: threshold proposal rejected: %v", err)
		return false
	}
	for _, r := range proposal.Reasons {
		log.Printf("confirm: thresholds updated: %s", r)
	}
	return true
}

// confidenceFn is the scoring hook; tests swap it to exercise the failure
// isolation path.
var confidenceFn = CalculateConfidence

// evaluateSafe wraps evaluate with panic containment so one malformed record
// cannot take down a batch.
func evaluateSafe(mem Memory, cfg ThresholdConfig) (res ConfirmationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()
	return evaluate(mem, cfg), nil
}

func evaluate(mem Memory, cfg ThresholdConfig) ConfirmationResult {
	score := confidenceFn(mem, cfg)

	var decision string
	var reasons []string
	switch {
	case score.Overall >= cfg.AutoApprove:
		decision = DecisionAutoApprove
		reasons = append(reasons, fmt.Sprintf("confidence %.2f at or above auto-approve threshold %.2f",
			score.Overall, cfg.AutoApprove))
	case score.Overall < cfg.AutoReject:
		decision = DecisionAutoReject
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below auto-reject threshold %.2f",
			score.Overall, cfg.AutoReject))
	default:
		decision = DecisionNeedsReview
		reasons = append(reasons, fmt.Sprintf("confidence %.2f between thresholds %.2f and %.2f",
			score.Overall, cfg.AutoReject, cfg.AutoApprove))
	}
	reasons = append(reasons, factorReasons(score.Factors)...)

	res := ConfirmationResult{
		MemoryID:   mem.ID,
		Decision:   decision,
		Confidence: score,
		Reasons:    reasons,
	}
	if decision == DecisionNeedsReview {
		res.SuggestedActions = suggestedActions(score.Factors)
	}
	return res
}

type namedFactor struct {
	name  string
	value float64
}

func namedFactors(f ConfidenceFactors) []namedFactor {
	return []namedFactor{
		{"claude_confidence", f.ClaudeConfidence},
		{"emotional_coherence", f.EmotionalCoherence},
		{"relationship_accuracy", f.RelationshipAccuracy},
		{"temporal_consistency", f.TemporalConsistency},
		{"content_quality", f.ContentQuality},
	}
}

// factorReasons surfaces factors that pushed the score in either direction.
func factorReasons(f ConfidenceFactors) []string {
	var reasons []string
	for _, nf := range namedFactors(f) {
		if nf.value > 0.8 {
			reasons = append(reasons, fmt.Sprintf("strong %s (%.2f)", nf.name, nf.value))
		} else if nf.value < 0.5 {
			reasons = append(reasons, fmt.Sprintf("weak %s (%.2f)", nf.name, nf.value))
		}
	}
	return reasons
}

// suggestedActions names the three weakest factors so a reviewer knows where
// to look first.
func suggestedActions(f ConfidenceFactors) []string {
	factors := namedFactors(f)
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].value < factors[j].value })

	actions := make([]string, 0, 3)
	for _, nf := range factors[:3] {
		actions = append(actions, fmt.Sprintf("verify %s (scored %.2f)", nf.name, nf.value))
	}
	return actions
}
