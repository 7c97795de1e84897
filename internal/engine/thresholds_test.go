package engine

import (
	"strings"
	"testing"
	"time"
)

func TestThresholdManager_SetConfigVersions(t *testing.T) {
	tm := NewThresholdManager()
	if v := tm.Config().Version; v != 1 {
		t.Fatalf("initial version = %d, want 1", v)
	}

	cfg := tm.Config()
	cfg.AutoApprove = 0.9
	if err := tm.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	got := tm.Config()
	if got.AutoApprove != 0.9 {
		t.Errorf("AutoApprove = %f, want 0.9", got.AutoApprove)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
}

func TestThresholdConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ThresholdConfig)
		ok     bool
	}{
		{"defaults", func(c *ThresholdConfig) {}, true},
		{"approve above one", func(c *ThresholdConfig) { c.AutoApprove = 1.2 }, false},
		{"reject negative", func(c *ThresholdConfig) { c.AutoReject = -0.1 }, false},
		{"inverted bands", func(c *ThresholdConfig) { c.AutoReject = 0.9; c.AutoApprove = 0.5 }, false},
		{"zero weights", func(c *ThresholdConfig) { c.Weights = ConfidenceWeights{} }, false},
	}

	for _, tt := range tests {
		cfg := DefaultThresholds()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestSetConfig_RejectsInvalid(t *testing.T) {
	tm := NewThresholdManager()
	bad := DefaultThresholds()
	bad.AutoReject = 0.95

	if err := tm.SetConfig(bad); err == nil {
		t.Fatal("expected error for inverted thresholds")
	}
	if tm.Config().AutoReject == 0.95 {
		t.Error("invalid config was applied")
	}
}

func feedbackBatch(decision, human string, confidence float64, n int) []Feedback {
	out := make([]Feedback, n)
	for i := range out {
		out[i] = Feedback{
			MemoryID:      "mem",
			Decision:      decision,
			Confidence:    ConfidenceScore{Overall: confidence},
			HumanDecision: human,
			Timestamp:     time.Now(),
		}
	}
	return out
}

func TestProposeUpdate_RaisesApproveOnFalsePositives(t *testing.T) {
	tm := NewThresholdManager()

	// 20 approvals, 4 overturned: 20% false positives.
	feedback := append(
		feedbackBatch(DecisionAutoApprove, HumanValidated, 0.9, 16),
		feedbackBatch(DecisionAutoApprove, HumanRejected, 0.88, 4)...)

	proposal := tm.ProposeUpdate(feedback)
	if proposal == nil {
		t.Fatal("expected a proposal for a 20% false-positive rate")
	}
	cur := tm.Config()
	if proposal.Config.AutoApprove <= cur.AutoApprove {
		t.Errorf("AutoApprove %f not raised above %f", proposal.Config.AutoApprove, cur.AutoApprove)
	}
	if proposal.ExpectedImprovement <= 0 {
		t.Errorf("ExpectedImprovement = %f, want > 0", proposal.ExpectedImprovement)
	}
	if len(proposal.Reasons) == 0 || !strings.Contains(proposal.Reasons[0], "false-positive") {
		t.Errorf("reasons = %v, want false-positive explanation", proposal.Reasons)
	}
	if tm.Config().AutoApprove != cur.AutoApprove {
		t.Error("ProposeUpdate mutated the active config")
	}
}

func TestProposeUpdate_LowersRejectOnFalseNegatives(t *testing.T) {
	tm := NewThresholdManager()

	feedback := append(
		feedbackBatch(DecisionAutoReject, HumanRejected, 0.2, 15),
		feedbackBatch(DecisionAutoReject, HumanValidated, 0.35, 5)...)

	proposal := tm.ProposeUpdate(feedback)
	if proposal == nil {
		t.Fatal("expected a proposal for a 25% false-negative rate")
	}
	if proposal.Config.AutoReject >= tm.Config().AutoReject {
		t.Errorf("AutoReject %f not lowered below %f", proposal.Config.AutoReject, tm.Config().AutoReject)
	}
}

func TestProposeUpdate_NoChangeWhenAccurate(t *testing.T) {
	tm := NewThresholdManager()

	feedback := append(
		feedbackBatch(DecisionAutoApprove, HumanValidated, 0.9, 30),
		feedbackBatch(DecisionAutoReject, HumanRejected, 0.2, 30)...)

	if proposal := tm.ProposeUpdate(feedback); proposal != nil {
		t.Errorf("expected no proposal for accurate feedback, got %+v", proposal.Reasons)
	}
}

func TestProposeUpdate_EmptyFeedback(t *testing.T) {
	tm := NewThresholdManager()
	if proposal := tm.ProposeUpdate(nil); proposal != nil {
		t.Error("expected no proposal for empty feedback")
	}
}

func TestProposeUpdate_KeepsBandsOrdered(t *testing.T) {
	tm := NewThresholdManager()
	cfg := tm.Config()
	cfg.AutoApprove = 0.5
	cfg.AutoReject = 0.45
	if err := tm.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	feedback := append(
		feedbackBatch(DecisionAutoApprove, HumanRejected, 0.55, 10),
		feedbackBatch(DecisionAutoReject, HumanValidated, 0.4, 10)...)

	proposal := tm.ProposeUpdate(feedback)
	if proposal == nil {
		t.Fatal("expected a proposal")
	}
	if proposal.Config.AutoReject >= proposal.Config.AutoApprove {
		t.Errorf("bands inverted: reject %f >= approve %f",
			proposal.Config.AutoReject, proposal.Config.AutoApprove)
	}
	if err := proposal.Config.Validate(); err != nil {
		t.Errorf("proposed config invalid: %v", err)
	}
}

func TestDecisionCorrect(t *testing.T) {
	tests := []struct {
		decision string
		human    string
		want     bool
	}{
		{DecisionAutoApprove, HumanValidated, true},
		{DecisionAutoApprove, HumanRejected, false},
		{DecisionAutoReject, HumanRejected, true},
		{DecisionAutoReject, HumanValidated, false},
		{DecisionNeedsReview, HumanValidated, true},
		{DecisionNeedsReview, HumanRejected, true},
	}
	for _, tt := range tests {
		if got := decisionCorrect(tt.decision, tt.human); got != tt.want {
			t.Errorf("decisionCorrect(%s, %s) = %v, want %v", tt.decision, tt.human, got, tt.want)
		}
	}
}
