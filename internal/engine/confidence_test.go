package engine

import (
	"testing"
	"time"
)

func testMemory() Memory {
	ts := time.Now().Add(-48 * time.Hour)
	return Memory{
		ID:        "mem-001",
		Content:   "We talked about the wedding plans and how nervous she was about her father walking her down the aisle.",
		Timestamp: ts,
		Tags:      []string{"wedding", "family"},
		Participants: []Participant{
			{ID: "p1", Role: "narrator", Relationship: "self"},
			{ID: "p2", Role: "subject", Relationship: "daughter"},
		},
		EmotionalContext: &EmotionalContext{
			PrimaryEmotion:    "anxiety",
			Intensity:         0.7,
			SecondaryEmotions: []string{"excitement"},
			Themes:            []string{"family", "milestone"},
		},
		RelationshipDynamics: &RelationshipDynamics{
			InteractionQuality:    "supportive",
			CommunicationPatterns: []string{"open", "reassuring"},
		},
		Metadata: MemoryMetadata{
			ExtractionConfidence: 0.85,
			ProcessedAt:          ts.Add(time.Minute),
		},
	}
}

func TestCalculateConfidence_Range(t *testing.T) {
	cfg := DefaultThresholds()
	memories := []Memory{
		testMemory(),
		{},
		{ID: "bare", Content: "x"},
		{ID: "future", Timestamp: time.Now().Add(100 * time.Hour)},
	}

	for _, mem := range memories {
		score := CalculateConfidence(mem, cfg)
		if score.Overall < 0 || score.Overall > 1 {
			t.Errorf("memory %q: overall %f out of [0,1]", mem.ID, score.Overall)
		}
		for _, nf := range namedFactors(score.Factors) {
			if nf.value < 0 || nf.value > 1 {
				t.Errorf("memory %q: factor %s = %f out of [0,1]", mem.ID, nf.name, nf.value)
			}
		}
	}
}

func TestCalculateConfidence_Idempotent(t *testing.T) {
	cfg := DefaultThresholds()
	mem := testMemory()

	a := CalculateConfidence(mem, cfg)
	b := CalculateConfidence(mem, cfg)
	if a != b {
		t.Errorf("same record, same config gave different scores: %+v vs %+v", a, b)
	}
}

func TestClaudeConfidence_FallbackWhenAbsent(t *testing.T) {
	mem := testMemory()
	mem.Metadata.ExtractionConfidence = 0

	if got := claudeConfidence(mem); got != 0.5 {
		t.Errorf("claudeConfidence = %f, want 0.5 fallback", got)
	}
}

func TestEmotionalCoherence(t *testing.T) {
	tests := []struct {
		name string
		ctx  *EmotionalContext
		want float64
	}{
		{"no context", nil, 0.3},
		{"empty context", &EmotionalContext{}, 0.5},
		{"intensity only", &EmotionalContext{Intensity: 0.5}, 0.65},
		{
			"fully annotated",
			&EmotionalContext{
				PrimaryEmotion:    "joy",
				SecondaryEmotions: []string{"relief"},
				Intensity:         0.8,
				Themes:            []string{"reunion"},
			},
			1.0,
		},
	}

	for _, tt := range tests {
		mem := Memory{EmotionalContext: tt.ctx}
		if got := emotionalCoherence(mem); !closeTo(got, tt.want) {
			t.Errorf("%s: emotionalCoherence = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestRelationshipAccuracy(t *testing.T) {
	mem := Memory{}
	if got := relationshipAccuracy(mem); got != 0.4 {
		t.Errorf("no dynamics: relationshipAccuracy = %f, want 0.4", got)
	}

	mem = testMemory()
	if got := relationshipAccuracy(mem); !closeTo(got, 1.0) {
		t.Errorf("documented dynamics: relationshipAccuracy = %f, want 1.0", got)
	}
}

func TestTemporalConsistency(t *testing.T) {
	mem := testMemory()
	if got := temporalConsistency(mem); !closeTo(got, 1.0) {
		t.Errorf("sane timestamps: temporalConsistency = %f, want 1.0", got)
	}

	mem.Timestamp = time.Time{}
	if got := temporalConsistency(mem); got != 0.3 {
		t.Errorf("missing timestamp: temporalConsistency = %f, want 0.3", got)
	}

	mem = testMemory()
	mem.Timestamp = time.Now().Add(24 * time.Hour)
	if got := temporalConsistency(mem); got > 0.7 {
		t.Errorf("future timestamp: temporalConsistency = %f, want no window credit", got)
	}

	mem = testMemory()
	mem.Timestamp = time.Now().AddDate(-11, 0, 0)
	mem.Metadata.ProcessedAt = time.Now()
	if got := temporalConsistency(mem); got > 0.86 {
		t.Errorf("11-year-old timestamp: temporalConsistency = %f, want no window credit", got)
	}
}

func TestContentQuality(t *testing.T) {
	mem := Memory{Content: "hi", Tags: nil}
	if got := contentQuality(mem); got != 0.5 {
		t.Errorf("trivial content: contentQuality = %f, want 0.5 base", got)
	}

	mem = testMemory()
	if got := contentQuality(mem); !closeTo(got, 1.0) {
		t.Errorf("substantive content: contentQuality = %f, want 1.0", got)
	}
}

func TestMeaningfulWords(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 0},
		{"a of in", 0},
		{"the quick brown fox", 4},
		{"a big dog ran up", 3},
		{"!!! ??? ...", 0},
	}
	for _, tt := range tests {
		if got := meaningfulWords(tt.content); got != tt.want {
			t.Errorf("meaningfulWords(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestCalculateConfidence_WeightsRenormalized(t *testing.T) {
	mem := testMemory()

	cfg := DefaultThresholds()
	doubled := cfg
	doubled.Weights.ClaudeConfidence *= 2
	doubled.Weights.EmotionalCoherence *= 2
	doubled.Weights.RelationshipAccuracy *= 2
	doubled.Weights.TemporalConsistency *= 2
	doubled.Weights.ContentQuality *= 2

	a := CalculateConfidence(mem, cfg)
	b := CalculateConfidence(mem, doubled)
	if !closeTo(a.Overall, b.Overall) {
		t.Errorf("scaling all weights changed the overall: %f vs %f", a.Overall, b.Overall)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
