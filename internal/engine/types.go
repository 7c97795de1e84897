package engine

import "time"

// Memory is one extracted unit of emotionally relevant content. Memories are
// created upstream by the extraction pipeline; the engine only reads them.
type Memory struct {
	ID                   string                `json:"id"`
	Content              string                `json:"content"`
	Timestamp            time.Time             `json:"timestamp"`
	Tags                 []string              `json:"tags,omitempty"`
	Participants         []Participant         `json:"participants,omitempty"`
	EmotionalContext     *EmotionalContext     `json:"emotional_context,omitempty"`
	RelationshipDynamics *RelationshipDynamics `json:"relationship_dynamics,omitempty"`
	Metadata             MemoryMetadata        `json:"metadata"`
}

// Participant is a person referenced by a memory.
type Participant struct {
	ID           string `json:"id"`
	Role         string `json:"role,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// EmotionalContext carries the mood annotations the extractor attached.
// Intensity is 0–1; values outside that range are treated as absent.
type EmotionalContext struct {
	PrimaryEmotion    string   `json:"primary_emotion,omitempty"`
	Intensity         float64  `json:"intensity"`
	SecondaryEmotions []string `json:"secondary_emotions,omitempty"`
	Themes            []string `json:"themes,omitempty"`
}

// RelationshipDynamics describes how the participants interacted.
type RelationshipDynamics struct {
	InteractionQuality    string   `json:"interaction_quality,omitempty"`
	CommunicationPatterns []string `json:"communication_patterns,omitempty"`
}

// MemoryMetadata is set by the extraction pipeline.
type MemoryMetadata struct {
	ExtractionConfidence float64   `json:"extraction_confidence"` // 0–1, 0 means unreported
	ProcessedAt          time.Time `json:"processed_at"`
}

// ConfidenceScore is the engine's trust estimate for one memory.
// Overall and every factor are in [0,1].
type ConfidenceScore struct {
	Overall float64           `json:"overall"`
	Factors ConfidenceFactors `json:"factors"`
}

// ConfidenceFactors are the five inputs to the weighted confidence average.
type ConfidenceFactors struct {
	ClaudeConfidence     float64 `json:"claude_confidence"`
	EmotionalCoherence   float64 `json:"emotional_coherence"`
	RelationshipAccuracy float64 `json:"relationship_accuracy"`
	TemporalConsistency  float64 `json:"temporal_consistency"`
	ContentQuality       float64 `json:"content_quality"`
}

// SignificanceScore is the engine's emotional-importance estimate for one
// memory. Independent of confidence; used for prioritization only.
type SignificanceScore struct {
	Overall   float64             `json:"overall"`
	Factors   SignificanceFactors `json:"factors"`
	Narrative string              `json:"narrative"`
}

// SignificanceFactors are the five inputs to the significance average.
type SignificanceFactors struct {
	EmotionalIntensity       float64 `json:"emotional_intensity"`
	RelationshipImpact       float64 `json:"relationship_impact"`
	LifeEventSignificance    float64 `json:"life_event_significance"`
	ParticipantVulnerability float64 `json:"participant_vulnerability"`
	TemporalImportance       float64 `json:"temporal_importance"`
}

// Decision labels emitted by the auto-confirmation engine.
const (
	DecisionAutoApprove = "auto-approve"
	DecisionNeedsReview = "needs-review"
	DecisionAutoReject  = "auto-reject"
)

// ConfirmationResult is the engine's decision for one memory.
type ConfirmationResult struct {
	MemoryID         string          `json:"memory_id"`
	Decision         string          `json:"decision"`
	Confidence       ConfidenceScore `json:"confidence"`
	Reasons          []string        `json:"reasons"`
	SuggestedActions []string        `json:"suggested_actions,omitempty"`
}

// BatchResult collects per-memory decisions plus tallies for one batch run.
type BatchResult struct {
	Results   []ConfirmationResult `json:"results"`
	Approved  int                  `json:"approved"`
	Review    int                  `json:"review"`
	Rejected  int                  `json:"rejected"`
	Errors    int                  `json:"errors"`
	Elapsed   time.Duration        `json:"elapsed"`
	Processed int                  `json:"processed"`
}

// HumanDecision values recorded by reviewers.
const (
	HumanValidated = "validated"
	HumanRejected  = "rejected"
)

// Feedback pairs an engine decision with the human verdict on the same memory.
type Feedback struct {
	MemoryID      string          `json:"memory_id"`
	Decision      string          `json:"decision"`
	Confidence    ConfidenceScore `json:"confidence"`
	HumanDecision string          `json:"human_decision"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ValidationQueue is supplied by the caller; the engine only transforms it.
type ValidationQueue struct {
	ID        string             `json:"id"`
	Pending   []Memory           `json:"pending"`
	Resources ResourceAllocation `json:"resources"`
}

// ResourceAllocation bounds a review session.
type ResourceAllocation struct {
	AvailableMinutes   int    `json:"available_minutes"`
	ValidatorExpertise string `json:"validator_expertise"` // expert, intermediate, beginner
}

// clamp01 bounds a score to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
