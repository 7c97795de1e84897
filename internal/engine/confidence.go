package engine

import (
	"strings"
	"time"
	"unicode"
)

// Content quality bounds. Shorter records carry too little signal to trust;
// longer ones are almost always transcript dumps the extractor failed to cut.
const (
	minContentChars    = 20
	maxContentChars    = 5000
	minMeaningfulWords = 5
	maxSaneMemoryAge   = 10 * 365 * 24 * time.Hour
)

// CalculateConfidence scores how trustworthy one memory looks. Pure function
// of the record and the supplied config; no I/O, no shared state. Callers
// running a batch must pass the same config snapshot for every record.
func CalculateConfidence(mem Memory, cfg ThresholdConfig) ConfidenceScore {
	f := ConfidenceFactors{
		ClaudeConfidence:     claudeConfidence(mem),
		EmotionalCoherence:   emotionalCoherence(mem),
		RelationshipAccuracy: relationshipAccuracy(mem),
		TemporalConsistency:  temporalConsistency(mem),
		ContentQuality:       contentQuality(mem),
	}

	w := cfg.Weights
	total := w.Total()
	overall := 0.0
	if total > 0 {
		overall = (f.ClaudeConfidence*w.ClaudeConfidence +
			f.EmotionalCoherence*w.EmotionalCoherence +
			f.RelationshipAccuracy*w.RelationshipAccuracy +
			f.TemporalConsistency*w.TemporalConsistency +
			f.ContentQuality*w.ContentQuality) / total
	}

	return ConfidenceScore{Overall: clamp01(overall), Factors: f}
}

// claudeConfidence passes through the extractor's self-reported confidence,
// falling back to a neutral 0.5 when it was never set.
func claudeConfidence(mem Memory) float64 {
	c := mem.Metadata.ExtractionConfidence
	if c <= 0 {
		return 0.5
	}
	return clamp01(c)
}

// emotionalCoherence checks whether the mood annotations hang together:
// a primary emotion backed by secondaries, a usable intensity, and themes.
func emotionalCoherence(mem Memory) float64 {
	ec := mem.EmotionalContext
	if ec == nil {
		return 0.3
	}

	score := 0.5
	if ec.PrimaryEmotion != "" && len(ec.SecondaryEmotions) > 0 {
		score += 0.2
	}
	if ec.Intensity > 0 && ec.Intensity <= 1 {
		score += 0.15
	}
	if len(ec.Themes) > 0 {
		score += 0.15
	}
	return clamp01(score)
}

// relationshipAccuracy checks how well the interaction is documented.
func relationshipAccuracy(mem Memory) float64 {
	rd := mem.RelationshipDynamics
	if rd == nil {
		return 0.4
	}

	score := 0.5
	if len(rd.CommunicationPatterns) > 0 {
		score += 0.2
	}
	if rd.InteractionQuality != "" {
		score += 0.15
	}
	if len(mem.Participants) > 1 {
		score += 0.15
	}
	return clamp01(score)
}

// temporalConsistency sanity-checks the memory's timestamp against its
// processing time and a plausible age window. A missing timestamp collapses
// the score — the extractor should always set one.
func temporalConsistency(mem Memory) float64 {
	if mem.Timestamp.IsZero() {
		return 0.3
	}

	score := 0.7
	if !mem.Metadata.ProcessedAt.IsZero() && !mem.Timestamp.After(mem.Metadata.ProcessedAt) {
		score += 0.15
	}
	now := time.Now()
	if !mem.Timestamp.After(now) && now.Sub(mem.Timestamp) <= maxSaneMemoryAge {
		score += 0.15
	}
	return clamp01(score)
}

// contentQuality rewards records with substantive, taggable content.
func contentQuality(mem Memory) float64 {
	score := 0.5
	n := len(mem.Content)
	if n >= minContentChars && n <= maxContentChars {
		score += 0.2
	}
	if meaningfulWords(mem.Content) >= minMeaningfulWords {
		score += 0.15
	}
	if len(mem.Tags) >= 1 && len(mem.Tags) <= 10 {
		score += 0.15
	}
	return clamp01(score)
}

// meaningfulWords counts tokens with at least three letters, skipping
// punctuation runs and stray particles.
func meaningfulWords(content string) int {
	count := 0
	for _, tok := range strings.Fields(content) {
		letters := 0
		for _, r := range tok {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 3 {
			count++
		}
	}
	return count
}
