package engine

import (
	"fmt"
	"log"
	"sort"
)

// Significance buckets for queue planning.
const (
	highSignificance   = 0.7
	mediumSignificance = 0.4
)

// Review-time estimates per validator expertise, in minutes per memory.
const (
	expertMinutes       = 3
	intermediateMinutes = 5
	beginnerMinutes     = 8
)

// Queue strategies.
const (
	StrategyHighFocus = "high-significance-focus"
	StrategyBalanced  = "balanced-sampling"
	StrategyWeighted  = "significance-weighted"
)

// PrioritizedMemory is one queue entry with its rank and review guidance.
type PrioritizedMemory struct {
	Memory        Memory            `json:"memory"`
	Score         SignificanceScore `json:"score"`
	PriorityRank  int               `json:"priority_rank"`
	ReviewContext ReviewContext     `json:"review_context"`
	ReviewReason  string            `json:"review_reason"`
}

// ReviewContext tells a reviewer where to focus.
type ReviewContext struct {
	FocusAreas      []string `json:"focus_areas"`
	ValidationHints []string `json:"validation_hints"`
}

// PriorityDistribution counts memories per significance bucket.
type PriorityDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// PrioritizedList is a review queue ordered by significance.
type PrioritizedList struct {
	Items        []PrioritizedMemory  `json:"items"`
	Distribution PriorityDistribution `json:"distribution"`
}

// CoverageScores summarize how much of the population's diversity a queue or
// sample touches. Each component is in [0,1].
type CoverageScores struct {
	EmotionalRange       float64 `json:"emotional_range"`
	TemporalSpan         float64 `json:"temporal_span"`
	ParticipantDiversity float64 `json:"participant_diversity"`
}

// ExpectedOutcomes estimates what working an optimized queue will yield.
type ExpectedOutcomes struct {
	EstimatedMinutes        int            `json:"estimated_minutes"`
	ExpectedAvgSignificance float64        `json:"expected_avg_significance"`
	Coverage                CoverageScores `json:"coverage"`
}

// OptimizedQueue is a time-boxed subset of a prioritized list.
type OptimizedQueue struct {
	QueueID  string              `json:"queue_id"`
	Strategy string              `json:"strategy"`
	Selected []PrioritizedMemory `json:"selected"`
	Outcomes ExpectedOutcomes    `json:"outcomes"`
}

// CreatePrioritizedList ranks scored memories for review, highest
// significance first, with dense 1-based ranks.
func CreatePrioritizedList(scored []MemorySignificance) PrioritizedList {
	items := make([]PrioritizedMemory, len(scored))
	for i, ms := range scored {
		items[i] = PrioritizedMemory{
			Memory:        ms.Memory,
			Score:         ms.Score,
			ReviewContext: reviewContext(ms.Score.Factors),
			ReviewReason:  reviewReason(ms.Score.Factors),
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score.Overall > items[j].Score.Overall
	})

	var dist PriorityDistribution
	for i := range items {
		items[i].PriorityRank = i + 1
		switch {
		case items[i].Score.Overall >= highSignificance:
			dist.High++
		case items[i].Score.Overall >= mediumSignificance:
			dist.Medium++
		default:
			dist.Low++
		}
	}

	return PrioritizedList{Items: items, Distribution: dist}
}

// reviewContext derives focus areas and hints from the factors that crossed
// their attention thresholds.
func reviewContext(f SignificanceFactors) ReviewContext {
	var ctx ReviewContext
	if f.EmotionalIntensity > 0.8 {
		ctx.FocusAreas = append(ctx.FocusAreas, "emotional accuracy")
		ctx.ValidationHints = append(ctx.ValidationHints, "confirm the recorded emotion and intensity match the content")
	}
	if f.RelationshipImpact > 0.8 {
		ctx.FocusAreas = append(ctx.FocusAreas, "relationship dynamics")
		ctx.ValidationHints = append(ctx.ValidationHints, "check the interaction quality and participant relationships")
	}
	if f.LifeEventSignificance > 0.8 {
		ctx.FocusAreas = append(ctx.FocusAreas, "life event details")
		ctx.ValidationHints = append(ctx.ValidationHints, "verify dates, people, and the nature of the event")
	}
	if f.ParticipantVulnerability > 0.7 {
		ctx.FocusAreas = append(ctx.FocusAreas, "participant wellbeing")
		ctx.ValidationHints = append(ctx.ValidationHints, "handle with care, a vulnerable participant is involved")
	}
	if len(ctx.FocusAreas) == 0 {
		ctx.FocusAreas = []string{"general accuracy"}
		ctx.ValidationHints = []string{"standard review, no single factor stands out"}
	}
	return ctx
}

// reviewReason names the single dominant factor.
func reviewReason(f SignificanceFactors) string {
	top := namedSignificanceFactors(f)[0]
	for _, nf := range namedSignificanceFactors(f)[1:] {
		if nf.value > top.value {
			top = nf
		}
	}
	return fmt.Sprintf("Prioritized for %s (%.2f).", top.name, top.value)
}

// OptimizeQueue fits a prioritized list into the queue's time budget using
// one of three selection strategies.
func OptimizeQueue(queue ValidationQueue, list PrioritizedList) OptimizedQueue {
	perRecord := minutesPerRecord(queue.Resources.ValidatorExpertise)
	maxRecords := queue.Resources.AvailableMinutes / perRecord
	if maxRecords < 0 {
		maxRecords = 0
	}

	total := len(list.Items)
	highShare := 0.0
	if total > 0 {
		highShare = float64(list.Distribution.High) / float64(total)
	}

	var strategy string
	var selected []PrioritizedMemory
	switch {
	case highShare > 0.3:
		strategy = StrategyHighFocus
		selected = selectHighFocus(list, maxRecords)
	case queue.Resources.AvailableMinutes < 60:
		strategy = StrategyBalanced
		selected = selectBalanced(list, maxRecords)
	default:
		strategy = StrategyWeighted
		selected = topN(list.Items, maxRecords)
	}

	log.Printf("priority: queue %s: %s selected %d of %d (budget %d min, %d min/record)",
		queue.ID, strategy, len(selected), total, queue.Resources.AvailableMinutes, perRecord)

	return OptimizedQueue{
		QueueID:  queue.ID,
		Strategy: strategy,
		Selected: selected,
		Outcomes: expectedOutcomes(selected, perRecord),
	}
}

func minutesPerRecord(expertise string) int {
	switch expertise {
	case "expert":
		return expertMinutes
	case "beginner":
		return beginnerMinutes
	default:
		return intermediateMinutes
	}
}

// selectHighFocus keeps only high-significance memories, capped at max.
func selectHighFocus(list PrioritizedList, max int) []PrioritizedMemory {
	var out []PrioritizedMemory
	for _, item := range list.Items {
		if item.Score.Overall < highSignificance {
			continue
		}
		out = append(out, item)
		if len(out) >= max {
			break
		}
	}
	return out
}

// selectBalanced fills 40%/40%/20% of the budget from the high/medium/low
// buckets, topping up from the remaining ranked items so a short bucket never
// wastes budget.
func selectBalanced(list PrioritizedList, max int) []PrioritizedMemory {
	if max <= 0 {
		return nil
	}

	var high, medium, low []PrioritizedMemory
	for _, item := range list.Items {
		switch {
		case item.Score.Overall >= highSignificance:
			high = append(high, item)
		case item.Score.Overall >= mediumSignificance:
			medium = append(medium, item)
		default:
			low = append(low, item)
		}
	}

	taken := make(map[string]bool)
	var out []PrioritizedMemory
	take := func(bucket []PrioritizedMemory, n int) {
		for _, item := range bucket {
			if n <= 0 || len(out) >= max {
				return
			}
			out = append(out, item)
			taken[item.Memory.ID] = true
			n--
		}
	}

	take(high, max*40/100)
	take(medium, max*40/100)
	take(low, max*20/100)

	// Top up any shortfall in rank order.
	for _, item := range list.Items {
		if len(out) >= max {
			break
		}
		if !taken[item.Memory.ID] {
			out = append(out, item)
			taken[item.Memory.ID] = true
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityRank < out[j].PriorityRank })
	return out
}

func topN(items []PrioritizedMemory, n int) []PrioritizedMemory {
	if n > len(items) {
		n = len(items)
	}
	if n < 0 {
		n = 0
	}
	return items[:n]
}

// expectedOutcomes estimates time, average significance, and coverage for a
// selection.
func expectedOutcomes(selected []PrioritizedMemory, perRecord int) ExpectedOutcomes {
	out := ExpectedOutcomes{EstimatedMinutes: len(selected) * perRecord}
	if len(selected) == 0 {
		return out
	}

	sum := 0.0
	memories := make([]Memory, len(selected))
	for i, item := range selected {
		sum += item.Score.Overall
		memories[i] = item.Memory
	}
	out.ExpectedAvgSignificance = sum / float64(len(selected))
	out.Coverage = coverageScores(memories)
	return out
}

// coverageScores measures emotional, temporal, and participant spread.
// Normalization constants: 10 distinct emotions, a one-year span, and 20
// distinct participants each count as full coverage.
func coverageScores(memories []Memory) CoverageScores {
	emotions := make(map[string]bool)
	participants := make(map[string]bool)
	var earliest, latest int64
	for _, mem := range memories {
		if ec := mem.EmotionalContext; ec != nil && ec.PrimaryEmotion != "" {
			emotions[ec.PrimaryEmotion] = true
		}
		for _, p := range mem.Participants {
			if p.ID != "" {
				participants[p.ID] = true
			}
		}
		if mem.Timestamp.IsZero() {
			continue
		}
		ts := mem.Timestamp.Unix()
		if earliest == 0 || ts < earliest {
			earliest = ts
		}
		if ts > latest {
			latest = ts
		}
	}

	spanDays := 0.0
	if earliest > 0 && latest > earliest {
		spanDays = float64(latest-earliest) / (24 * 60 * 60)
	}

	return CoverageScores{
		EmotionalRange:       clamp01(float64(len(emotions)) / 10),
		TemporalSpan:         clamp01(spanDays / 365),
		ParticipantDiversity: clamp01(float64(len(participants)) / 20),
	}
}
