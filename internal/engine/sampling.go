package engine

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// SamplingStrategy describes how to draw a validation sample. A zero Seed
// means non-reproducible sampling; any other seed drives a deterministic
// generator so a run can be replayed.
type SamplingStrategy struct {
	Name                   string  `json:"name"`
	TargetSize             int     `json:"target_size"`
	StratifyByEmotion      bool    `json:"stratify_by_emotion"`
	StratifyByTime         bool    `json:"stratify_by_time"`
	StratifyByParticipants bool    `json:"stratify_by_participants"`
	StratifyByQuality      bool    `json:"stratify_by_quality"`
	Seed                   int64   `json:"seed,omitempty"`
	ExpectedCoverage       float64 `json:"expected_coverage"`
}

// CoverageReport grades how representative a sample is.
type CoverageReport struct {
	Overall float64        `json:"overall"`
	Scores  CoverageScores `json:"scores"`
	Gaps    []string       `json:"gaps,omitempty"`
}

// SampleResult is a drawn sample plus the strategy and coverage behind it.
type SampleResult struct {
	Sample   []Memory         `json:"sample"`
	Strategy SamplingStrategy `json:"strategy"`
	Coverage CoverageReport   `json:"coverage"`
}

// sampler abstracts the random source so seeded runs are reproducible.
type sampler interface {
	Intn(n int) int
}

// lcg is a small linear-congruential generator. Numerical Recipes constants;
// the point is reproducibility across runs, not statistical quality.
type lcg struct {
	state uint32
}

func newLCG(seed int64) *lcg {
	return &lcg{state: uint32(seed)}
}

func (l *lcg) Intn(n int) int {
	l.state = l.state*1664525 + 1013904223
	return int(l.state % uint32(n))
}

func newSampler(strategy SamplingStrategy) sampler {
	if strategy.Seed != 0 {
		return newLCG(strategy.Seed)
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// SampleForValidation draws a representative subset of the population. When
// the strategy names stratification dimensions the sample preserves stratum
// proportions; shortfall is backfilled randomly from the unused pool. The
// result holds exactly min(TargetSize, len(population)) memories with no
// duplicate ids.
func SampleForValidation(population []Memory, strategy SamplingStrategy) SampleResult {
	target := strategy.TargetSize
	if target > len(population) {
		target = len(population)
	}
	if target < 0 {
		target = 0
	}

	rng := newSampler(strategy)

	var sample []Memory
	if stratified(strategy) {
		sample = stratifiedSample(population, strategy, target, rng)
	} else {
		sample = randomSample(population, target, rng)
	}

	report := AnalyzeCoverage(sample)
	log.Printf("sample: %s drew %d of %d (coverage %.2f)",
		strategy.Name, len(sample), len(population), report.Overall)

	return SampleResult{Sample: sample, Strategy: strategy, Coverage: report}
}

func stratified(s SamplingStrategy) bool {
	return s.StratifyByEmotion || s.StratifyByTime || s.StratifyByParticipants || s.StratifyByQuality
}

// stratumKey is the pipe-joined concatenation of the active dimension labels.
func stratumKey(mem Memory, strategy SamplingStrategy, now time.Time) string {
	var parts []string
	if strategy.StratifyByEmotion {
		label := "none"
		if ec := mem.EmotionalContext; ec != nil && ec.PrimaryEmotion != "" {
			label = strings.ToLower(ec.PrimaryEmotion)
		}
		parts = append(parts, label)
	}
	if strategy.StratifyByTime {
		parts = append(parts, timeBucket(mem.Timestamp, now))
	}
	if strategy.StratifyByParticipants {
		parts = append(parts, participantBucket(len(mem.Participants)))
	}
	if strategy.StratifyByQuality {
		parts = append(parts, qualityBucket(mem.Metadata.ExtractionConfidence))
	}
	return strings.Join(parts, "|")
}

func timeBucket(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "undated"
	}
	age := now.Sub(ts)
	switch {
	case age <= 30*24*time.Hour:
		return "last-month"
	case age <= 90*24*time.Hour:
		return "last-quarter"
	case age <= 365*24*time.Hour:
		return "last-year"
	default:
		return "older"
	}
}

func participantBucket(n int) string {
	switch {
	case n <= 1:
		return "solo"
	case n == 2:
		return "pair"
	default:
		return "group"
	}
}

func qualityBucket(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "high-quality"
	case confidence >= 0.5:
		return "mid-quality"
	default:
		return "low-quality"
	}
}

// stratifiedSample allocates per-stratum targets proportional to stratum
// population, draws randomly within each stratum, then backfills any
// shortfall from the unused pool.
func stratifiedSample(population []Memory, strategy SamplingStrategy, target int, rng sampler) []Memory {
	now := time.Now()
	strata := make(map[string][]int)
	for i, mem := range population {
		key := stratumKey(mem, strategy, now)
		strata[key] = append(strata[key], i)
	}

	// Deterministic stratum order so seeded runs replay exactly.
	keys := make([]string, 0, len(strata))
	for k := range strata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := make(map[int]bool)
	var picked []int
	for _, key := range keys {
		members := strata[key]
		share := target * len(members) / len(population)
		for _, idx := range shuffledPrefix(members, share, rng) {
			picked = append(picked, idx)
			used[idx] = true
		}
	}

	// Proportional floors under-fill; backfill randomly from whatever is left.
	var unused []int
	for i := range population {
		if !used[i] {
			unused = append(unused, i)
		}
	}
	for _, idx := range shuffledPrefix(unused, target-len(picked), rng) {
		picked = append(picked, idx)
	}

	if len(picked) > target {
		picked = picked[:target]
	}
	out := make([]Memory, len(picked))
	for i, idx := range picked {
		out[i] = population[idx]
	}
	return out
}

func randomSample(population []Memory, target int, rng sampler) []Memory {
	indices := make([]int, len(population))
	for i := range indices {
		indices[i] = i
	}
	out := make([]Memory, 0, target)
	for _, idx := range shuffledPrefix(indices, target, rng) {
		out = append(out, population[idx])
	}
	return out
}

// shuffledPrefix partially Fisher-Yates shuffles values and returns the first
// n entries. values is modified in place.
func shuffledPrefix(values []int, n int, rng sampler) []int {
	if n > len(values) {
		n = len(values)
	}
	if n <= 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(values)-i)
		values[i], values[j] = values[j], values[i]
	}
	return values[:n]
}

// AnalyzeCoverage grades a sample's emotional, temporal, and participant
// spread and names the dimensions that fall short.
func AnalyzeCoverage(sample []Memory) CoverageReport {
	scores := coverageScores(sample)
	report := CoverageReport{
		Overall: (scores.EmotionalRange + scores.TemporalSpan + scores.ParticipantDiversity) / 3,
		Scores:  scores,
	}
	if scores.EmotionalRange < 0.5 {
		report.Gaps = append(report.Gaps, "narrow emotional range")
	}
	if scores.TemporalSpan < 0.5 {
		report.Gaps = append(report.Gaps, "short temporal span")
	}
	if scores.ParticipantDiversity < 0.5 {
		report.Gaps = append(report.Gaps, "few distinct participants")
	}
	return report
}

// EnsureRepresentativeCoverage re-grades an existing sample and flags — but
// does not correct — coverage below the acceptable bar.
func EnsureRepresentativeCoverage(sample []Memory) CoverageReport {
	report := AnalyzeCoverage(sample)
	if report.Overall < 0.7 {
		log.Printf("sample: coverage %.2f below 0.70: %s",
			report.Overall, strings.Join(report.Gaps, ", "))
	}
	return report
}

// OptimizeValidationEfficiency picks a sampling strategy for a dataset based
// on its size and diversity.
func OptimizeValidationEfficiency(dataset []Memory) SamplingStrategy {
	scores := coverageScores(dataset)

	target := len(dataset) / 10
	if target < 50 {
		target = 50
	}
	if target > 500 {
		target = 500
	}
	if target > len(dataset) {
		target = len(dataset)
	}

	switch {
	case len(dataset) < 100:
		return SamplingStrategy{
			Name:             "simple-random",
			TargetSize:       target,
			ExpectedCoverage: 0.8,
		}
	case scores.EmotionalRange > 0.7 && scores.TemporalSpan > 0.7:
		return SamplingStrategy{
			Name:                   "balanced-stratified",
			TargetSize:             target,
			StratifyByEmotion:      true,
			StratifyByTime:         true,
			StratifyByParticipants: true,
			StratifyByQuality:      true,
			ExpectedCoverage:       0.85,
		}
	default:
		return SamplingStrategy{
			Name:              "stratified",
			TargetSize:        target,
			StratifyByEmotion: true,
			StratifyByTime:    true,
			ExpectedCoverage:  0.75,
		}
	}
}

// String implements fmt.Stringer for log lines.
func (s SamplingStrategy) String() string {
	return fmt.Sprintf("%s(target=%d)", s.Name, s.TargetSize)
}
