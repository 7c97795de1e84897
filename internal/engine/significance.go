package engine

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Significance factor weights. Fixed by design — significance ranks the
// review queue, it never accepts or rejects, so it does not participate in
// the feedback calibration loop. Treat as tuning defaults.
const (
	sigWeightIntensity     = 0.30
	sigWeightRelationship  = 0.25
	sigWeightLifeEvent     = 0.20
	sigWeightVulnerability = 0.15
	sigWeightTemporal      = 0.10
)

// Vocabularies for the keyword heuristics. Matching is case-insensitive
// substring matching over content, tags, themes, roles, and relationships.
var (
	heavyThemes = []string{
		"grief", "loss", "trauma", "death", "love", "fear", "betrayal", "joy",
	}

	lifeEventTerms = []string{
		"wedding", "married", "funeral", "birth", "born", "died", "death",
		"divorce", "graduation", "graduated", "diagnosis", "diagnosed",
		"moved", "new job", "fired", "breakup", "broke up", "anniversary",
		"retirement", "retired", "engaged", "pregnant",
	}

	vulnerableRoles = []string{
		"child", "minor", "patient", "elderly", "dependent",
	}

	vulnerableRelationships = []string{
		"caregiver", "therapist", "guardian", "nurse", "counselor",
	}

	distressThemes = []string{
		"grief", "fear", "anxiety", "depression", "crisis", "abuse",
	}

	closeRelationships = []string{
		"partner", "spouse", "wife", "husband", "parent", "mother", "father",
		"child", "son", "daughter", "sibling", "best friend", "family",
	}
)

// MemorySignificance pairs a memory with its significance score.
type MemorySignificance struct {
	Memory Memory            `json:"memory"`
	Score  SignificanceScore `json:"score"`
}

// CalculateSignificance scores a memory's emotional importance. Pure function
// of the record; independent of the confidence path.
func CalculateSignificance(mem Memory) SignificanceScore {
	f := SignificanceFactors{
		EmotionalIntensity:       emotionalIntensity(mem),
		RelationshipImpact:       relationshipImpact(mem),
		LifeEventSignificance:    lifeEventSignificance(mem),
		ParticipantVulnerability: participantVulnerability(mem),
		TemporalImportance:       temporalImportance(mem, time.Now()),
	}

	overall := clamp01(f.EmotionalIntensity*sigWeightIntensity +
		f.RelationshipImpact*sigWeightRelationship +
		f.LifeEventSignificance*sigWeightLifeEvent +
		f.ParticipantVulnerability*sigWeightVulnerability +
		f.TemporalImportance*sigWeightTemporal)

	return SignificanceScore{
		Overall:   overall,
		Factors:   f,
		Narrative: narrative(overall, f),
	}
}

// PrioritizeMemories scores a batch. A record that fails scoring gets a fixed
// low-significance fallback rather than aborting the batch.
func PrioritizeMemories(memories []Memory) []MemorySignificance {
	out := make([]MemorySignificance, 0, len(memories))
	for _, mem := range memories {
		score, err := significanceSafe(mem)
		if err != nil {
			log.Printf("significance: memory %s: %v", mem.ID, err)
			score = fallbackSignificance()
		}
		out = append(out, MemorySignificance{Memory: mem, Score: score})
	}
	return out
}

// significanceFn is the scoring hook; tests swap it to exercise the failure
// isolation path.
var significanceFn = CalculateSignificance

func significanceSafe(mem Memory) (score SignificanceScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()
	return significanceFn(mem), nil
}

// fallbackSignificance is the score assigned when scoring itself failed:
// low across the board so the record sinks in the queue instead of vanishing.
func fallbackSignificance() SignificanceScore {
	return SignificanceScore{
		Overall: 0.3,
		Factors: SignificanceFactors{
			EmotionalIntensity:       0.3,
			RelationshipImpact:       0.3,
			LifeEventSignificance:    0.3,
			ParticipantVulnerability: 0.3,
			TemporalImportance:       0.3,
		},
		Narrative: "Scoring failed; assigned default low significance.",
	}
}

// emotionalIntensity leans on the extractor's intensity reading, boosted by
// emotional breadth (secondary emotions) and heavy themes.
func emotionalIntensity(mem Memory) float64 {
	ec := mem.EmotionalContext
	if ec == nil {
		return 0.2
	}

	score := clamp01(ec.Intensity)
	bonus := 0.05 * float64(len(ec.SecondaryEmotions))
	if bonus > 0.15 {
		bonus = 0.15
	}
	score += bonus
	if matchesAny(ec.Themes, heavyThemes) {
		score += 0.1
	}
	return clamp01(score)
}

// relationshipImpact estimates how much the memory matters to a relationship.
func relationshipImpact(mem Memory) float64 {
	score := 0.3
	if rd := mem.RelationshipDynamics; rd != nil {
		score += 0.2
		if rd.InteractionQuality != "" {
			score += 0.1
		}
	}
	for _, p := range mem.Participants {
		if containsTerm(p.Relationship, closeRelationships) {
			score += 0.2
			break
		}
	}
	if len(mem.Participants) > 2 {
		score += 0.1
	}
	return clamp01(score)
}

// lifeEventSignificance matches content and tags against the life-event
// vocabulary.
func lifeEventSignificance(mem Memory) float64 {
	score := 0.2
	if containsTerm(mem.Content, lifeEventTerms) {
		score += 0.3
	}
	if matchesAny(mem.Tags, lifeEventTerms) {
		score += 0.2
	}
	if ec := mem.EmotionalContext; ec != nil && matchesAny(ec.Themes, lifeEventTerms) {
		score += 0.15
	}
	return clamp01(score)
}

// participantVulnerability flags memories involving people who need extra
// care in review.
func participantVulnerability(mem Memory) float64 {
	score := 0.2
	for _, p := range mem.Participants {
		if containsTerm(p.Role, vulnerableRoles) {
			score += 0.25
			break
		}
	}
	for _, p := range mem.Participants {
		if containsTerm(p.Relationship, vulnerableRelationships) {
			score += 0.25
			break
		}
	}
	if ec := mem.EmotionalContext; ec != nil && matchesAny(ec.Themes, distressThemes) {
		score += 0.2
	}
	return clamp01(score)
}

// temporalImportance gives recency and special-date bonuses. now is passed in
// so tests can pin it.
func temporalImportance(mem Memory, now time.Time) float64 {
	if mem.Timestamp.IsZero() {
		return 0.3
	}

	score := 0.3
	age := now.Sub(mem.Timestamp)
	switch {
	case age >= 0 && age <= 30*24*time.Hour:
		score += 0.2
	case age >= 0 && age <= 90*24*time.Hour:
		score += 0.1
	}
	switch mem.Timestamp.Weekday() {
	case time.Saturday, time.Sunday:
		score += 0.15
	}
	if isHoliday(mem.Timestamp) {
		score += 0.15
	}
	return clamp01(score)
}

// isHoliday covers the fixed-date occasions people tend to form strong
// memories around.
func isHoliday(t time.Time) bool {
	switch {
	case t.Month() == time.January && t.Day() == 1:
		return true
	case t.Month() == time.February && t.Day() == 14:
		return true
	case t.Month() == time.October && t.Day() == 31:
		return true
	case t.Month() == time.December && t.Day() >= 24 && t.Day() <= 26:
		return true
	case t.Month() == time.December && t.Day() == 31:
		return true
	}
	return false
}

// narrative explains the score in one or two sentences, naming the dominant
// factors above the 0.6 bar.
func narrative(overall float64, f SignificanceFactors) string {
	dominant := dominantFactors(f)

	var level string
	switch {
	case overall >= 0.7 || (len(dominant) > 0 && dominant[0].value > 0.8):
		level = "This memory is highly significant"
	case overall >= 0.4:
		level = "This memory is moderately significant"
	default:
		level = "This memory has low emotional significance"
	}

	if len(dominant) == 0 {
		return level + "."
	}
	if len(dominant) == 1 {
		return fmt.Sprintf("%s, driven by %s.", level, dominant[0].name)
	}
	return fmt.Sprintf("%s, driven by %s and %s.", level, dominant[0].name, dominant[1].name)
}

// dominantFactors returns up to two factors above 0.6, strongest first.
func dominantFactors(f SignificanceFactors) []namedFactor {
	all := namedSignificanceFactors(f)
	var top []namedFactor
	for _, nf := range all {
		if nf.value > 0.6 {
			top = append(top, nf)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].value > top[j].value })
	if len(top) > 2 {
		top = top[:2]
	}
	return top
}

func namedSignificanceFactors(f SignificanceFactors) []namedFactor {
	return []namedFactor{
		{"intense emotional content", f.EmotionalIntensity},
		{"relationship impact", f.RelationshipImpact},
		{"a major life event", f.LifeEventSignificance},
		{"participant vulnerability", f.ParticipantVulnerability},
		{"temporal importance", f.TemporalImportance},
	}
}

// matchesAny reports whether any entry in values contains any vocabulary term.
func matchesAny(values, terms []string) bool {
	for _, v := range values {
		if containsTerm(v, terms) {
			return true
		}
	}
	return false
}

// containsTerm reports whether s contains any term, case-insensitively.
func containsTerm(s string, terms []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
