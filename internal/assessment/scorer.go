package assessment

import (
	"math"
	"strings"
)

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

const (
	minTotalScore = 0.0
	maxTotalScore = 10.0

	cigarettesPerPack = 20.0

	defaultCigarettesPerDay = 15
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Tier is the ordered dependence classification. Values are stored as-is in
// the assessments table.
type Tier string

const (
	TierVeryLow  Tier = "very_low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
	TierVeryHigh Tier = "very_high"
)

// AddictionLevel is the classification attached to a total score. Label and
// Description are display data.
type AddictionLevel struct {
	Tier        Tier   `json:"tier"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var (
	levelVeryLow = AddictionLevel{
		Tier:        TierVeryLow,
		Label:       "Very Low Nicotine Dependence",
		Description: "Your physical dependence is low. Changing routines and triggers is usually enough; most people at this level quit without medication.",
	}
	levelModerate = AddictionLevel{
		Tier:        TierModerate,
		Label:       "Moderate Nicotine Dependence",
		Description: "You have a moderate dependence. Set a quit date, plan for cravings and consider nicotine replacement during the first weeks.",
	}
	levelHigh = AddictionLevel{
		Tier:        TierHigh,
		Label:       "High Nicotine Dependence",
		Description: "Your dependence is high. Combine nicotine replacement or medication with regular coach support to manage withdrawal.",
	}
	levelVeryHigh = AddictionLevel{
		Tier:        TierVeryHigh,
		Label:       "Very High Nicotine Dependence",
		Description: "Your dependence is very high. Talk to a doctor about medication and work closely with a coach; a gradual reduction plan is recommended.",
	}
)

// SurveyAnswer is one respondent's choice for one question. OptionID is the
// preferred match key; OptionText is only consulted when OptionID is empty or
// unknown.
type SurveyAnswer struct {
	QuestionID int    `json:"question_id"`
	OptionID   string `json:"option_id,omitempty"`
	OptionText string `json:"option_text,omitempty"`
}

// ScoredAnswer is a SurveyAnswer resolved against the catalog. Recognized is
// false when the option matched nothing; such answers carry weight 0.
type ScoredAnswer struct {
	QuestionID int     `json:"question_id"`
	OptionID   string  `json:"option_id"`
	OptionText string  `json:"option_text"`
	Weight     float64 `json:"weight"`
	Recognized bool    `json:"recognized"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// ClassifyAddiction maps a clamped total score to a dependence level.
//
// The bands are [0,3], [3.5,6.5] and [7,9.5]. Scores in the gaps (3,3.5) and
// (6.5,7), and anything above 9.5, fall through to the very-high level.
func ClassifyAddiction(totalScore float64) AddictionLevel {
	switch {
	case totalScore >= 0 && totalScore <= 3:
		return levelVeryLow
	case totalScore >= 3.5 && totalScore <= 6.5:
		return levelModerate
	case totalScore >= 7 && totalScore <= 9.5:
		return levelHigh
	default:
		return levelVeryHigh
	}
}

// ComputeTotalScore sums the catalog weight of every answer and clamps the
// result to [0, 10]. Answers whose option cannot be resolved contribute 0 and
// are returned with Recognized=false; completeness is the caller's concern.
func ComputeTotalScore(c *Catalog, answers []SurveyAnswer) (float64, []ScoredAnswer) {
	scored := make([]ScoredAnswer, 0, len(answers))
	total := 0.0

	for _, a := range answers {
		sa := ScoredAnswer{
			QuestionID: a.QuestionID,
			OptionID:   a.OptionID,
			OptionText: a.OptionText,
		}
		if opt, ok := c.lookup(a.QuestionID, a.OptionID, a.OptionText); ok {
			sa.OptionID = opt.ID
			sa.OptionText = opt.Label
			sa.Weight = opt.Weight
			sa.Recognized = true
			total += opt.Weight
		}
		scored = append(scored, sa)
	}

	return clampFloat(total, minTotalScore, maxTotalScore), scored
}

// DerivePackYear returns (cigarettesPerDay / 20) × yearsSmoked.
func DerivePackYear(cigarettesPerDay, yearsSmoked int) float64 {
	return float64(cigarettesPerDay) / cigarettesPerPack * float64(yearsSmoked)
}

// EstimateCigarettesPerDay maps the consumption band label to a point
// estimate. The built-in catalog's option IDs are accepted as aliases for
// raw answers; anything else yields 15.
func EstimateCigarettesPerDay(answer string) int {
	switch strings.TrimSpace(answer) {
	case BandUpTo10, "q3_le10":
		return 8
	case Band11To20, "q3_11_20":
		return 15
	case Band21To30, "q3_21_30":
		return 25
	case Band31OrMore, "q3_ge31":
		return 35
	default:
		return defaultCigarettesPerDay
	}
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundTo2Decimals rounds v to two decimal places.
func roundTo2Decimals(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundMoney rounds a currency amount to the nearest whole unit.
func roundMoney(v float64) int64 {
	return int64(math.Round(v))
}
