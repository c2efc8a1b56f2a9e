package assessment

import "math"

// Health cost multipliers by smoking tenure, and the flat incidental share.
const (
	healthMultiplierLong   = 0.8 // > 10 years
	healthMultiplierMedium = 0.5 // > 5 years
	healthMultiplierShort  = 0.3 // ≤ 5 years
	otherCostMultiplier    = 0.2

	successBase = 35.0
	successMin  = 10.0
	successMax  = 90.0
)

// Motivation is the reason a member gives for quitting. Values are the
// labels the survey UI submits.
type Motivation string

const (
	MotivationHealth         Motivation = "Cải thiện sức khỏe"
	MotivationMoney          Motivation = "Tiết kiệm tiền"
	MotivationFamily         Motivation = "Gia đình"
	MotivationSocialPressure Motivation = "Áp lực xã hội"
	MotivationOther          Motivation = "Khác"
)

// Motivations lists the known categories in display order.
func Motivations() []Motivation {
	return []Motivation{MotivationHealth, MotivationMoney, MotivationFamily, MotivationSocialPressure, MotivationOther}
}

var motivationBonus = map[Motivation]float64{
	MotivationHealth:         15,
	MotivationMoney:          10,
	MotivationFamily:         12,
	MotivationSocialPressure: 5,
	MotivationOther:          8,
}

const defaultMotivationBonus = 8.0

// CostBreakdown splits the daily cost into its components. Each field is
// rounded independently.
type CostBreakdown struct {
	Tobacco int64 `json:"tobacco"`
	Health  int64 `json:"health"`
	Other   int64 `json:"other"`
}

// SavingsProjection is the money a member stops spending by quitting, in the
// same currency unit as the package price.
type SavingsProjection struct {
	Daily     int64         `json:"daily"`
	Weekly    int64         `json:"weekly"`
	Monthly   int64         `json:"monthly"`
	Yearly    int64         `json:"yearly"`
	Breakdown CostBreakdown `json:"breakdown"`
}

// ComputeSavings projects the cost of continuing to smoke. Tobacco cost is
// packs per day × package price; health cost is a tenure-tiered multiple of
// tobacco cost; other cost is a flat 20% of tobacco cost. Weekly, monthly and
// yearly figures are derived from the unrounded daily total.
func ComputeSavings(cigarettesPerDay int, packagePrice float64, yearsSmoked int) SavingsProjection {
	tobacco := float64(cigarettesPerDay) / cigarettesPerPack * packagePrice

	var health float64
	switch {
	case yearsSmoked > 10:
		health = tobacco * healthMultiplierLong
	case yearsSmoked > 5:
		health = tobacco * healthMultiplierMedium
	default:
		health = tobacco * healthMultiplierShort
	}

	other := tobacco * otherCostMultiplier
	daily := tobacco + health + other

	return SavingsProjection{
		Daily:   roundMoney(daily),
		Weekly:  roundMoney(daily * 7),
		Monthly: roundMoney(daily * 30),
		Yearly:  roundMoney(daily * 365),
		Breakdown: CostBreakdown{
			Tobacco: roundMoney(tobacco),
			Health:  roundMoney(health),
			Other:   roundMoney(other),
		},
	}
}

// SuccessFactors are the inputs of EstimateSuccessProbability.
type SuccessFactors struct {
	TotalScore       float64
	CigarettesPerDay int
	YearsSmoked      int
	Age              int
	PackYear         float64
	Motivation       Motivation
	MonthlySavings   int64
}

// EstimateSuccessProbability is an additive heuristic: a base of 35 plus one
// independent adjustment per factor, clamped to [10, 90] and rounded. Each
// factor's contribution is available separately from SuccessAdjustments.
func EstimateSuccessProbability(f SuccessFactors) int {
	total := successBase
	for _, adj := range SuccessAdjustments(f) {
		total += adj.Points
	}
	return int(math.Round(clampFloat(total, successMin, successMax)))
}

// Adjustment is one factor's contribution to the success estimate.
type Adjustment struct {
	Factor string  `json:"factor"`
	Points float64 `json:"points"`
}

// SuccessAdjustments returns the per-factor contributions in the fixed
// application order: dependence, age, pack-year, motivation, savings,
// cigarettes per day.
func SuccessAdjustments(f SuccessFactors) []Adjustment {
	return []Adjustment{
		{Factor: "dependence", Points: dependencePoints(f.TotalScore)},
		{Factor: "age", Points: agePoints(f.Age)},
		{Factor: "pack_year", Points: packYearPoints(f.PackYear)},
		{Factor: "motivation", Points: motivationPoints(f.Motivation)},
		{Factor: "savings", Points: savingsPoints(f.MonthlySavings)},
		{Factor: "cigarettes_per_day", Points: cigarettePoints(f.CigarettesPerDay)},
	}
}

func dependencePoints(score float64) float64 {
	switch {
	case score <= 3:
		return 30
	case score <= 6:
		return 15
	case score <= 8:
		return -10
	default:
		return -25
	}
}

func agePoints(age int) float64 {
	switch {
	case age < 25:
		return 25
	case age < 35:
		return 20
	case age < 45:
		return 10
	case age < 55:
		return 5
	case age < 65:
		return -5
	default:
		return -15
	}
}

func packYearPoints(packYear float64) float64 {
	switch {
	case packYear < 3:
		return 20
	case packYear < 10:
		return 10
	case packYear < 20:
		return 0
	case packYear < 40:
		return -10
	default:
		return -20
	}
}

func motivationPoints(m Motivation) float64 {
	if v, ok := motivationBonus[m]; ok {
		return v
	}
	return defaultMotivationBonus
}

func savingsPoints(monthly int64) float64 {
	switch {
	case monthly > 1_000_000:
		return 10
	case monthly > 500_000:
		return 5
	case monthly > 200_000:
		return 2
	default:
		return 0
	}
}

func cigarettePoints(perDay int) float64 {
	switch {
	case perDay > 30:
		return -15
	case perDay > 20:
		return -8
	case perDay <= 10:
		return 10
	default:
		return 0
	}
}
