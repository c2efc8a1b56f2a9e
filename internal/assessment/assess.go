package assessment

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

const (
	minAge         = 15
	maxAge         = 100
	minYearsSmoked = 1
	maxYearsSmoked = 70

	// Keeps every savings figure well inside int64 and the NUMERIC(12,2)
	// package_price column.
	maxPackagePrice = 10_000_000
)

// Input is everything one assessment needs. The HTTP layer is responsible for
// JSON shape; Assess checks ranges and cross-field consistency.
type Input struct {
	Answers      []SurveyAnswer `json:"answers"`
	YearsSmoked  int            `json:"years_smoked"`
	Age          int            `json:"age"`
	PackagePrice float64        `json:"package_price"`
	Motivation   Motivation     `json:"motivation"`
}

// Result is the output of Assess. It has no lifecycle of its own; callers
// persist it if they need to.
type Result struct {
	TotalScore         float64           `json:"total_score"`
	Level              AddictionLevel    `json:"addiction_level"`
	CigarettesPerDay   int               `json:"cigarettes_per_day"`
	PackYear           float64           `json:"pack_year"`
	SuccessProbability int               `json:"success_probability"`
	Savings            SavingsProjection `json:"savings"`
	Adjustments        []Adjustment      `json:"adjustments"`
	Answers            []ScoredAnswer    `json:"answers"`
}

// UnrecognizedCount returns how many answers did not match the catalog.
func (r Result) UnrecognizedCount() int {
	n := 0
	for _, a := range r.Answers {
		if !a.Recognized {
			n++
		}
	}
	return n
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// Violation is one failed input constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every constraint an Input violates. Assess returns
// it before doing any computation.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "assessment: invalid input: " + strings.Join(parts, "; ")
}

// ─── CALCULATOR ──────────────────────────────────────────────────────────────

// Calculator runs assessments against a fixed catalog. It holds no mutable
// state and is safe for concurrent use.
type Calculator struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewCalculator returns a Calculator for catalog. A nil catalog selects
// DefaultCatalog; a nil logger discards unrecognised-option warnings.
func NewCalculator(catalog *Catalog, logger *slog.Logger) *Calculator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Calculator{catalog: catalog, logger: logger}
}

// Catalog returns the catalog the calculator scores against.
func (c *Calculator) Catalog() *Catalog { return c.catalog }

// Assess validates in and computes the full Result:
//
//  1. Validate every constraint, collecting all violations.
//  2. Total score (clamped to [0,10]).
//  3. Cigarettes per day from the consumption answer.
//  4. Pack-year.
//  5. Savings projection.
//  6. Success probability.
//  7. Dependence level.
func (c *Calculator) Assess(in Input) (Result, error) {
	if err := Validate(in); err != nil {
		return Result{}, err
	}

	totalScore, scored := ComputeTotalScore(c.catalog, in.Answers)
	for _, a := range scored {
		if !a.Recognized {
			c.logger.Warn("assessment: unrecognized option scored as 0",
				"question_id", a.QuestionID,
				"option_id", a.OptionID,
				"option_text", a.OptionText,
			)
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].QuestionID < scored[j].QuestionID })

	cigarettes := EstimateCigarettesPerDay(consumptionAnswer(scored))
	packYear := DerivePackYear(cigarettes, in.YearsSmoked)
	savings := ComputeSavings(cigarettes, in.PackagePrice, in.YearsSmoked)

	factors := SuccessFactors{
		TotalScore:       totalScore,
		CigarettesPerDay: cigarettes,
		YearsSmoked:      in.YearsSmoked,
		Age:              in.Age,
		PackYear:         packYear,
		Motivation:       in.Motivation,
		MonthlySavings:   savings.Monthly,
	}

	return Result{
		TotalScore:         totalScore,
		Level:              ClassifyAddiction(totalScore),
		CigarettesPerDay:   cigarettes,
		PackYear:           roundTo2Decimals(packYear),
		SuccessProbability: EstimateSuccessProbability(factors),
		Savings:            savings,
		Adjustments:        SuccessAdjustments(factors),
		Answers:            scored,
	}, nil
}

// Validate checks in without computing anything. It returns a
// *ValidationError listing every violation, or nil.
func Validate(in Input) error {
	var vs []Violation
	add := func(field, format string, args ...any) {
		vs = append(vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(in.Answers) != QuestionCount {
		add("answers", "expected %d answers, got %d", QuestionCount, len(in.Answers))
	}

	seen := make(map[int]int, len(in.Answers))
	for _, a := range in.Answers {
		if a.QuestionID < 1 || a.QuestionID > QuestionCount {
			add("answers", "unknown question %d", a.QuestionID)
			continue
		}
		seen[a.QuestionID]++
	}
	for id := 1; id <= QuestionCount; id++ {
		switch n := seen[id]; {
		case n == 0:
			add(fmt.Sprintf("answers[%d]", id), "question %d is not answered", id)
		case n > 1:
			add(fmt.Sprintf("answers[%d]", id), "question %d answered %d times", id, n)
		}
	}

	if in.Age < minAge || in.Age > maxAge {
		add("age", "must be between %d and %d, got %d", minAge, maxAge, in.Age)
	}
	if in.YearsSmoked < minYearsSmoked || in.YearsSmoked > maxYearsSmoked {
		add("years_smoked", "must be between %d and %d, got %d", minYearsSmoked, maxYearsSmoked, in.YearsSmoked)
	}
	if in.YearsSmoked >= in.Age {
		add("years_smoked", "must be less than age (%d >= %d)", in.YearsSmoked, in.Age)
	}
	switch {
	case !(in.PackagePrice > 0):
		add("package_price", "must be greater than 0")
	case in.PackagePrice > maxPackagePrice:
		add("package_price", "must be at most %d, got %.0f", maxPackagePrice, in.PackagePrice)
	}

	if len(vs) > 0 {
		return &ValidationError{Violations: vs}
	}
	return nil
}

// consumptionAnswer returns the band label of the consumption question. A
// recognised answer carries the catalog label, so substituted catalogs with
// their own option IDs still map. Otherwise whatever the client sent is used.
func consumptionAnswer(scored []ScoredAnswer) string {
	for _, a := range scored {
		if a.QuestionID != ConsumptionQuestionID {
			continue
		}
		if a.Recognized || a.OptionText != "" {
			return a.OptionText
		}
		return a.OptionID
	}
	return ""
}
