package assessment_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// lowestAnswers selects the lowest-weight option of every question, except
// for the overrides keyed by question id.
func lowestAnswers(t *testing.T, overrides map[int]string) []assessment.SurveyAnswer {
	t.Helper()
	cat := assessment.DefaultCatalog()
	answers := make([]assessment.SurveyAnswer, 0, assessment.QuestionCount)
	for _, q := range cat.Questions() {
		if id, ok := overrides[q.ID]; ok {
			answers = append(answers, assessment.SurveyAnswer{QuestionID: q.ID, OptionID: id})
			continue
		}
		low := q.Options[0]
		for _, o := range q.Options {
			if o.Weight < low.Weight {
				low = o
			}
		}
		answers = append(answers, assessment.SurveyAnswer{QuestionID: q.ID, OptionID: low.ID})
	}
	return answers
}

func highestAnswers(t *testing.T) []assessment.SurveyAnswer {
	t.Helper()
	cat := assessment.DefaultCatalog()
	answers := make([]assessment.SurveyAnswer, 0, assessment.QuestionCount)
	for _, q := range cat.Questions() {
		high := q.Options[0]
		for _, o := range q.Options {
			if o.Weight > high.Weight {
				high = o
			}
		}
		answers = append(answers, assessment.SurveyAnswer{QuestionID: q.ID, OptionID: high.ID})
	}
	return answers
}

// ─── Assess: concrete scenario ───────────────────────────────────────────────

func TestAssess_ModerateSmokerScenario(t *testing.T) {
	calc := assessment.NewCalculator(nil, nil)

	res, err := calc.Assess(assessment.Input{
		Answers:      lowestAnswers(t, map[int]string{1: "q1_within_5", 3: "q3_21_30"}),
		Age:          30,
		YearsSmoked:  10,
		PackagePrice: 25000,
		Motivation:   assessment.MotivationMoney,
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, res.TotalScore)
	assert.Equal(t, assessment.TierModerate, res.Level.Tier)
	assert.Equal(t, "Moderate Nicotine Dependence", res.Level.Label)
	assert.Equal(t, 25, res.CigarettesPerDay)
	assert.Equal(t, 12.5, res.PackYear)

	assert.Equal(t, assessment.SavingsProjection{
		Daily:   53125,
		Weekly:  371875,
		Monthly: 1593750,
		Yearly:  19390625,
		Breakdown: assessment.CostBreakdown{
			Tobacco: 31250,
			Health:  15625,
			Other:   6250,
		},
	}, res.Savings)

	// 35 base +15 dependence +20 age +0 pack-year +10 money +10 savings −8 cigarettes.
	assert.Equal(t, 82, res.SuccessProbability)
	assert.Len(t, res.Adjustments, 6)
	assert.Zero(t, res.UnrecognizedCount())
}

func TestAssess_AnswersSortedByQuestion(t *testing.T) {
	answers := lowestAnswers(t, nil)
	// Reverse the submission order.
	for i, j := 0, len(answers)-1; i < j; i, j = i+1, j-1 {
		answers[i], answers[j] = answers[j], answers[i]
	}

	res, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers: answers, Age: 40, YearsSmoked: 5, PackagePrice: 30000,
	})
	require.NoError(t, err)
	for i, a := range res.Answers {
		assert.Equal(t, i+1, a.QuestionID)
	}
}

// ─── Assess: validation ──────────────────────────────────────────────────────

func TestAssess_ReportsAllViolations(t *testing.T) {
	answers := lowestAnswers(t, nil)[:9] // question 10 missing

	_, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers:      answers,
		Age:          30,
		YearsSmoked:  30,
		PackagePrice: 25000,
	})

	var verr *assessment.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)

	fields := make(map[string]bool)
	for _, v := range verr.Violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["answers"], "answer count violation missing: %v", verr.Violations)
	assert.True(t, fields["answers[10]"], "missing question violation missing: %v", verr.Violations)
	assert.True(t, fields["years_smoked"], "years_smoked >= age violation missing: %v", verr.Violations)
}

func TestValidate_Ranges(t *testing.T) {
	base := func() assessment.Input {
		return assessment.Input{
			Answers:      lowestAnswers(t, nil),
			Age:          30,
			YearsSmoked:  10,
			PackagePrice: 25000,
		}
	}

	tests := []struct {
		name  string
		mod   func(*assessment.Input)
		field string
	}{
		{"age too low", func(in *assessment.Input) { in.Age = 14; in.YearsSmoked = 2 }, "age"},
		{"age too high", func(in *assessment.Input) { in.Age = 101 }, "age"},
		{"years zero", func(in *assessment.Input) { in.YearsSmoked = 0 }, "years_smoked"},
		{"years too many", func(in *assessment.Input) { in.Age = 95; in.YearsSmoked = 71 }, "years_smoked"},
		{"years equals age", func(in *assessment.Input) { in.Age = 20; in.YearsSmoked = 20 }, "years_smoked"},
		{"price zero", func(in *assessment.Input) { in.PackagePrice = 0 }, "package_price"},
		{"price negative", func(in *assessment.Input) { in.PackagePrice = -1 }, "package_price"},
		{"duplicate answer", func(in *assessment.Input) { in.Answers[9] = in.Answers[0] }, "answers[1]"},
		{"unknown question", func(in *assessment.Input) { in.Answers[9].QuestionID = 11 }, "answers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mod(&in)
			err := assessment.Validate(in)

			var verr *assessment.ValidationError
			require.ErrorAs(t, err, &verr)
			found := false
			for _, v := range verr.Violations {
				if v.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected violation on %q, got %v", tt.field, verr.Violations)
		})
	}
}

func TestValidate_ValidInputPasses(t *testing.T) {
	err := assessment.Validate(assessment.Input{
		Answers:      lowestAnswers(t, nil),
		Age:          15,
		YearsSmoked:  1,
		PackagePrice: 0.5,
	})
	assert.NoError(t, err)
}

func TestValidationError_MessageListsEveryViolation(t *testing.T) {
	err := &assessment.ValidationError{Violations: []assessment.Violation{
		{Field: "age", Message: "bad"},
		{Field: "years_smoked", Message: "worse"},
	}}
	assert.Contains(t, err.Error(), "age: bad")
	assert.Contains(t, err.Error(), "years_smoked: worse")
}

// ─── Assess: unrecognised options ───────────────────────────────────────────

func TestAssess_UnrecognizedOptionScoresZeroAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	answers := lowestAnswers(t, map[int]string{1: "q1_within_5"})
	answers[0] = assessment.SurveyAnswer{QuestionID: 1, OptionID: "q1_unknown", OptionText: "Right away"}

	res, err := assessment.NewCalculator(nil, logger).Assess(assessment.Input{
		Answers: answers, Age: 30, YearsSmoked: 10, PackagePrice: 25000,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.TotalScore)
	assert.Equal(t, 1, res.UnrecognizedCount())
	assert.False(t, res.Answers[0].Recognized)
	assert.Contains(t, buf.String(), "unrecognized option")
}

func TestAssess_UnrecognizedConsumptionDefaultsTo15(t *testing.T) {
	answers := lowestAnswers(t, map[int]string{3: "nope"})

	res, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers: answers, Age: 30, YearsSmoked: 10, PackagePrice: 25000,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, res.CigarettesPerDay)
}

func TestAssess_LegacyTextAnswerIsMatched(t *testing.T) {
	answers := lowestAnswers(t, nil)
	answers[2] = assessment.SurveyAnswer{QuestionID: 3, OptionText: "  " + assessment.Band31OrMore + " "}

	res, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers: answers, Age: 50, YearsSmoked: 30, PackagePrice: 20000,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.TotalScore)
	assert.Equal(t, 35, res.CigarettesPerDay)
	assert.Equal(t, 52.5, res.PackYear)
}

func TestAssess_MaxAnswersClampToTen(t *testing.T) {
	res, err := assessment.NewCalculator(nil, nil).Assess(assessment.Input{
		Answers: highestAnswers(t), Age: 70, YearsSmoked: 50, PackagePrice: 40000,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.TotalScore)
	assert.Equal(t, assessment.TierVeryHigh, res.Level.Tier)
	assert.GreaterOrEqual(t, res.SuccessProbability, 10)
}

// ─── Assess: substituted catalog ─────────────────────────────────────────────

func TestAssess_SubstitutedCatalogMapsConsumptionByLabel(t *testing.T) {
	qs := assessment.DefaultCatalog().Questions()
	for i := range qs {
		if qs[i].ID != assessment.ConsumptionQuestionID {
			continue
		}
		for j := range qs[i].Options {
			qs[i].Options[j].ID = fmt.Sprintf("band_%c", 'a'+j)
		}
	}
	cat, err := assessment.NewCatalog(qs)
	require.NoError(t, err)

	answers := make([]assessment.SurveyAnswer, 0, assessment.QuestionCount)
	for _, q := range cat.Questions() {
		id := q.Options[len(q.Options)-1].ID
		switch q.ID {
		case 1:
			id = "q1_within_5"
		case assessment.ConsumptionQuestionID:
			id = "band_c" // 21–30
		}
		answers = append(answers, assessment.SurveyAnswer{QuestionID: q.ID, OptionID: id})
	}

	res, err := assessment.NewCalculator(cat, nil).Assess(assessment.Input{
		Answers:      answers,
		Age:          30,
		YearsSmoked:  10,
		PackagePrice: 25000,
		Motivation:   assessment.MotivationMoney,
	})
	require.NoError(t, err)

	assert.Zero(t, res.UnrecognizedCount())
	assert.Equal(t, 25, res.CigarettesPerDay)
	assert.Equal(t, 12.5, res.PackYear)
	assert.Equal(t, int64(1593750), res.Savings.Monthly)
	assert.Equal(t, 82, res.SuccessProbability)
}

// ─── Assess: package price bound ────────────────────────────────────────────

func TestAssess_PackagePriceBound(t *testing.T) {
	calc := assessment.NewCalculator(nil, nil)
	input := func(price float64) assessment.Input {
		return assessment.Input{
			Answers:      lowestAnswers(t, map[int]string{3: "q3_ge31"}),
			Age:          60,
			YearsSmoked:  40,
			PackagePrice: price,
		}
	}

	res, err := calc.Assess(input(10_000_000))
	require.NoError(t, err)
	assert.Positive(t, res.Savings.Daily)
	assert.Greater(t, res.Savings.Yearly, res.Savings.Monthly)
	assert.GreaterOrEqual(t, res.Savings.Breakdown.Other, int64(0))

	for _, price := range []float64{10_000_001, 1e17, math.Inf(1)} {
		_, err := calc.Assess(input(price))
		var verr *assessment.ValidationError
		require.True(t, errors.As(err, &verr), "price %v: expected *ValidationError, got %v", price, err)
		require.Len(t, verr.Violations, 1)
		assert.Equal(t, "package_price", verr.Violations[0].Field)
	}
}
