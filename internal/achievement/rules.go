// Package achievement decides which badges an assessment earns. Rules are pure
// functions of the computed result and the member's history; persisting an
// unlock exactly once is the store's job.
package achievement

import "github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"

// Code identifies an achievement. Codes are stored in achievements.code.
type Code string

const (
	FirstAssessment  Code = "first_assessment"
	HonestReflection Code = "honest_reflection"
	LowDependence    Code = "low_dependence"
	Motivated        Code = "motivated"
	BigSaver         Code = "big_saver"
	EarlyStarter     Code = "early_starter"
)

const (
	honestReflectionCount = 3
	motivatedProbability  = 70
	bigSaverYearly        = 10_000_000
	earlyStarterPackYear  = 3.0
)

// Definition is the display metadata for a code.
type Definition struct {
	Code        Code   `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Context is what a rule sees. PriorAssessments excludes the assessment being
// evaluated.
type Context struct {
	Result           assessment.Result
	PriorAssessments int64
}

type rule struct {
	def  Definition
	test func(Context) bool
}

var rules = []rule{
	{
		def: Definition{FirstAssessment, "First step", "Completed your first dependence assessment."},
		test: func(c Context) bool {
			return c.PriorAssessments == 0
		},
	},
	{
		def: Definition{HonestReflection, "Honest reflection", "Completed three or more assessments."},
		test: func(c Context) bool {
			return c.PriorAssessments+1 >= honestReflectionCount
		},
	},
	{
		def: Definition{LowDependence, "Light grip", "Scored in the very low dependence tier."},
		test: func(c Context) bool {
			return c.Result.Level.Tier == assessment.TierVeryLow
		},
	},
	{
		def: Definition{Motivated, "Ready to quit", "Estimated quit success of 70% or more."},
		test: func(c Context) bool {
			return c.Result.SuccessProbability >= motivatedProbability
		},
	},
	{
		def: Definition{BigSaver, "Big saver", "Quitting would save 10,000,000 or more a year."},
		test: func(c Context) bool {
			return c.Result.Savings.Yearly >= bigSaverYearly
		},
	},
	{
		def: Definition{EarlyStarter, "Early starter", "Started your quit journey below 3 pack-years."},
		test: func(c Context) bool {
			return c.Result.PackYear < earlyStarterPackYear
		},
	},
}

// Evaluate returns every code the context satisfies, in definition order.
func Evaluate(c Context) []Code {
	var out []Code
	for _, r := range rules {
		if r.test(c) {
			out = append(out, r.def.Code)
		}
	}
	return out
}

// Definitions lists all achievements in display order.
func Definitions() []Definition {
	out := make([]Definition, len(rules))
	for i, r := range rules {
		out[i] = r.def
	}
	return out
}

// Lookup returns the definition for code.
func Lookup(code Code) (Definition, bool) {
	for _, r := range rules {
		if r.def.Code == code {
			return r.def, true
		}
	}
	return Definition{}, false
}

// Strings converts codes for store.CompleteFollowUpParams.
func Strings(codes []Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
