// Package ai generates coach notes for a computed assessment, with an
// Anthropic-backed Advisor, a DeepSeek-backed Advisor and a fallback wrapper.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// Sources recorded on a CoachNote.
const (
	SourceAnthropic = "anthropic"
	SourceDeepSeek  = "deepseek"
	SourceStatic    = "static"
)

// CoachNote is the structured note stored with an assessment follow-up and
// sent in the summary email.
type CoachNote struct {
	Summary string   `json:"summary"`
	Tips    []string `json:"tips"`
	Source  string   `json:"source"`
}

// Advisor is what the worker uses to write a coach note. Tests inject a stub.
type Advisor interface {
	// Advise must be safe to call concurrently. A non-nil error means the
	// whole call failed; the worker then falls back to StaticNote.
	Advise(ctx context.Context, res assessment.Result) (CoachNote, error)
}

// StaticNote is the note used when no model is configured or every model
// failed: the level description plus the weakest success factors.
func StaticNote(res assessment.Result) CoachNote {
	note := CoachNote{
		Summary: res.Level.Description,
		Source:  SourceStatic,
	}
	for _, adj := range res.Adjustments {
		if adj.Points < 0 {
			note.Tips = append(note.Tips, staticTips[adj.Factor])
		}
	}
	if len(note.Tips) == 0 {
		note.Tips = []string{staticTips["default"]}
	}
	return note
}

var staticTips = map[string]string{
	"dependence":         "Talk to a coach about nicotine replacement to take the edge off strong cravings.",
	"age":                "Pick a quit date within the next two weeks and tell someone close to you.",
	"pack_year":          "Book a lung function check; seeing the numbers helps keep the goal concrete.",
	"motivation":         "Write down your own reason for quitting and keep it where you smoke most.",
	"savings":            "Move the money you would spend on cigarettes into a separate savings pot each week.",
	"cigarettes_per_day": "Cut down by two cigarettes a day this week before your quit date.",
	"default":            "Keep logging cravings so you can spot and plan for your triggers.",
}

const systemPrompt = `You are a smoking-cessation coach writing a short note for a member who just completed a nicotine dependence assessment.
You receive their dependence level, consumption, pack-years, estimated quit success probability, projected savings and the factors that moved the estimate up or down.

Produce:
1. summary: 2-3 warm, direct sentences about where they stand. No medical diagnosis.
2. tips: 3 to 5 concrete actions for the next two weeks, each one sentence.

Respond ONLY with valid JSON matching this exact schema, no markdown fences, no preamble:
{"summary": "...", "tips": ["...", "..."]}`

// buildPrompt renders the parts of the result a coach needs.
func buildPrompt(res assessment.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "dependence_level: %s (score %.1f/10)\n", res.Level.Label, res.TotalScore)
	fmt.Fprintf(&sb, "cigarettes_per_day: %d\n", res.CigarettesPerDay)
	fmt.Fprintf(&sb, "pack_years: %.2f\n", res.PackYear)
	fmt.Fprintf(&sb, "quit_success_probability: %d%%\n", res.SuccessProbability)
	fmt.Fprintf(&sb, "savings: %d per month, %d per year\n", res.Savings.Monthly, res.Savings.Yearly)
	sb.WriteString("factors:\n")
	for _, adj := range res.Adjustments {
		fmt.Fprintf(&sb, "- %s: %+.0f\n", adj.Factor, adj.Points)
	}
	return sb.String()
}

// parseNote strips accidental markdown fences and decodes the model output.
func parseNote(raw, source string) (CoachNote, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var note CoachNote
	if err := json.Unmarshal([]byte(raw), &note); err != nil {
		return CoachNote{}, fmt.Errorf("ai: parse response JSON: %w (raw: %.200s)", err, raw)
	}
	if note.Summary == "" {
		return CoachNote{}, fmt.Errorf("ai: response has no summary (raw: %.200s)", raw)
	}
	note.Source = source
	return note, nil
}
