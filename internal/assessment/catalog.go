// Package assessment implements the nicotine-dependence survey scoring and the
// quit projections derived from it. It is intentionally dependency-free: it
// imports nothing from internal/ and can be tested without a database.
package assessment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionCount is the fixed size of the survey instrument.
const QuestionCount = 10

// ConsumptionQuestionID is the question whose answer band drives the
// cigarettes-per-day estimate.
const ConsumptionQuestionID = 3

const maxOptionWeight = 3.0

// Option is one selectable answer to a question. ID is the stable identifier
// clients should submit; Label is the display text.
type Option struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// Question is one entry of the survey catalog.
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Catalog is the immutable scoring rubric. Construct it with DefaultCatalog or
// ParseCatalog; every accessor returns copies so callers cannot mutate it.
type Catalog struct {
	questions []Question
	byID      map[int]int // question id → index into questions
}

// catalogJSON is the on-disk shape accepted by ParseCatalog.
//
//	{
//	  "questions": [
//	    {"id": 1, "text": "...", "options": [{"id": "q1_5min", "label": "Within 5 minutes", "weight": 3}, ...]},
//	    ...
//	  ]
//	}
type catalogJSON struct {
	Questions []Question `json:"questions"`
}

// NewCatalog validates questions and returns a Catalog holding a private copy.
func NewCatalog(questions []Question) (*Catalog, error) {
	qs := make([]Question, len(questions))
	for i, q := range questions {
		q.Options = append([]Option(nil), q.Options...)
		qs[i] = q
	}

	c := &Catalog{questions: qs, byID: make(map[int]int, len(qs))}
	for i, q := range qs {
		c.byID[q.ID] = i
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCatalog unmarshals a JSON catalog (e.g. loaded from
// SURVEY_CATALOG_PATH) and validates it.
func ParseCatalog(raw []byte) (*Catalog, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("catalog: empty JSON")
	}
	var doc catalogJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal: %w", err)
	}
	return NewCatalog(doc.Questions)
}

// Validate checks that the catalog has exactly QuestionCount questions with
// ids 1..QuestionCount, that every question has options, that option IDs are
// unique within a question and that every weight is in [0, 3]. Call this once
// at startup, not on every request.
func (c *Catalog) Validate() error {
	if len(c.questions) != QuestionCount {
		return fmt.Errorf("catalog: expected %d questions, got %d", QuestionCount, len(c.questions))
	}
	if len(c.byID) != len(c.questions) {
		return fmt.Errorf("catalog: duplicate question ids")
	}
	for id := 1; id <= QuestionCount; id++ {
		idx, ok := c.byID[id]
		if !ok {
			return fmt.Errorf("catalog: question %d missing", id)
		}
		q := c.questions[idx]
		if len(q.Options) == 0 {
			return fmt.Errorf("catalog: question %d has no options", id)
		}
		seen := make(map[string]struct{}, len(q.Options))
		for i, o := range q.Options {
			if strings.TrimSpace(o.ID) == "" {
				return fmt.Errorf("catalog: question %d option[%d] has empty id", id, i)
			}
			if _, dup := seen[o.ID]; dup {
				return fmt.Errorf("catalog: question %d duplicate option id %q", id, o.ID)
			}
			seen[o.ID] = struct{}{}
			if o.Weight < 0 || o.Weight > maxOptionWeight {
				return fmt.Errorf("catalog: question %d option %q weight %v out of range [0,3]", id, o.ID, o.Weight)
			}
		}
	}
	return nil
}

// Questions returns a copy of the questions in id order.
func (c *Catalog) Questions() []Question {
	out := make([]Question, 0, len(c.questions))
	for id := 1; id <= QuestionCount; id++ {
		q, _ := c.Question(id)
		out = append(out, q)
	}
	return out
}

// Question returns a copy of the question with the given id.
func (c *Catalog) Question(id int) (Question, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Question{}, false
	}
	q := c.questions[idx]
	q.Options = append([]Option(nil), q.Options...)
	return q, true
}

// MaxScore is the unclamped sum of every question's highest weight.
func (c *Catalog) MaxScore() float64 {
	total := 0.0
	for _, q := range c.questions {
		best := 0.0
		for _, o := range q.Options {
			if o.Weight > best {
				best = o.Weight
			}
		}
		total += best
	}
	return total
}

// lookup resolves an answer against question id. Option IDs are matched
// first. Matching on the trimmed label is kept for answers stored before
// option IDs existed.
func (c *Catalog) lookup(questionID int, optionID, optionText string) (Option, bool) {
	idx, ok := c.byID[questionID]
	if !ok {
		return Option{}, false
	}
	q := c.questions[idx]

	if optionID != "" {
		for _, o := range q.Options {
			if o.ID == optionID {
				return o, true
			}
		}
	}

	text := strings.TrimSpace(optionText)
	if text == "" {
		return Option{}, false
	}
	for _, o := range q.Options {
		if o.Label == text {
			return o, true
		}
	}
	return Option{}, false
}

// DefaultCatalog returns the built-in FTND-style instrument. A new value is
// built on every call.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultQuestions())
	if err != nil {
		// The built-in table is covered by tests; failing here is a programming error.
		panic(err)
	}
	return c
}

// Consumption band labels for question 3.
const (
	BandUpTo10   = "≤10"
	Band11To20   = "11–20"
	Band21To30   = "21–30"
	Band31OrMore = "≥31"
)

func defaultQuestions() []Question {
	return []Question{
		{ID: 1, Text: "How soon after you wake up do you smoke your first cigarette?", Options: []Option{
			{ID: "q1_within_5", Label: "Within 5 minutes", Weight: 3},
			{ID: "q1_6_30", Label: "6–30 minutes", Weight: 2},
			{ID: "q1_31_60", Label: "31–60 minutes", Weight: 1},
			{ID: "q1_after_60", Label: "After 60 minutes", Weight: 0},
		}},
		{ID: 2, Text: "Do you find it difficult to refrain from smoking in places where it is forbidden?", Options: []Option{
			{ID: "q2_yes", Label: "Yes", Weight: 1},
			{ID: "q2_no", Label: "No", Weight: 0},
		}},
		{ID: ConsumptionQuestionID, Text: "How many cigarettes per day do you smoke?", Options: []Option{
			{ID: "q3_le10", Label: BandUpTo10, Weight: 0},
			{ID: "q3_11_20", Label: Band11To20, Weight: 1},
			{ID: "q3_21_30", Label: Band21To30, Weight: 2},
			{ID: "q3_ge31", Label: Band31OrMore, Weight: 3},
		}},
		{ID: 4, Text: "Which cigarette would you hate most to give up?", Options: []Option{
			{ID: "q4_first_morning", Label: "The first one in the morning", Weight: 1},
			{ID: "q4_any_other", Label: "Any other", Weight: 0},
		}},
		{ID: 5, Text: "Do you smoke more frequently during the first hours after waking than during the rest of the day?", Options: []Option{
			{ID: "q5_yes", Label: "Yes", Weight: 1},
			{ID: "q5_no", Label: "No", Weight: 0},
		}},
		{ID: 6, Text: "Do you smoke when you are so ill that you are in bed most of the day?", Options: []Option{
			{ID: "q6_yes", Label: "Yes", Weight: 1},
			{ID: "q6_no", Label: "No", Weight: 0},
		}},
		{ID: 7, Text: "Do you reach for a cigarette when you feel stressed or anxious?", Options: []Option{
			{ID: "q7_always", Label: "Always", Weight: 1},
			{ID: "q7_sometimes", Label: "Sometimes", Weight: 0.5},
			{ID: "q7_never", Label: "Never", Weight: 0},
		}},
		{ID: 8, Text: "Do you feel irritable, restless or unable to concentrate when you go without smoking?", Options: []Option{
			{ID: "q8_strongly", Label: "Yes, strongly", Weight: 1},
			{ID: "q8_slightly", Label: "Slightly", Weight: 0.5},
			{ID: "q8_no", Label: "No", Weight: 0},
		}},
		{ID: 9, Text: "Do you always smoke together with coffee, alcohol or after meals?", Options: []Option{
			{ID: "q9_always", Label: "Always", Weight: 1},
			{ID: "q9_sometimes", Label: "Sometimes", Weight: 0.5},
			{ID: "q9_rarely", Label: "Rarely", Weight: 0},
		}},
		{ID: 10, Text: "Have you tried to quit before and started smoking again?", Options: []Option{
			{ID: "q10_many", Label: "Several times", Weight: 1},
			{ID: "q10_once", Label: "Once", Weight: 0.5},
			{ID: "q10_never", Label: "Never tried", Weight: 0},
		}},
	}
}
