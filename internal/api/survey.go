package api

import (
	"net/http"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// ─── GET /api/survey ─────────────────────────────────────────────────────────

type surveyResponse struct {
	Questions   []assessment.Question   `json:"questions"`
	Motivations []assessment.Motivation `json:"motivations"`
	MaxScore    float64                 `json:"max_score"`
}

// handleGetSurvey returns the active catalog so clients render the same
// option IDs the calculator scores against.
func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	catalog := s.calc.Catalog()
	respond(w, http.StatusOK, surveyResponse{
		Questions:   catalog.Questions(),
		Motivations: assessment.Motivations(),
		MaxScore:    catalog.MaxScore(),
	})
}

// ─── POST /api/survey/preview ────────────────────────────────────────────────

// handlePreviewAssessment runs the calculator without persisting anything.
// Anonymous visitors use it before they sign up.
func (s *Server) handlePreviewAssessment(w http.ResponseWriter, r *http.Request) {
	var in assessment.Input
	if !decode(w, r, &in) {
		return
	}

	res, err := s.calc.Assess(in)
	if err != nil {
		s.respondAssessErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, res)
}
