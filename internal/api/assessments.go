package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/cache"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type assessmentResponse struct {
	ID             string            `json:"id"`
	MemberID       string            `json:"member_id"`
	CreatedAt      time.Time         `json:"created_at"`
	FollowupStatus string            `json:"followup_status"`
	Result         assessment.Result `json:"result"`
	CoachNote      json.RawMessage   `json:"coach_note,omitempty"`
	// IsDuplicate is true when an identical submission inside the cache TTL
	// returned the stored assessment instead of creating a new one.
	IsDuplicate bool `json:"is_duplicate,omitempty"`
}

func toAssessmentResponse(row db.Assessment) (assessmentResponse, error) {
	var res assessment.Result
	if err := json.Unmarshal(row.ResultJson, &res); err != nil {
		return assessmentResponse{}, fmt.Errorf("decode result snapshot %s: %w", row.ID, err)
	}
	resp := assessmentResponse{
		ID:             row.ID.String(),
		MemberID:       row.MemberID.String(),
		CreatedAt:      row.CreatedAt,
		FollowupStatus: string(row.FollowupStatus),
		Result:         res,
	}
	if row.CoachNoteJson.Valid {
		resp.CoachNote = row.CoachNoteJson.RawMessage
	}
	return resp, nil
}

// ─── POST /api/members/:memberID/assessments ─────────────────────────────────

// handleSubmitAssessment scores a submission, stores it and hands the
// follow-up (achievements, coach note, email) to the worker.
//
// An identical submission from the same member inside the cache TTL returns
// the stored assessment with 200 instead of inserting a second row.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	member := memberFrom(r.Context())

	var in assessment.Input
	if !decode(w, r, &in) {
		return
	}

	res, err := s.calc.Assess(in)
	if err != nil {
		s.respondAssessErr(w, r, err)
		return
	}

	fingerprint := cache.Fingerprint(member.ID, in)
	if existing, ok := s.lookupDuplicate(r, member.ID, fingerprint); ok {
		resp, err := toAssessmentResponse(existing)
		if err != nil {
			s.respondInternalErr(w, r, err)
			return
		}
		resp.IsDuplicate = true
		respond(w, http.StatusOK, resp)
		return
	}

	row, err := s.store.SaveAssessment(r.Context(), member.ID, in, res)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save assessment: %w", err))
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), fingerprint, row.ID); err != nil {
			s.logger.Warn("assessment: cache set failed", "assessment_id", row.ID, "error", err, logField(r))
		}
	}

	if err := s.worker.Enqueue(r.Context(), row.ID); err != nil {
		// Queue full; the poller picks the pending row up.
		s.logger.Warn("assessment: enqueue failed, will be picked up by poller",
			"assessment_id", row.ID,
			"error", err,
			logField(r),
		)
	}

	s.logger.Info("assessment: stored",
		"assessment_id", row.ID,
		"member_id", member.ID,
		"tier", res.Level.Tier,
		"unrecognized", res.UnrecognizedCount(),
		logField(r),
	)

	resp, err := toAssessmentResponse(row)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, resp)
}

// lookupDuplicate resolves a fingerprint to a stored assessment of member.
// Every cache or lookup failure counts as a miss.
func (s *Server) lookupDuplicate(r *http.Request, memberID uuid.UUID, fingerprint string) (db.Assessment, bool) {
	if s.cache == nil {
		return db.Assessment{}, false
	}

	id, ok, err := s.cache.Get(r.Context(), fingerprint)
	if err != nil {
		s.logger.Warn("assessment: cache get failed", "error", err, logField(r))
		return db.Assessment{}, false
	}
	if !ok {
		return db.Assessment{}, false
	}

	row, err := s.q.GetAssessmentByID(r.Context(), id)
	if err != nil || row.MemberID != memberID {
		return db.Assessment{}, false
	}
	return row, true
}

// ─── GET /api/members/:memberID/assessments ──────────────────────────────────

// handleListAssessments returns the member's history, latest first.
// ?limit= caps the page (default 20, max 100).
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	member := memberFrom(r.Context())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	rows, err := s.q.ListAssessmentsByMember(r.Context(), db.ListAssessmentsByMemberParams{
		MemberID: member.ID,
		Limit:    int32(limit),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list assessments: %w", err))
		return
	}

	out := make([]assessmentResponse, 0, len(rows))
	for _, row := range rows {
		resp, err := toAssessmentResponse(row)
		if err != nil {
			s.respondInternalErr(w, r, err)
			return
		}
		out = append(out, resp)
	}

	respond(w, http.StatusOK, map[string]any{"assessments": out})
}

// ─── GET /api/assessments/:assessmentID ──────────────────────────────────────

// handleGetAssessment returns one assessment. Another member's assessment is
// reported as not found so IDs cannot be probed.
func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	member := memberFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "assessmentID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid assessment_id")
		return
	}

	row, err := s.q.GetAssessmentByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && row.MemberID != member.ID) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get assessment: %w", err))
		return
	}

	resp, err := toAssessmentResponse(row)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, resp)
}
