package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/achievement"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
)

// ─── POST /api/members ────────────────────────────────────────────────────────

type createMemberRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type createMemberResponse struct {
	MemberID    string `json:"member_id"`
	MemberToken string `json:"member_token"`
}

// handleCreateMember registers a member and returns the opaque token the
// client sends as X-Member-Token on every member-scoped request.
func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if !decode(w, r, &req) {
		return
	}

	// 32 bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate member token: %w", err))
		return
	}
	token := hex.EncodeToString(tokenBytes)

	member, err := s.q.CreateMember(r.Context(), db.CreateMemberParams{
		MemberToken: token,
		DisplayName: nullString(req.DisplayName),
		Email:       nullString(req.Email),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create member: %w", err))
		return
	}

	respond(w, http.StatusCreated, createMemberResponse{
		MemberID:    member.ID.String(),
		MemberToken: token,
	})
}

// ─── GET /api/members/:memberID/achievements ─────────────────────────────────

type achievementResponse struct {
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AssessmentID string    `json:"assessment_id,omitempty"`
	UnlockedAt   time.Time `json:"unlocked_at"`
}

func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	member := memberFrom(r.Context())

	rows, err := s.q.ListAchievementsByMember(r.Context(), member.ID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list achievements: %w", err))
		return
	}

	out := make([]achievementResponse, 0, len(rows))
	for _, a := range rows {
		resp := achievementResponse{
			Code:       a.Code,
			Title:      a.Code,
			UnlockedAt: a.UnlockedAt,
		}
		// Codes retired from the rule set still list, titled by code.
		if def, ok := achievement.Lookup(achievement.Code(a.Code)); ok {
			resp.Title = def.Title
			resp.Description = def.Description
		}
		if a.AssessmentID.Valid {
			resp.AssessmentID = a.AssessmentID.UUID.String()
		}
		out = append(out, resp)
	}

	respond(w, http.StatusOK, map[string]any{"achievements": out})
}
