// Package cache remembers which assessment a submission produced so a double
// submit inside the TTL returns the stored row instead of inserting again.
//
// Callers treat every cache error as a miss: the cache is an optimisation,
// never a source of truth.
package cache

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// ResultCache maps a submission fingerprint to the assessment ID created for it.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (uuid.UUID, bool, error)
	Set(ctx context.Context, fingerprint string, assessmentID uuid.UUID) error
}

// Fingerprint hashes the member and a canonical encoding of the input.
// Answers are ordered by question ID first so the same choices submitted in
// a different order produce the same key.
func Fingerprint(memberID uuid.UUID, in assessment.Input) string {
	answers := slices.Clone(in.Answers)
	slices.SortStableFunc(answers, func(a, b assessment.SurveyAnswer) int {
		return a.QuestionID - b.QuestionID
	})
	in.Answers = answers

	// Input holds only plain values, so Marshal cannot fail.
	raw, _ := json.Marshal(in)

	d := xxhash.New()
	_, _ = d.Write(memberID[:])
	_, _ = d.Write(raw)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Memory is an in-process ResultCache used in tests and when REDIS_URL is
// not configured.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	id      uuid.UUID
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, fingerprint string) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fingerprint]
	if !ok {
		return uuid.Nil, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, fingerprint)
		return uuid.Nil, false, nil
	}
	return e.id, true, nil
}

func (m *Memory) Set(_ context.Context, fingerprint string, assessmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// Drop expired keys on write so the map does not grow without bound.
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[fingerprint] = memoryEntry{id: assessmentID, expires: now.Add(m.ttl)}
	return nil
}
