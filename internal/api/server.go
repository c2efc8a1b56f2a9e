// Package api implements the HTTP layer of the quit-smoking backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/cache"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/db"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/email"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/store"
	stripeinternal "github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/stripe"
	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// BaseURL is used for links in emails.
	BaseURL string

	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string

	// Env is "production", "staging", or "development".
	Env string

	// RateLimitPerMinute caps assessment submissions per client IP.
	// Zero disables the limiter.
	RateLimitPerMinute int
}

// Store is the part of *store.Store the handlers write through.
type Store interface {
	SaveAssessment(ctx context.Context, memberID uuid.UUID, in assessment.Input, res assessment.Result) (db.Assessment, error)
	AttachPaymentIntent(ctx context.Context, p store.AttachPaymentIntentParams) (db.Member, string, error)
	ActivateMembership(ctx context.Context, stripePaymentIntent string, now time.Time) (db.Member, db.Plan, error)
}

var _ Store = (*store.Store)(nil)

// Deps groups the collaborators NewServer wires into the router.
type Deps struct {
	// Queries handles all single-query reads.
	Queries db.Querier

	// Store handles multi-step atomic writes.
	Store Store

	// Calculator scores submissions against the active catalog.
	Calculator *assessment.Calculator

	// Cache deduplicates repeated submissions. Nil disables it.
	Cache cache.ResultCache

	Stripe stripeinternal.Client

	// Worker enqueues follow-ups after an assessment is stored.
	Worker worker.Enqueuer

	// Mailer sends the membership receipt.
	Mailer email.Sender
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	q      db.Querier
	store  Store
	calc   *assessment.Calculator
	cache  cache.ResultCache
	stripe stripeinternal.Client
	worker worker.Enqueuer
	mailer email.Sender

	limiter *rateLimiter
	now     func() time.Time

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// handler is ready to pass to an http.Server. Stop the returned func on
// shutdown to end the rate limiter's cleanup goroutine.
func NewServer(deps Deps, cfg Config, logger *slog.Logger) (http.Handler, func()) {
	s := &Server{
		q:      deps.Queries,
		store:  deps.Store,
		calc:   deps.Calculator,
		cache:  deps.Cache,
		stripe: deps.Stripe,
		worker: deps.Worker,
		mailer: deps.Mailer,
		now:    time.Now,
		cfg:    cfg,
		logger: logger,
	}

	stop := func() {}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		stop = s.limiter.Stop
	}

	return s.routes(), stop
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {

		// Member creation and the survey itself need no token.
		r.Post("/members", s.handleCreateMember)
		r.Get("/survey", s.handleGetSurvey)
		r.Post("/survey/preview", s.handlePreviewAssessment)
		r.Get("/plans", s.handleListPlans)

		// Member-scoped routes; the token must belong to {memberID}.
		r.Route("/members/{memberID}", func(r chi.Router) {
			r.Use(s.requireMemberToken)
			r.With(s.rateLimit).Post("/assessments", s.handleSubmitAssessment)
			r.Get("/assessments", s.handleListAssessments)
			r.Get("/achievements", s.handleListAchievements)
			r.Post("/checkout", s.handleCreateCheckout)
		})

		r.With(s.requireMemberToken).Get("/assessments/{assessmentID}", s.handleGetAssessment)

		// Stripe webhook, verified by signature inside the handler.
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
	})

	return r
}
