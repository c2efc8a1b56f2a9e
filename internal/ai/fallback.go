package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Nyanko-meow/Smoke-DEMO-sub006/internal/assessment"
)

// fallbackAdvisor calls primary first and, if that fails, logs the failure
// and tries secondary. main.go decides which provider is which.
type fallbackAdvisor struct {
	primary   Advisor
	secondary Advisor
	logger    *slog.Logger
}

// NewFallbackAdvisor returns an Advisor over primary and secondary. Either may
// be nil: a nil primary goes straight to secondary, and a nil secondary
// surfaces the primary error. With both nil every call fails.
func NewFallbackAdvisor(primary, secondary Advisor, logger *slog.Logger) Advisor {
	return &fallbackAdvisor{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *fallbackAdvisor) Advise(ctx context.Context, res assessment.Result) (CoachNote, error) {
	if f.primary != nil {
		note, err := f.primary.Advise(ctx, res)
		if err == nil {
			return note, nil
		}
		f.logger.Warn("ai: primary advisor failed, trying secondary",
			"error", err,
			"tier", res.Level.Tier,
		)
		if f.secondary == nil {
			return CoachNote{}, fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	if f.secondary == nil {
		return CoachNote{}, fmt.Errorf("ai: no advisor configured")
	}
	return f.secondary.Advise(ctx, res)
}
