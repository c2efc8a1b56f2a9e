// Package email defines transactional email delivery and provides a
// Resend-backed implementation.
package email

import "context"

// AssessmentSummaryParams is the follow-up email sent once an assessment's
// coach note and achievements are ready.
type AssessmentSummaryParams struct {
	To                 string
	DisplayName        string // may be empty
	AssessmentID       string
	LevelLabel         string
	SuccessProbability int
	MonthlySavings     int64
	YearlySavings      int64
	Currency           string
	CoachSummary       string
	CoachTips          []string
	Achievements       []string // titles of newly unlocked achievements
}

// MembershipReceiptParams is the post-payment receipt.
type MembershipReceiptParams struct {
	To          string
	DisplayName string
	PlanName    string
	Amount      int64 // smallest currency unit; VND has none
	Currency    string
	ExpiresAt   string // already formatted for display
}

// Sender is what the worker and webhook handler use to send email. Tests
// inject a stub that records calls.
type Sender interface {
	// SendAssessmentSummary is called by the worker after CompleteFollowUp.
	SendAssessmentSummary(ctx context.Context, p AssessmentSummaryParams) error

	// SendMembershipReceipt is called by the webhook handler right after the
	// membership is activated.
	SendMembershipReceipt(ctx context.Context, p MembershipReceiptParams) error
}
