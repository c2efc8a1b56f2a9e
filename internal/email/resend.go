package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const resendAPIURL = "https://api.resend.com/emails"

// resendClient is the Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	apiURL     string
	fromAddr   string
	fromName   string
	baseURL    string // app URL used for links, e.g. "https://app.smokefree.vn"
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName, baseURL string) Sender {
	return newResendClient(apiKey, fromAddr, fromName, baseURL, resendAPIURL)
}

func newResendClient(apiKey, fromAddr, fromName, baseURL, apiURL string) *resendClient {
	return &resendClient{
		apiKey:   apiKey,
		apiURL:   apiURL,
		fromAddr: fromAddr,
		fromName: fromName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

func (c *resendClient) SendAssessmentSummary(ctx context.Context, p AssessmentSummaryParams) error {
	var buf bytes.Buffer
	err := summaryTmpl.Execute(&buf, map[string]any{
		"Greeting":     greeting(p.DisplayName),
		"Level":        p.LevelLabel,
		"Probability":  p.SuccessProbability,
		"Monthly":      FormatAmount(p.MonthlySavings, p.Currency),
		"Yearly":       FormatAmount(p.YearlySavings, p.Currency),
		"Summary":      p.CoachSummary,
		"Tips":         p.CoachTips,
		"Achievements": p.Achievements,
		"URL":          fmt.Sprintf("%s/assessments/%s", c.baseURL, p.AssessmentID),
	})
	if err != nil {
		return fmt.Errorf("email: render summary: %w", err)
	}
	return c.send(ctx, p.To, "Your smoke-free assessment results", buf.String())
}

func (c *resendClient) SendMembershipReceipt(ctx context.Context, p MembershipReceiptParams) error {
	var buf bytes.Buffer
	err := receiptTmpl.Execute(&buf, map[string]any{
		"Greeting":  greeting(p.DisplayName),
		"Plan":      p.PlanName,
		"Amount":    FormatAmount(p.Amount, p.Currency),
		"ExpiresAt": p.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("email: render receipt: %w", err)
	}
	return c.send(ctx, p.To, fmt.Sprintf("Membership confirmed: %s", p.PlanName), buf.String())
}

// FormatAmount renders an amount in the currency's smallest unit, grouped the
// Vietnamese way for VND ("99.000 ₫").
func FormatAmount(amount int64, currency string) string {
	p := message.NewPrinter(language.Vietnamese)
	switch strings.ToLower(currency) {
	case "vnd", "":
		return p.Sprintf("%d ₫", amount)
	default:
		return p.Sprintf("%.2f %s", float64(amount)/100, strings.ToUpper(currency))
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hello"
	}
	return "Hello " + name
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, to, subject, html string) error {
	reqBody := resendRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr),
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}
	return nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

var summaryTmpl = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Your assessment results</h2>
  <p>{{.Greeting}},</p>
  <p>Your result: <strong>{{.Level}}</strong>. Estimated chance of quitting successfully:
  <strong>{{.Probability}}%</strong>.</p>
  <p>Quitting saves you about <strong>{{.Monthly}}</strong> a month and
  <strong>{{.Yearly}}</strong> a year.</p>
  {{if .Summary}}<h3>From your coach</h3>
  <p>{{.Summary}}</p>{{end}}
  {{if .Tips}}<ul>{{range .Tips}}
    <li>{{.}}</li>{{end}}
  </ul>{{end}}
  {{if .Achievements}}<h3>New achievements</h3>
  <ul>{{range .Achievements}}
    <li>{{.}}</li>{{end}}
  </ul>{{end}}
  <p style="margin: 32px 0;">
    <a href="{{.URL}}"
       style="background: #0f766e; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      View full result
    </a>
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">Smoke-free · You can reply to this email to reach a coach</p>
</body>
</html>`))

var receiptTmpl = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Membership confirmed</h2>
  <p>{{.Greeting}},</p>
  <p>We have received your payment of <strong>{{.Amount}}</strong> for the
  <strong>{{.Plan}}</strong> plan.{{if .ExpiresAt}} Your membership is active until {{.ExpiresAt}}.{{end}}</p>
  <p style="color: #6b7280; font-size: 14px;">If you have any questions, reply to this email.</p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">Smoke-free · Membership</p>
</body>
</html>`))
