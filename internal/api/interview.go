package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rbright/rehearse/internal/failure"
)

func requireSession(op, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%s: %w", op, failure.Validation("session id is required"))
	}
	return nil
}

// CurrentQuestion fetches the question the session is positioned on.
func (c *Client) CurrentQuestion(ctx context.Context, sessionID string) (Question, error) {
	const op = "fetch current question"
	if err := requireSession(op, sessionID); err != nil {
		return Question{}, err
	}

	var out Question
	err := c.do(ctx, call{
		op:            op,
		method:        http.MethodGet,
		path:          "/api/interview/question",
		query:         url.Values{"session_id": {sessionID}},
		sessionScoped: true,
	}, &out)
	if err != nil {
		return Question{}, err
	}
	if !out.Completed && strings.TrimSpace(out.Text) == "" {
		return Question{}, fmt.Errorf("%s: %w: response has no question", op, failure.ErrServer)
	}
	return out, nil
}

// SubmitAnswer sends the finalized answer for the current question. Empty
// answers are rejected before any request is made.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, answer string) (AnswerResult, error) {
	const op = "submit answer"
	if err := requireSession(op, sessionID); err != nil {
		return AnswerResult{}, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return AnswerResult{}, fmt.Errorf("%s: %w", op, failure.Validation("answer is required"))
	}

	body, err := c.jsonBody(map[string]string{"session_id": sessionID, "answer": answer})
	if err != nil {
		return AnswerResult{}, err
	}
	var out AnswerResult
	if err := c.do(ctx, call{
		op:            op,
		method:        http.MethodPost,
		path:          "/api/interview/answer",
		body:          body,
		sessionScoped: true,
	}, &out); err != nil {
		return AnswerResult{}, err
	}
	return out, nil
}

// GenerateReport asks the service to evaluate a completed session.
func (c *Client) GenerateReport(ctx context.Context, sessionID string) (Report, error) {
	const op = "generate report"
	if err := requireSession(op, sessionID); err != nil {
		return Report{}, err
	}

	body, err := c.jsonBody(map[string]string{"session_id": sessionID})
	if err != nil {
		return Report{}, err
	}
	var out struct {
		Report   Report `json:"report"`
		ReportID int    `json:"report_id"`
	}
	if err := c.do(ctx, call{
		op:            op,
		method:        http.MethodPost,
		path:          "/api/report/generate",
		body:          body,
		sessionScoped: true,
	}, &out); err != nil {
		return Report{}, err
	}
	return out.Report, nil
}

// ReportHistory lists previously generated reports.
func (c *Client) ReportHistory(ctx context.Context) ([]ReportSummary, error) {
	var out []ReportSummary
	if err := c.do(ctx, call{
		op:     "fetch report history",
		method: http.MethodGet,
		path:   "/api/profile/reports",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportDetail fetches a previously generated report.
func (c *Client) ReportDetail(ctx context.Context, sessionID string) (Report, error) {
	const op = "fetch report"
	if err := requireSession(op, sessionID); err != nil {
		return Report{}, err
	}

	var out struct {
		Report Report `json:"report"`
	}
	if err := c.do(ctx, call{
		op:            op,
		method:        http.MethodGet,
		path:          "/api/report/" + url.PathEscape(sessionID),
		sessionScoped: true,
	}, &out); err != nil {
		return Report{}, err
	}
	return out.Report, nil
}
