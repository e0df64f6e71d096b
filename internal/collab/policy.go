package collab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shaiso/gradeflow/internal/domain"
)

// Policy выносит финальное решение по оценённой задаче.
type Policy interface {
	Decide(ctx context.Context, verdict *domain.GradedVerdict) (domain.Decision, error)
}

// OPAPolicy — клиент Open Policy Agent.
//
// Протокол: POST {URL} {"input": <graded envelope>} →
// {"result": {"status", "final_grade", "justification", "feedback"}}.
type OPAPolicy struct {
	url        string
	httpClient *http.Client
}

// NewOPAPolicy создаёт клиент OPA для data endpoint, например
// http://policy_engine:8181/v1/data/policy/eval.
func NewOPAPolicy(url string, client *http.Client) *OPAPolicy {
	return &OPAPolicy{url: url, httpClient: newHTTPClient(client)}
}

type opaRequest struct {
	Input *domain.GradedVerdict `json:"input"`
}

type opaResponse struct {
	Result *domain.Decision `json:"result"`
}

// Decide запрашивает решение. Non-2xx, сетевая ошибка, пустой результат
// или неизвестный статус — ошибка.
func (p *OPAPolicy) Decide(ctx context.Context, verdict *domain.GradedVerdict) (domain.Decision, error) {
	if p.url == "" {
		return domain.Decision{}, fmt.Errorf("%w: POLICY_URL is empty", ErrNotConfigured)
	}

	var resp opaResponse
	if err := postJSON(ctx, p.httpClient, p.url, nil, opaRequest{Input: verdict}, &resp); err != nil {
		return domain.Decision{}, err
	}
	if resp.Result == nil {
		return domain.Decision{}, fmt.Errorf("%w: empty policy result", ErrMalformedResponse)
	}

	decision := *resp.Result
	decision.Status = domain.DecisionStatus(strings.ToUpper(string(decision.Status)))
	if !decision.Status.IsValid() {
		return domain.Decision{}, fmt.Errorf("%w: unknown decision status %q", ErrMalformedResponse, resp.Result.Status)
	}

	return decision, nil
}

// StaticPolicy — пороговая policy без внешнего сервиса.
//
// ERROR, если оценщик сообщил об ошибке или его уверенность ниже MinConfidence;
// APPROVED, если балл не ниже PassScore; иначе REJECTED.
type StaticPolicy struct {
	PassScore     float64
	MinConfidence float64
}

// Decide выносит решение локально. Ошибку не возвращает.
func (p StaticPolicy) Decide(_ context.Context, v *domain.GradedVerdict) (domain.Decision, error) {
	grade := v.VerdictData

	var reason string
	switch {
	case grade.Error != "":
		reason = "grader reported an error: " + grade.Error
	case v.AgentConfidence < p.MinConfidence:
		reason = fmt.Sprintf("grading confidence %.2f below %.2f", v.AgentConfidence, p.MinConfidence)
	}
	if reason != "" {
		return domain.Decision{
			Status:        domain.DecisionError,
			FinalGrade:    grade.Score,
			Justification: reason + ": " + grade.Justification,
			Feedback:      grade.FeedbackForStudent,
		}, nil
	}

	status := domain.DecisionRejected
	if grade.Score >= p.PassScore {
		status = domain.DecisionApproved
	}

	return domain.Decision{
		Status:        status,
		FinalGrade:    grade.Score,
		Justification: grade.Justification,
		Feedback:      grade.FeedbackForStudent,
	}, nil
}
