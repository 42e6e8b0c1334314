package marketplace

import (
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

type createJobRequest struct {
	Title                     string                 `json:"title"`
	Description               string                 `json:"description"`
	TaskURL                   string                 `json:"task_url"`
	Content                   string                 `json:"content"`
	Reward                    domain.Reward          `json:"reward"`
	Keywords                  []string               `json:"keywords"`
	Qualifications            []domain.Qualification `json:"qualifications"`
	AssignmentDurationSeconds int64                  `json:"assignment_duration_seconds"`
	LifetimeSeconds           int64                  `json:"lifetime_seconds"`
	AutoApprovalDelaySeconds  int64                  `json:"auto_approval_delay_seconds"`
	Identifiers               map[string]string      `json:"identifiers"`
}

func newCreateJobRequest(req domain.JobRequest) createJobRequest {
	p := req.Policy
	return createJobRequest{
		Title:                     p.Title,
		Description:               p.Description,
		TaskURL:                   req.TaskURL,
		Content:                   req.Content,
		Reward:                    p.Reward,
		Keywords:                  p.Keywords,
		Qualifications:            p.Qualifications,
		AssignmentDurationSeconds: int64(p.Deadline / time.Second),
		LifetimeSeconds:           int64(p.Lifetime / time.Second),
		AutoApprovalDelaySeconds:  int64(p.Approval / time.Second),
		Identifiers:               req.Identifiers,
	}
}

type jobPayload struct {
	ID                        string                 `json:"id"`
	Status                    domain.JobStatus       `json:"status"`
	ExpiresAt                 time.Time              `json:"expires_at"`
	AssignmentDurationSeconds int64                  `json:"assignment_duration_seconds"`
	Reward                    domain.Reward          `json:"reward"`
	Keywords                  []string               `json:"keywords"`
	Qualifications            []domain.Qualification `json:"qualifications"`
	Identifiers               map[string]string      `json:"identifiers"`
	Submission                *domain.Submission     `json:"submission,omitempty"`
}

func (p *jobPayload) toDomain() *domain.RemoteJob {
	return &domain.RemoteJob{
		ID:                 p.ID,
		Status:             p.Status,
		ExpiresAt:          p.ExpiresAt,
		AssignmentDuration: time.Duration(p.AssignmentDurationSeconds) * time.Second,
		Reward:             p.Reward,
		Keywords:           p.Keywords,
		Qualifications:     p.Qualifications,
		Identifiers:        p.Identifiers,
		Submission:         p.Submission,
	}
}

type listResponse struct {
	Jobs      []jobPayload `json:"jobs"`
	Results   []jobPayload `json:"results"`
	NextToken string       `json:"next_token"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const codeUnreviewedContent = "UnreviewedContent"
