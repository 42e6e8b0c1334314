package service

import (
	"context"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/project"
)

// ProjectSummary is the progress of one project.
type ProjectSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Dir         string    `json:"dir"`
	CreatedAt   time.Time `json:"created_at"`
	AudioOnline bool      `json:"audio_online"`
	Total       int       `json:"total"`
	Complete    int       `json:"complete"`
	Outstanding int       `json:"outstanding"`
	Needed      int       `json:"needed"`
}

// ItemStatus is one ledger row as reported by status views.
type ItemStatus struct {
	AudioURL      string              `json:"audio_url"`
	TaskURL       string              `json:"task_url,omitempty"`
	RemoteJobID   string              `json:"remote_job_id,omitempty"`
	JobExpiresAt  *time.Time          `json:"job_expires_at,omitempty"`
	State         string              `json:"state"`
	AudioUploaded domain.UploadStatus `json:"audio_uploaded"`
}

const (
	StateComplete    = "complete"
	StateOutstanding = "outstanding"
	StateNeeded      = "needed"
)

// ProjectDetail is a summary plus every item.
type ProjectDetail struct {
	ProjectSummary
	Items []ItemStatus `json:"items"`
}

// Summarize computes the progress of p at now.
func Summarize(p *project.Project, now time.Time) ProjectSummary {
	items := p.Ledger().Items()
	parts := Partition(items, now)
	return ProjectSummary{
		ID:          p.ID(),
		Name:        p.Name(),
		Subtitle:    p.Subtitle(),
		Dir:         p.Dir(),
		CreatedAt:   p.CreatedAt(),
		AudioOnline: p.AudioOnline(),
		Total:       len(items),
		Complete:    len(parts.Complete),
		Outstanding: len(parts.Outstanding),
		Needed:      len(parts.Needed),
	}
}

// ItemState names where an item stands.
func ItemState(item *domain.WorkItem, now time.Time) string {
	switch {
	case item.Complete():
		return StateComplete
	case item.HasActiveJob(now):
		return StateOutstanding
	default:
		return StateNeeded
	}
}

// ProjectLister lists and finds projects.
type ProjectLister interface {
	List() ([]*project.Project, error)
	FindByID(id string) (*project.Project, error)
}

// ResultLister reads the local result cache.
type ResultLister interface {
	ListByProject(ctx context.Context, projectID string) ([]domain.CachedResult, error)
}

// StatusService answers read-only progress queries.
type StatusService struct {
	projects ProjectLister
	results  ResultLister
	now      func() time.Time
}

// NewStatusService creates a StatusService. results may be nil when no
// result cache is configured.
func NewStatusService(projects ProjectLister, results ResultLister) *StatusService {
	return &StatusService{projects: projects, results: results, now: time.Now}
}

// List summarizes every project.
func (s *StatusService) List(ctx context.Context) ([]ProjectSummary, error) {
	projects, err := s.projects.List()
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, Summarize(p, now))
	}
	return out, nil
}

// Get returns the detail of one project.
func (s *StatusService) Get(ctx context.Context, id string) (*ProjectDetail, error) {
	p, err := s.projects.FindByID(id)
	if err != nil {
		return nil, err
	}
	return Detail(p, s.now()), nil
}

// Detail lists every item of p with its state at now.
func Detail(p *project.Project, now time.Time) *ProjectDetail {
	detail := &ProjectDetail{ProjectSummary: Summarize(p, now)}
	for _, item := range p.Ledger().Items() {
		st := ItemStatus{
			AudioURL:      item.AudioURL,
			TaskURL:       item.TaskURL,
			RemoteJobID:   item.RemoteJobID,
			State:         ItemState(item, now),
			AudioUploaded: item.AudioUploaded,
		}
		if !item.JobExpiresAt.IsZero() {
			ts := item.JobExpiresAt
			st.JobExpiresAt = &ts
		}
		detail.Items = append(detail.Items, st)
	}
	return detail
}

// Transcript returns the transcribed items of one project in ledger order.
func (s *StatusService) Transcript(ctx context.Context, id string) (*project.Project, []*domain.WorkItem, error) {
	p, err := s.projects.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Transcript(), nil
}

// Results lists cached remote results, optionally for one project.
func (s *StatusService) Results(ctx context.Context, projectID string) ([]domain.CachedResult, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.ListByProject(ctx, projectID)
}
