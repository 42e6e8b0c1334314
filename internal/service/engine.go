package service

import (
	"context"
	"io"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/storage"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

// JobService is the remote job service.
type JobService interface {
	Create(ctx context.Context, req domain.JobRequest) (*domain.RemoteJob, error)
	FetchAll(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error)
	Delete(ctx context.Context, jobID string) error
	ListResults(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error)
	Approve(ctx context.Context, submissionID string) error
}

// AssetChannel hosts audio chunks and task pages.
type AssetChannel interface {
	Put(ctx context.Context, assets []storage.Asset) ([]string, error)
	Remove(ctx context.Context, urls []string) error
}

// Renderer produces task pages and transcripts.
type Renderer interface {
	RenderTask(item *domain.WorkItem, policy domain.Policy) (string, error)
	RenderTranscript(w io.Writer, t taskpage.Transcript) error
}

// ResultCache keeps a local copy of remote jobs seen during collect and retire.
type ResultCache interface {
	Save(ctx context.Context, job *domain.RemoteJob) error
	Delete(ctx context.Context, jobID string) error
}

// ProjectLocator finds a project by its id.
type ProjectLocator interface {
	FindByID(id string) (*project.Project, error)
}

// Options configures an Engine.
type Options struct {
	Jobs     JobService
	Assets   AssetChannel
	Renderer Renderer
	Cache    ResultCache // optional
	Projects ProjectLocator
	Fields   domain.IdentifierFields
	Now      func() time.Time
}

// Engine reconciles project ledgers with the remote job service. It holds
// only borrowed references and lives for one operation.
type Engine struct {
	jobs     JobService
	assets   AssetChannel
	renderer Renderer
	cache    ResultCache
	projects ProjectLocator
	fields   domain.IdentifierFields
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		jobs:     opts.Jobs,
		assets:   opts.Assets,
		renderer: opts.Renderer,
		cache:    opts.Cache,
		projects: opts.Projects,
		fields:   opts.Fields,
		now:      opts.Now,
	}
	if e.cache == nil {
		e.cache = noCache{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.fields.ProjectID == "" || e.fields.AudioURL == "" || e.fields.Transcription == "" {
		e.fields = domain.DefaultIdentifierFields()
	}
	return e
}

func (e *Engine) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx)
}

func (e *Engine) cacheSave(ctx context.Context, job *domain.RemoteJob) {
	if err := e.cache.Save(ctx, job); err != nil {
		e.log(ctx).WithField(logger.FieldRemoteJobID, job.ID).WithError(err).Warn("Failed to cache result")
	}
}

func (e *Engine) cacheDelete(ctx context.Context, jobID string) {
	if err := e.cache.Delete(ctx, jobID); err != nil {
		e.log(ctx).WithField(logger.FieldRemoteJobID, jobID).WithError(err).Warn("Failed to drop cached result")
	}
}

type noCache struct{}

func (noCache) Save(context.Context, *domain.RemoteJob) error { return nil }
func (noCache) Delete(context.Context, string) error          { return nil }

// Partitioned splits a ledger by what Publish has to do with each item.
type Partitioned struct {
	Needed      []*domain.WorkItem
	Complete    []*domain.WorkItem
	Outstanding []*domain.WorkItem // unexpired job, waiting for a worker
}

// Partition sorts items into needed, complete and outstanding, keeping
// ledger order within each group.
func Partition(items []*domain.WorkItem, now time.Time) Partitioned {
	var p Partitioned
	for _, item := range items {
		switch {
		case item.Complete():
			p.Complete = append(p.Complete, item)
		case item.HasActiveJob(now):
			p.Outstanding = append(p.Outstanding, item)
		default:
			p.Needed = append(p.Needed, item)
		}
	}
	return p
}
