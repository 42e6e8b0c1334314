package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/project"
)

// RetireReport summarizes a retire run.
type RetireReport struct {
	Candidates   int
	Deleted      []string
	Failures     []domain.ItemFailure
	AudioRemoved bool
}

// deleteJobs deletes every candidate, continuing past failures. A job the
// service no longer knows counts as deleted. Cache entries are dropped only
// for deleted jobs.
func (e *Engine) deleteJobs(ctx context.Context, candidates []*domain.RemoteJob, report *RetireReport) {
	report.Candidates = len(candidates)
	for _, job := range candidates {
		jobLog := e.log(ctx).WithField(logger.FieldRemoteJobID, job.ID)
		err := e.jobs.Delete(ctx, job.ID)
		switch {
		case err == nil:
			jobLog.Info("Deleted remote job")
		case domain.IsConsistency(err):
			jobLog.Debug("Remote job already gone")
		default:
			if domain.IsUnreviewedContent(err) {
				jobLog.Warn("Remote job has an unreviewed submission, run collect first")
			} else {
				jobLog.WithError(err).Warn("Failed to delete remote job")
			}
			report.Failures = append(report.Failures, domain.ItemFailure{ID: job.ID, Err: err})
			continue
		}
		report.Deleted = append(report.Deleted, job.ID)
		e.cacheDelete(ctx, job.ID)
	}
}

func (r *RetireReport) aggregate(op string) error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &domain.AggregateError{Op: op, Attempted: r.Candidates, Failures: r.Failures}
}

func (r *RetireReport) failed(jobID string) bool {
	for _, f := range r.Failures {
		if f.ID == jobID {
			return true
		}
	}
	return false
}

// RetireProject deletes every remote job of a finished project and then its
// hosted audio and task pages. Items keep their job id, which is still needed
// to collect a result approved before retirement, but lose their job window.
// Items whose job could not be deleted are left untouched, and the audio
// stays up until every job is gone.
func (e *Engine) RetireProject(ctx context.Context, p *project.Project) (*RetireReport, error) {
	ctx = logger.SetProjectID(logger.SetOperation(ctx, "retire"), p.ID())

	jobs, err := e.jobs.FetchAll(ctx, domain.JobFilter{ProjectID: p.ID()})
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	var candidates []*domain.RemoteJob
	for _, job := range jobs {
		if job.Owned(e.fields) && job.ProjectID(e.fields) == p.ID() {
			candidates = append(candidates, job)
		}
	}

	report := &RetireReport{}
	e.deleteJobs(ctx, candidates, report)

	l := p.Ledger()
	for _, item := range l.Items() {
		if item.RemoteJobID != "" && !report.failed(item.RemoteJobID) {
			item.ClearJobWindow()
		}
	}
	if err := p.Save(); err != nil {
		return report, fmt.Errorf("save ledger: %w", err)
	}
	if err := report.aggregate("retire " + p.Name()); err != nil {
		return report, err
	}

	if err := e.removeProjectAssets(ctx, p); err != nil {
		return report, err
	}
	report.AudioRemoved = true
	return report, nil
}

func (e *Engine) removeProjectAssets(ctx context.Context, p *project.Project) error {
	l := p.Ledger()
	urls := p.AudioURLs()
	for _, item := range l.Items() {
		if item.TaskURL != "" {
			urls = append(urls, item.TaskURL)
		}
	}
	if len(urls) > 0 {
		err := e.assets.Remove(ctx, urls)
		var uploadErr *domain.UploadError
		switch {
		case err == nil:
			e.log(ctx).WithField(logger.FieldCount, len(urls)).Info("Removed remote audio and task pages")
		case errors.As(err, &uploadErr) && uploadErr.OnlyMissing():
			e.log(ctx).WithField(logger.FieldCount, len(uploadErr.Failures)).Info("Remote files already removed")
		default:
			return fmt.Errorf("can't remove remote audio files, check the storage config and retry: %w", err)
		}
	}

	p.SetAudioURLs(nil)
	for _, item := range l.Items() {
		item.AudioUploaded = domain.UploadStatusNo
		item.TaskURL = ""
	}
	if err := p.Save(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// RetireDead deletes every job created by this tool, across all projects,
// that expired without a submission or whose submission was rejected. Every
// job seen is cached first. Ledger items of deleted jobs lose their job so
// the next publish gives them a new one.
func (e *Engine) RetireDead(ctx context.Context) (*RetireReport, error) {
	ctx = logger.SetOperation(ctx, "retire_dead")
	now := e.now()

	jobs, err := e.jobs.FetchAll(ctx, domain.JobFilter{})
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	var dead []*domain.RemoteJob
	for _, job := range jobs {
		e.cacheSave(ctx, job)
		if job.Dead(now, e.fields) {
			dead = append(dead, job)
		}
	}

	report := &RetireReport{}
	e.deleteJobs(ctx, dead, report)
	e.releaseDeadItems(ctx, dead, report)
	return report, report.aggregate("retire dead jobs")
}

func (e *Engine) releaseDeadItems(ctx context.Context, dead []*domain.RemoteJob, report *RetireReport) {
	byProject := make(map[string][]*domain.RemoteJob)
	for _, job := range dead {
		if !report.failed(job.ID) {
			id := job.ProjectID(e.fields)
			byProject[id] = append(byProject[id], job)
		}
	}
	for id, jobs := range byProject {
		log := e.log(logger.SetProjectID(ctx, id))
		found, err := e.projects.FindByID(id)
		if err != nil {
			log.WithError(err).Debug("No local project for retired jobs")
			continue
		}
		if err := e.releaseItems(ctx, found, jobs); err != nil {
			log.WithError(err).Warn("Failed to update ledger for retired jobs")
		}
	}
}

func (e *Engine) releaseItems(ctx context.Context, found *project.Project, jobs []*domain.RemoteJob) error {
	unlock, err := found.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	p, err := project.Open(found.Dir())
	if err != nil {
		return err
	}

	changed := false
	for _, job := range jobs {
		item := p.Ledger().Find(job.AudioURL(e.fields))
		if item == nil || item.RemoteJobID != job.ID || item.Complete() {
			continue
		}
		item.RemoteJobID = ""
		item.ClearJobWindow()
		changed = true
	}
	if !changed {
		return nil
	}
	return p.Save()
}
