package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

// CollectReport summarizes a Collect run.
type CollectReport struct {
	Results  int // submitted or approved results on the service
	Deferred int // submissions with no local project or item to receive them
	Projects []ProjectCollection
}

// ProjectCollection is what Collect merged into one project.
type ProjectCollection struct {
	ID             string
	Name           string
	Collected      int
	Transcript     []*domain.WorkItem
	TranscriptPath string
}

// Collected returns the number of transcriptions merged across projects.
func (r *CollectReport) Collected() int {
	n := 0
	for _, p := range r.Projects {
		n += p.Collected
	}
	return n
}

// Collect approves pending submissions and merges their transcriptions into
// the owning projects. Submissions the service already approved are merged
// without another approval. Submissions are matched to projects by id and to
// items by audio URL; anything unmatched is left on the service for a
// later run.
func (e *Engine) Collect(ctx context.Context) (*CollectReport, error) {
	ctx = logger.SetOperation(ctx, "collect")
	jobs, err := e.jobs.ListResults(ctx, domain.JobFilter{Status: domain.JobStatusReviewable})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	report := &CollectReport{}
	var order []string
	groups := make(map[string][]*domain.RemoteJob)
	for _, job := range jobs {
		if !job.Collectable() {
			continue
		}
		report.Results++
		e.cacheSave(ctx, job)
		id := job.ProjectID(e.fields)
		if id == "" || job.AudioURL(e.fields) == "" {
			report.Deferred++
			e.log(ctx).WithField(logger.FieldRemoteJobID, job.ID).Debug("Skipping result without identifiers")
			continue
		}
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], job)
	}

	for _, id := range order {
		pc, deferred, err := e.collectProject(ctx, id, groups[id])
		report.Deferred += deferred
		if pc != nil && pc.Collected > 0 {
			report.Projects = append(report.Projects, *pc)
		}
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (e *Engine) collectProject(ctx context.Context, id string, jobs []*domain.RemoteJob) (*ProjectCollection, int, error) {
	ctx = logger.SetProjectID(ctx, id)
	log := e.log(ctx)

	found, err := e.projects.FindByID(id)
	if errors.Is(err, project.ErrNotFound) {
		log.WithField(logger.FieldCount, len(jobs)).Debug("No local project for results, leaving them for later")
		return nil, len(jobs), nil
	}
	if err != nil {
		return nil, 0, err
	}

	unlock, err := found.Lock(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()
	// reopen under the lock so a concurrent writer's changes are not lost
	p, err := project.Open(found.Dir())
	if err != nil {
		return nil, 0, err
	}

	pc := &ProjectCollection{ID: p.ID(), Name: p.Name()}
	deferred := 0
	l := p.Ledger()
	for _, job := range jobs {
		audioURL := job.AudioURL(e.fields)
		jobLog := log.WithFields(logger.Fields{logger.FieldRemoteJobID: job.ID, logger.FieldAudioURL: audioURL})

		item := l.Find(audioURL)
		if item == nil {
			deferred++
			jobLog.Debug("No ledger item for result")
			continue
		}
		if item.Complete() {
			jobLog.Debug("Item already transcribed, skipping result")
			continue
		}
		text := job.Submission.Answers[e.fields.Transcription]
		if text == "" {
			jobLog.Warn("Submission has no transcription, leaving it for manual review")
			continue
		}

		if job.PendingReview() {
			if err := e.jobs.Approve(ctx, job.Submission.ID); err != nil {
				return pc, deferred, fmt.Errorf("approve submission for %s: %w", audioURL, err)
			}
		}
		item.Transcription = text
		item.RemoteJobID = ""
		if err := p.Save(); err != nil {
			// approval is final; the next collect picks the approved result up again
			jobLog.WithError(err).WithField("submission_id", job.Submission.ID).
				Error("Approved submission not saved to ledger")
			return pc, deferred, fmt.Errorf("save ledger after approving %s: %w", job.ID, err)
		}
		pc.Collected++
		jobLog.Info("Collected transcription")
	}

	if pc.Collected == 0 {
		return pc, deferred, nil
	}
	pc.Transcript = p.Transcript()
	pc.TranscriptPath = p.TranscriptPath()
	if err := e.writeTranscript(p, pc.Transcript); err != nil {
		return pc, deferred, err
	}
	return pc, deferred, nil
}

func (e *Engine) writeTranscript(p *project.Project, items []*domain.WorkItem) error {
	path := p.TranscriptPath()
	tmp, err := os.CreateTemp(filepath.Dir(path), ".transcript-*.html")
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	defer os.Remove(tmp.Name())

	err = e.renderer.RenderTranscript(tmp, taskpage.Transcript{
		Title:    p.Name(),
		Subtitle: p.Subtitle(),
		Total:    p.Ledger().Len(),
		Items:    items,
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
