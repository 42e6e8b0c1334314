package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/storage"
)

// PublishReport summarizes a Publish run.
type PublishReport struct {
	Total       int
	Complete    int
	Outstanding int
	Published   int
	JobIDs      []string

	// AudioUploaded is set when the audio chunks were (re)uploaded this run.
	AudioUploaded bool
	// StaleRemovalErr is the failure to delete task pages of expired jobs.
	// It does not fail the run.
	StaleRemovalErr error
}

// Publish gives every item that needs one a fresh remote job. Complete items
// and items with an unexpired job are never touched. Job creation is all or
// nothing: on the first failure every job created by this call is deleted and
// the ledger is left as it was.
func (e *Engine) Publish(ctx context.Context, p *project.Project, policy domain.Policy) (*PublishReport, error) {
	ctx = logger.SetProjectID(logger.SetOperation(ctx, "publish"), p.ID())
	log := e.log(ctx)
	l := p.Ledger()

	needed := Partition(l.Items(), e.now()).Needed
	report := &PublishReport{}
	if needsAudioUpload(p, needed) {
		if err := e.uploadAudio(ctx, p); err != nil {
			return nil, err
		}
		report.AudioUploaded = true
	}

	parts := Partition(l.Items(), e.now())
	report.Total = l.Len()
	report.Complete = len(parts.Complete)
	report.Outstanding = len(parts.Outstanding)
	if len(parts.Needed) == 0 {
		log.Info("Nothing to publish")
		return report, nil
	}

	work := make([]*domain.WorkItem, len(parts.Needed))
	for i, item := range parts.Needed {
		work[i] = item.Clone()
	}

	report.StaleRemovalErr = e.removeStalePages(ctx, work)

	var tx TxLog
	contents, err := e.uploadPages(ctx, p, work, policy, &tx)
	if err != nil {
		return nil, err
	}

	for i, item := range work {
		start := time.Now()
		job, err := e.jobs.Create(ctx, domain.JobRequest{
			TaskURL:     item.TaskURL,
			Content:     contents[i],
			Policy:      policy,
			Identifiers: e.fields.Identifiers(item),
		})
		if err != nil {
			e.rollback(ctx, &tx)
			return nil, fmt.Errorf("create job for %s: %w", item.AudioURL, err)
		}
		tx.Record("delete job "+job.ID, func(ctx context.Context) error {
			if err := e.jobs.Delete(ctx, job.ID); err != nil && !domain.IsConsistency(err) {
				return err
			}
			return nil
		})
		item.AssignJob(job, item.TaskURL)
		item.AudioUploaded = domain.UploadStatusYes
		report.JobIDs = append(report.JobIDs, job.ID)

		logger.With(logger.Fields{
			logger.FieldRemoteJobID: job.ID,
			logger.FieldAudioURL:    item.AudioURL,
		}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Published job %d of %d", i+1, len(work))
	}

	snapshot := l.Snapshot()
	if err := l.Replace(work...); err != nil {
		e.rollback(ctx, &tx)
		return nil, err
	}
	if err := p.Save(); err != nil {
		l.Restore(snapshot)
		e.rollback(ctx, &tx)
		return nil, fmt.Errorf("save ledger: %w", err)
	}
	tx.Commit()

	report.Published = len(work)
	return report, nil
}

// needsAudioUpload reports whether the chunk set has to go up before
// publishing: the project has never been put online, or an item that is
// about to be published has no confirmed upload.
func needsAudioUpload(p *project.Project, needed []*domain.WorkItem) bool {
	if !p.AudioOnline() {
		return true
	}
	for _, item := range needed {
		if item.AudioUploaded != domain.UploadStatusYes {
			return true
		}
	}
	return false
}

// uploadAudio uploads the full chunk set. Items are marked maybe while the
// upload is in flight, so an interrupted run re-uploads next time. The
// result is saved at once; uploaded audio is not part of the job batch.
func (e *Engine) uploadAudio(ctx context.Context, p *project.Project) error {
	chunks, err := p.AudioChunks()
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("project %s has no audio chunks in %s", p.Name(), p.ChunkDir())
	}

	l := p.Ledger()
	for _, item := range l.Items() {
		if item.AudioUploaded != domain.UploadStatusYes {
			item.AudioUploaded = domain.UploadStatusMaybe
		}
	}
	if err := l.Save(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	start := time.Now()
	urls, err := e.assets.Put(ctx, chunks)
	if err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}

	p.SetAudioURLs(urls)
	if err := p.AddItems(urls, domain.UploadStatusYes); err != nil {
		return err
	}
	uploaded := make(map[string]bool, len(urls))
	for _, u := range urls {
		uploaded[u] = true
	}
	for _, item := range l.Items() {
		if uploaded[item.AudioURL] {
			item.AudioUploaded = domain.UploadStatusYes
		} else if item.AudioUploaded == domain.UploadStatusMaybe {
			e.log(ctx).WithField(logger.FieldAudioURL, item.AudioURL).Warn("Ledger item has no matching audio chunk")
		}
	}
	if err := p.Save(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}

	logger.With(logger.Fields{logger.FieldCount: len(urls)}).
		WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Uploaded audio")
	return nil
}

// removeStalePages deletes the task pages of items being republished. Pages
// already gone count as removed.
func (e *Engine) removeStalePages(ctx context.Context, work []*domain.WorkItem) error {
	var stale []string
	for _, item := range work {
		if item.TaskURL != "" {
			stale = append(stale, item.TaskURL)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	err := e.assets.Remove(ctx, stale)
	var uploadErr *domain.UploadError
	if err == nil || (errors.As(err, &uploadErr) && uploadErr.OnlyMissing()) {
		e.log(ctx).WithField(logger.FieldCount, len(stale)).Debug("Removed stale task pages")
		return nil
	}
	e.log(ctx).WithError(err).Warn("Failed to remove stale task pages")
	return err
}

// uploadPages renders and uploads one task page per item and writes the page
// URLs back onto the items, by position.
func (e *Engine) uploadPages(ctx context.Context, p *project.Project, work []*domain.WorkItem, policy domain.Policy, tx *TxLog) ([]string, error) {
	contents := make([]string, len(work))
	assets := make([]storage.Asset, len(work))
	for i, item := range work {
		page, err := e.renderer.RenderTask(item, policy)
		if err != nil {
			return nil, err
		}
		contents[i] = page
		name := p.RemoteName(storage.CanonicalBaseName(item.AudioURL) + ".html")
		assets[i] = storage.BytesAsset(name, "text/html; charset=utf-8", []byte(page))
	}

	urls, err := e.assets.Put(ctx, assets)
	if err != nil {
		return nil, fmt.Errorf("upload task pages: %w", err)
	}
	for i, item := range work {
		item.TaskURL = urls[i]
	}
	tx.Record("remove task pages", func(ctx context.Context) error {
		return e.assets.Remove(ctx, urls)
	})
	return contents, nil
}

func (e *Engine) rollback(ctx context.Context, tx *TxLog) {
	n := tx.Len()
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		e.log(ctx).WithError(err).Error("Rollback incomplete, remote state may need manual cleanup")
		return
	}
	e.log(ctx).WithField(logger.FieldCount, n).Warn("Rolled back publish")
}
