package domain

import "time"

// UploadStatus records whether a work item's audio asset is on the asset host.
// Values include UploadStatusNo, UploadStatusYes, and UploadStatusMaybe.
type UploadStatus string

const (
	UploadStatusNo    UploadStatus = "no"
	UploadStatusYes   UploadStatus = "yes"
	UploadStatusMaybe UploadStatus = "maybe"
)

// ParseUploadStatus maps a ledger cell to an UploadStatus.
// Empty and unrecognized cells are treated as not uploaded.
func ParseUploadStatus(s string) UploadStatus {
	switch UploadStatus(s) {
	case UploadStatusYes:
		return UploadStatusYes
	case UploadStatusMaybe:
		return UploadStatusMaybe
	default:
		return UploadStatusNo
	}
}

// WorkItem is one audio chunk's transcription record in a project ledger.
// Zero values mean "absent": an empty RemoteJobID has never been published,
// a zero JobExpiresAt has no live job window.
type WorkItem struct {
	ProjectID     string
	AudioURL      string
	TaskURL       string
	RemoteJobID   string
	JobExpiresAt  time.Time
	JobDuration   time.Duration
	Transcription string
	AudioUploaded UploadStatus

	// Extra holds ledger columns this package does not know about.
	// They are written back unchanged.
	Extra map[string]string
}

// JobLive reports whether a remote job window is still open at now.
// A job is live while expiresAt plus the assignment duration lies in the future;
// a worker who accepted just before expiry still has the full duration to submit.
func JobLive(expiresAt time.Time, duration time.Duration, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.Add(duration).After(now)
}

// Complete reports whether a transcription has been collected for the item.
func (w *WorkItem) Complete() bool {
	return w.Transcription != ""
}

// HasActiveJob reports whether the item has an unexpired remote job.
func (w *WorkItem) HasActiveJob(now time.Time) bool {
	return w.RemoteJobID != "" && JobLive(w.JobExpiresAt, w.JobDuration, now)
}

// NeedsPublish reports whether the item needs a new remote job.
// Items with an expired job are republished, never resurrected.
func (w *WorkItem) NeedsPublish(now time.Time) bool {
	return !w.Complete() && !w.HasActiveJob(now)
}

// AssignJob records a freshly created remote job on the item.
func (w *WorkItem) AssignJob(job *RemoteJob, taskURL string) {
	w.RemoteJobID = job.ID
	w.JobExpiresAt = job.ExpiresAt
	w.JobDuration = job.AssignmentDuration
	w.TaskURL = taskURL
}

// ClearJobWindow drops the expiry fields but keeps the job ID, which is still
// needed to collect a result that was approved before retirement.
func (w *WorkItem) ClearJobWindow() {
	w.JobExpiresAt = time.Time{}
	w.JobDuration = 0
}

// Clone returns a deep copy of the item.
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	if w.Extra != nil {
		c.Extra = make(map[string]string, len(w.Extra))
		for k, v := range w.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}
