package domain

import "time"

// CachedResult is the local copy of a remote job seen during collection or
// retirement. Entries are removed only after the remote job is deleted.
type CachedResult struct {
	JobID            string           `gorm:"type:text;primaryKey" json:"job_id"`
	ProjectID        string           `gorm:"type:text;index:idx_cached_results_project" json:"project_id"`
	AudioURL         string           `gorm:"type:text" json:"audio_url"`
	Status           JobStatus        `gorm:"type:text" json:"status"`
	SubmissionID     string           `gorm:"type:text" json:"submission_id,omitempty"`
	SubmissionStatus SubmissionStatus `gorm:"type:text" json:"submission_status,omitempty"`
	Transcription    string           `gorm:"type:text" json:"transcription,omitempty"`
	ExpiresAt        time.Time        `json:"expires_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name for CachedResult.
func (CachedResult) TableName() string {
	return "cached_results"
}

// NewCachedResult flattens a remote job into a cache row.
func NewCachedResult(job *RemoteJob, fields IdentifierFields) *CachedResult {
	r := &CachedResult{
		JobID:     job.ID,
		ProjectID: job.ProjectID(fields),
		AudioURL:  job.AudioURL(fields),
		Status:    job.Status,
		ExpiresAt: job.ExpiresAt,
	}
	if s := job.Submission; s != nil {
		r.SubmissionID = s.ID
		r.SubmissionStatus = s.Status
		r.Transcription = s.Answers[fields.Transcription]
	}
	return r
}
