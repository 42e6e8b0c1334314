package domain

import "time"

// JobStatus represents the marketplace-side status of a remote job.
// Values include JobStatusAssignable, JobStatusUnassignable, JobStatusReviewable,
// JobStatusReviewing, and JobStatusDisposed.
type JobStatus string

const (
	JobStatusAssignable   JobStatus = "Assignable"
	JobStatusUnassignable JobStatus = "Unassignable"
	JobStatusReviewable   JobStatus = "Reviewable"
	JobStatusReviewing    JobStatus = "Reviewing"
	JobStatusDisposed     JobStatus = "Disposed"
)

// SubmissionStatus represents the owner's decision on a worker submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "Submitted"
	SubmissionStatusApproved  SubmissionStatus = "Approved"
	SubmissionStatusRejected  SubmissionStatus = "Rejected"
)

// Submission is a worker's completed answer to a remote job.
type Submission struct {
	ID          string            `json:"id"`
	WorkerID    string            `json:"worker_id"`
	Status      SubmissionStatus  `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Answers     map[string]string `json:"answers"`
}

// RemoteJob is the marketplace task object for one work item.
// Identifiers are the hidden form fields embedded in the task page; the
// marketplace echoes them back so jobs can be matched without a shared database.
type RemoteJob struct {
	ID                 string
	Status             JobStatus
	ExpiresAt          time.Time
	AssignmentDuration time.Duration
	Reward             Reward
	Keywords           []string
	Qualifications     []Qualification
	Identifiers        map[string]string
	Submission         *Submission
}

// Expired reports whether the job window has closed at now.
func (j *RemoteJob) Expired(now time.Time) bool {
	return !JobLive(j.ExpiresAt, j.AssignmentDuration, now)
}

// ExpiredAndUnsubmitted reports whether the job closed without any worker submitting.
func (j *RemoteJob) ExpiredAndUnsubmitted(now time.Time) bool {
	return j.Expired(now) && j.Submission == nil
}

// Rejected reports whether the job's submission was rejected by the owner.
func (j *RemoteJob) Rejected() bool {
	return j.Submission != nil && j.Submission.Status == SubmissionStatusRejected
}

// PendingReview reports whether the job carries a submission awaiting a decision.
func (j *RemoteJob) PendingReview() bool {
	return j.Submission != nil && j.Submission.Status == SubmissionStatusSubmitted
}

// Collectable reports whether the job's submission can be merged locally:
// either awaiting review or already approved.
func (j *RemoteJob) Collectable() bool {
	if j.Submission == nil {
		return false
	}
	return j.Submission.Status == SubmissionStatusSubmitted || j.Submission.Status == SubmissionStatusApproved
}

// Identifier returns the named identifier field. Submission answers win over
// the identifiers recorded at creation time.
func (j *RemoteJob) Identifier(name string) string {
	if j.Submission != nil {
		if v := j.Submission.Answers[name]; v != "" {
			return v
		}
	}
	return j.Identifiers[name]
}

// ProjectID returns the owning project identifier, or "" when unknown.
func (j *RemoteJob) ProjectID(fields IdentifierFields) string {
	return j.Identifier(fields.ProjectID)
}

// AudioURL returns the audio URL identifier, or "" when unknown.
func (j *RemoteJob) AudioURL(fields IdentifierFields) string {
	return j.Identifier(fields.AudioURL)
}

// Owned reports whether the job was created by this tool, judged by the
// presence of both identifier fields. Jobs from other tools on a shared
// account never carry them.
func (j *RemoteJob) Owned(fields IdentifierFields) bool {
	return j.ProjectID(fields) != "" && j.AudioURL(fields) != ""
}

// Dead reports whether an owned job is no longer useful: it either expired
// with no submission or its submission was rejected.
func (j *RemoteJob) Dead(now time.Time, fields IdentifierFields) bool {
	return (j.ExpiredAndUnsubmitted(now) || j.Rejected()) && j.Owned(fields)
}

// JobRequest is the input for creating a remote job.
type JobRequest struct {
	TaskURL     string
	Content     string
	Policy      Policy
	Identifiers map[string]string
}

// JobFilter narrows remote job listings. Empty fields match everything.
type JobFilter struct {
	ProjectID        string
	Status           JobStatus
	SubmissionStatus SubmissionStatus
}
