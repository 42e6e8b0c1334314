package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestJobLive(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		duration  time.Duration
		want      bool
	}{
		{name: "never published", want: false},
		{name: "expires later", expiresAt: now.Add(time.Hour), want: true},
		{name: "expired but within duration", expiresAt: now.Add(-time.Hour), duration: 3 * time.Hour, want: true},
		{name: "expired past duration", expiresAt: now.Add(-4 * time.Hour), duration: 3 * time.Hour, want: false},
		{name: "closes exactly now", expiresAt: now.Add(-time.Hour), duration: time.Hour, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := JobLive(tc.expiresAt, tc.duration, now); got != tc.want {
				t.Errorf("JobLive() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWorkItemNeedsPublish(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	complete := &WorkItem{AudioURL: "a", Transcription: "hello"}
	active := &WorkItem{AudioURL: "b", RemoteJobID: "job-b", JobExpiresAt: now.Add(time.Hour)}
	expired := &WorkItem{AudioURL: "c", RemoteJobID: "job-c", JobExpiresAt: now.Add(-48 * time.Hour), JobDuration: time.Hour}
	fresh := &WorkItem{AudioURL: "d"}
	retired := &WorkItem{AudioURL: "e", RemoteJobID: "job-e"}

	cases := map[*WorkItem]bool{
		complete: false,
		active:   false,
		expired:  true,
		fresh:    true,
		retired:  true,
	}
	for item, want := range cases {
		if got := item.NeedsPublish(now); got != want {
			t.Errorf("NeedsPublish(%s) = %v, want %v", item.AudioURL, got, want)
		}
	}
}

func TestWorkItemCloneIsDeep(t *testing.T) {
	item := &WorkItem{AudioURL: "a", Extra: map[string]string{"voice1": "Ann"}}
	clone := item.Clone()
	clone.Extra["voice1"] = "Bob"
	clone.TaskURL = "changed"

	if item.Extra["voice1"] != "Ann" {
		t.Fatalf("clone shares Extra map with original")
	}
	if item.TaskURL != "" {
		t.Fatalf("clone shares fields with original")
	}
}

func TestRemoteJobDead(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	fields := DefaultIdentifierFields()
	ours := map[string]string{fields.ProjectID: "p1", fields.AudioURL: "https://x/a.mp3"}

	tests := []struct {
		name string
		job  *RemoteJob
		want bool
	}{
		{
			name: "expired unsubmitted ours",
			job:  &RemoteJob{ID: "1", ExpiresAt: now.Add(-time.Hour), Identifiers: ours},
			want: true,
		},
		{
			name: "expired unsubmitted foreign",
			job:  &RemoteJob{ID: "2", ExpiresAt: now.Add(-time.Hour)},
			want: false,
		},
		{
			name: "rejected ours still live",
			job: &RemoteJob{ID: "3", ExpiresAt: now.Add(time.Hour), Identifiers: ours,
				Submission: &Submission{Status: SubmissionStatusRejected}},
			want: true,
		},
		{
			name: "expired with pending submission",
			job: &RemoteJob{ID: "4", ExpiresAt: now.Add(-time.Hour), Identifiers: ours,
				Submission: &Submission{Status: SubmissionStatusSubmitted}},
			want: false,
		},
		{
			name: "live unsubmitted",
			job:  &RemoteJob{ID: "5", ExpiresAt: now.Add(time.Hour), Identifiers: ours},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.job.Dead(now, fields); got != tc.want {
				t.Errorf("Dead() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoteJobIdentifierPrefersSubmission(t *testing.T) {
	fields := DefaultIdentifierFields()
	job := &RemoteJob{
		Identifiers: map[string]string{fields.ProjectID: "from-job"},
		Submission:  &Submission{Answers: map[string]string{fields.ProjectID: "from-answer"}},
	}
	if got := job.ProjectID(fields); got != "from-answer" {
		t.Fatalf("ProjectID() = %q, want from-answer", got)
	}

	job.Submission.Answers = nil
	if got := job.ProjectID(fields); got != "from-job" {
		t.Fatalf("ProjectID() = %q, want from-job", got)
	}
}

func TestErrorClassification(t *testing.T) {
	unreviewed := fmt.Errorf("delete: %w", &RemoteServiceError{Op: "delete", JobID: "j1", Kind: RemoteErrorUnreviewedContent})
	if !IsUnreviewedContent(unreviewed) {
		t.Error("expected wrapped unreviewed content to be detected")
	}
	if IsUnreviewedContent(&RemoteServiceError{Op: "delete", Kind: RemoteErrorRateLimited}) {
		t.Error("rate limited must not count as unreviewed content")
	}
	if !IsConsistency(fmt.Errorf("x: %w", &ConsistencyError{JobID: "j2"})) {
		t.Error("expected consistency error to be detected")
	}

	var classifier ErrorClassifier
	if !errors.As(unreviewed, &classifier) || classifier.ErrorKind() != "remote_unreviewed_content" {
		t.Errorf("unexpected classification for %v", unreviewed)
	}
}

func TestUploadErrorOnlyMissing(t *testing.T) {
	missing := &UploadError{Op: "remove", Failures: []error{
		fmt.Errorf("a.mp3: %w", ErrAssetNotFound),
		fmt.Errorf("b.mp3: %w", ErrAssetNotFound),
	}}
	if !missing.OnlyMissing() {
		t.Error("expected only-missing failures")
	}

	mixed := &UploadError{Op: "remove", Failures: []error{
		fmt.Errorf("a.mp3: %w", ErrAssetNotFound),
		errors.New("permission denied"),
	}}
	if mixed.OnlyMissing() {
		t.Error("permission failure must not count as missing")
	}
	if !errors.Is(mixed, ErrAssetNotFound) {
		t.Error("expected errors.Is to see through the failure list")
	}
}

func TestAggregateErrorMessage(t *testing.T) {
	err := &AggregateError{
		Op:        "retire",
		Attempted: 3,
		Failures: []ItemFailure{
			{ID: "job-1", Err: errors.New("pending submission")},
		},
	}
	msg := err.Error()
	for _, want := range []string{"retire", "1 of 3", "job-1", "pending submission"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
