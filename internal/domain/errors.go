package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClassifier lets errors declare a classification the CLI and logs can
// report without knowing the concrete type.
type ErrorClassifier interface {
	ErrorKind() string
}

// RemoteErrorKind classifies marketplace failures.
type RemoteErrorKind string

const (
	RemoteErrorUnknown           RemoteErrorKind = "unknown"
	RemoteErrorUnreviewedContent RemoteErrorKind = "unreviewed_content"
	RemoteErrorRateLimited       RemoteErrorKind = "rate_limited"
)

// RemoteServiceError is a failure reported by the remote job service.
// UnreviewedContent is skippable during retirement; every kind is fatal
// during publish.
type RemoteServiceError struct {
	Op         string
	JobID      string
	Kind       RemoteErrorKind
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	var b strings.Builder
	b.WriteString("marketplace ")
	b.WriteString(e.Op)
	if e.JobID != "" {
		fmt.Fprintf(&b, " %s", e.JobID)
	}
	if e.Kind != "" && e.Kind != RemoteErrorUnknown {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

func (e *RemoteServiceError) ErrorKind() string { return "remote_" + string(e.Kind) }

// IsUnreviewedContent reports whether err is a refusal to discard a job that
// has a submission nobody has reviewed yet.
func IsUnreviewedContent(err error) bool {
	var rse *RemoteServiceError
	return errors.As(err, &rse) && rse.Kind == RemoteErrorUnreviewedContent
}

// ConsistencyError means a ledger references a job the service no longer knows.
// Callers treat the job as already gone.
type ConsistencyError struct {
	JobID string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("remote job %s is unknown to the marketplace", e.JobID)
}

func (e *ConsistencyError) ErrorKind() string { return "consistency" }

// IsConsistency reports whether err is a ConsistencyError.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// ErrAssetNotFound is reported for a remote asset that does not exist.
var ErrAssetNotFound = errors.New("no such file")

// UploadError is an asset channel failure. For removals, Removed lists the
// URLs that were deleted before or despite the failures.
type UploadError struct {
	Op       string
	URL      string
	Removed  []string
	Failures []error
}

func (e *UploadError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	if e.URL != "" {
		return fmt.Sprintf("asset %s %s: %s", e.Op, e.URL, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("asset %s: %d failed: %s", e.Op, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *UploadError) Unwrap() []error { return e.Failures }

func (e *UploadError) ErrorKind() string { return "upload" }

// OnlyMissing reports whether every failure was a missing asset.
func (e *UploadError) OnlyMissing() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if !errors.Is(f, ErrAssetNotFound) {
			return false
		}
	}
	return true
}

// ArgumentError is malformed configuration or policy input.
type ArgumentError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %q", e.Reason, e.Value)
	}
	return fmt.Sprintf("bad %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ArgumentError) ErrorKind() string { return "argument" }

// ItemFailure is one failed item inside a batch.
type ItemFailure struct {
	ID  string
	Err error
}

// AggregateError reports every per-item failure of a batch that kept going
// after the first failure.
type AggregateError struct {
	Op        string
	Attempted int
	Failures  []ItemFailure
}

func (e *AggregateError) Error() string {
	causes := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		causes = append(causes, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}
	return fmt.Sprintf("%s: %d of %d failed (%s)", e.Op, len(e.Failures), e.Attempted, strings.Join(causes, "; "))
}

func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *AggregateError) ErrorKind() string { return "aggregate" }
