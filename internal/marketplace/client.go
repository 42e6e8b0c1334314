// Package marketplace is the HTTP client for the remote job service.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
)

// Config holds connection settings for the remote job service.
type Config struct {
	BaseURL    string
	Key        string
	Secret     string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
}

// Client talks to the remote job service. It keeps no local state.
type Client struct {
	client *resty.Client
}

// NewClient creates a new marketplace client
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetBasicAuth(cfg.Key, cfg.Secret)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	wait := cfg.RetryWait
	if wait <= 0 {
		wait = time.Second
	}
	client.SetRetryCount(cfg.RetryCount)
	client.SetRetryWaitTime(wait)
	client.SetRetryMaxWaitTime(20 * wait)
	client.AddRetryCondition(shouldRetry)

	return &Client{client: client}
}

// shouldRetry retries throttling everywhere, and server errors only for
// requests that are safe to repeat. A retried create could double-publish.
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	if code == http.StatusTooManyRequests {
		return true
	}
	if code >= 500 {
		method := resp.Request.Method
		return method == http.MethodGet || method == http.MethodDelete
	}
	return false
}

// Create publishes a new job for one work item.
func (c *Client) Create(ctx context.Context, req domain.JobRequest) (*domain.RemoteJob, error) {
	var result jobPayload
	var apiErr errorPayload
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(newCreateJobRequest(req)).
		SetResult(&result).
		SetError(&apiErr).
		Post("/jobs")
	if err := checkResponse("create", "", resp, err, &apiErr); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, &domain.RemoteServiceError{Op: "create", Kind: domain.RemoteErrorUnknown,
			StatusCode: resp.StatusCode(), Err: errors.New("response carried no job id")}
	}
	return result.toDomain(), nil
}

// Get fetches one job by id.
func (c *Client) Get(ctx context.Context, jobID string) (*domain.RemoteJob, error) {
	var result jobPayload
	var apiErr errorPayload
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetResult(&result).
		SetError(&apiErr).
		Get("/jobs/{id}")
	if err := checkResponse("get", jobID, resp, err, &apiErr); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

// FetchAll lists every job matching filter, following pagination.
func (c *Client) FetchAll(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error) {
	return c.list(ctx, "fetch", "/jobs", filter)
}

// ListResults lists jobs that carry a submission matching filter.
func (c *Client) ListResults(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error) {
	jobs, err := c.list(ctx, "results", "/results", filter)
	if err != nil {
		return nil, err
	}
	out := jobs[:0]
	for _, j := range jobs {
		if j.Submission != nil {
			out = append(out, j)
		}
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, op, path string, filter domain.JobFilter) ([]*domain.RemoteJob, error) {
	var jobs []*domain.RemoteJob
	token := ""
	for page := 1; ; page++ {
		var result listResponse
		var apiErr errorPayload
		req := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			SetError(&apiErr)
		if filter.ProjectID != "" {
			req.SetQueryParam("project_id", filter.ProjectID)
		}
		if filter.Status != "" {
			req.SetQueryParam("status", string(filter.Status))
		}
		if filter.SubmissionStatus != "" {
			req.SetQueryParam("submission_status", string(filter.SubmissionStatus))
		}
		if token != "" {
			req.SetQueryParam("next_token", token)
		}

		resp, err := req.Get(path)
		if err := checkResponse(op, "", resp, err, &apiErr); err != nil {
			return nil, err
		}
		for i := range result.Jobs {
			jobs = append(jobs, result.Jobs[i].toDomain())
		}
		for i := range result.Results {
			jobs = append(jobs, result.Results[i].toDomain())
		}
		logger.With(logger.Fields{logger.FieldCount: len(jobs)}).
			Debug(ctx, "Fetched %s page %d", path, page)

		if result.NextToken == "" || result.NextToken == token {
			return jobs, nil
		}
		token = result.NextToken
	}
}

// Delete disposes of a job. A job with an unreviewed submission is refused
// with a RemoteServiceError of kind unreviewed_content; an unknown job is a
// ConsistencyError.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	var apiErr errorPayload
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", jobID).
		SetError(&apiErr).
		Delete("/jobs/{id}")
	return checkResponse("delete", jobID, resp, err, &apiErr)
}

// Approve accepts a submission. Approval pays the worker and cannot be undone.
func (c *Client) Approve(ctx context.Context, submissionID string) error {
	var apiErr errorPayload
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", submissionID).
		SetError(&apiErr).
		Post("/submissions/{id}/approve")
	return checkResponse("approve", submissionID, resp, err, &apiErr)
}

func checkResponse(op, id string, resp *resty.Response, err error, apiErr *errorPayload) error {
	if err != nil {
		return &domain.RemoteServiceError{Op: op, JobID: id, Kind: domain.RemoteErrorUnknown, Err: err}
	}
	if !resp.IsError() {
		return nil
	}

	code := resp.StatusCode()
	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(code)
	}
	cause := fmt.Errorf("HTTP %d: %s", code, msg)

	switch {
	case code == http.StatusNotFound && id != "" && op != "approve":
		return &domain.ConsistencyError{JobID: id}
	case code == http.StatusConflict && apiErr.Code == codeUnreviewedContent:
		return &domain.RemoteServiceError{Op: op, JobID: id, Kind: domain.RemoteErrorUnreviewedContent, StatusCode: code, Err: cause}
	case code == http.StatusTooManyRequests:
		return &domain.RemoteServiceError{Op: op, JobID: id, Kind: domain.RemoteErrorRateLimited, StatusCode: code, Err: cause}
	default:
		return &domain.RemoteServiceError{Op: op, JobID: id, Kind: domain.RemoteErrorUnknown, StatusCode: code, Err: cause}
	}
}
