package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{BaseURL: srv.URL, Key: "k", Secret: "s", Timeout: 5 * time.Second,
		RetryCount: 2, RetryWait: time.Millisecond})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCreateSendsPolicy(t *testing.T) {
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	var got createJobRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "k" || pass != "s" {
			t.Errorf("missing credentials")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body failed: %v", err)
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"id": "job-1", "status": "Assignable", "expires_at": expires,
			"assignment_duration_seconds": 10800,
		})
	})

	job, err := client.Create(context.Background(), domain.JobRequest{
		TaskURL: "https://assets/x.html",
		Content: "<html/>",
		Policy: domain.Policy{
			Reward:         domain.Reward{Amount: "0.75", Currency: "USD"},
			Keywords:       []string{"audio"},
			Qualifications: []domain.Qualification{{Attribute: "approval_rate", Comparator: ">=", Value: "95"}},
			Deadline:       3 * time.Hour,
			Lifetime:       48 * time.Hour,
			Approval:       24 * time.Hour,
		},
		Identifiers: map[string]string{"typingpool_project_id": "p1"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID != "job-1" || !job.ExpiresAt.Equal(expires) || job.AssignmentDuration != 3*time.Hour {
		t.Errorf("unexpected job %+v", job)
	}
	if got.AssignmentDurationSeconds != 10800 || got.LifetimeSeconds != 172800 || got.AutoApprovalDelaySeconds != 86400 {
		t.Errorf("durations not sent in seconds: %+v", got)
	}
	if got.Identifiers["typingpool_project_id"] != "p1" || got.Reward.Amount != "0.75" {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestCreateIsNotRetriedOnServerError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusInternalServerError, errorPayload{Message: "boom"})
	})

	_, err := client.Create(context.Background(), domain.JobRequest{})
	var rse *domain.RemoteServiceError
	if !errors.As(err, &rse) || rse.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected RemoteServiceError 500, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("create called %d times, want 1", n)
	}
}

func TestFetchAllFollowsPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("project_id") != "p1" {
			t.Errorf("project filter not sent: %s", r.URL.RawQuery)
		}
		switch r.URL.Query().Get("next_token") {
		case "":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"jobs": []map[string]string{{"id": "a"}, {"id": "b"}}, "next_token": "t2",
			})
		case "t2":
			writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": []map[string]string{{"id": "c"}}})
		}
	})

	jobs, err := client.FetchAll(context.Background(), domain.JobFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(jobs) != 3 || jobs[2].ID != "c" {
		t.Fatalf("unexpected jobs %v", jobs)
	}
}

func TestDeleteErrorMapping(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/gone":
			writeJSON(w, http.StatusNotFound, errorPayload{Message: "no such job"})
		case "/jobs/pending":
			writeJSON(w, http.StatusConflict, errorPayload{Code: codeUnreviewedContent, Message: "review first"})
		case "/jobs/busy":
			writeJSON(w, http.StatusTooManyRequests, errorPayload{Message: "slow down"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	if err := client.Delete(ctx, "ok"); err != nil {
		t.Errorf("Delete(ok) failed: %v", err)
	}
	if err := client.Delete(ctx, "gone"); !domain.IsConsistency(err) {
		t.Errorf("Delete(gone) = %v, want ConsistencyError", err)
	}
	if err := client.Delete(ctx, "pending"); !domain.IsUnreviewedContent(err) {
		t.Errorf("Delete(pending) = %v, want unreviewed content", err)
	}
	err := client.Delete(ctx, "busy")
	var rse *domain.RemoteServiceError
	if !errors.As(err, &rse) || rse.Kind != domain.RemoteErrorRateLimited {
		t.Errorf("Delete(busy) = %v, want rate limited", err)
	}
}

func TestListResultsAndApprove(t *testing.T) {
	var approved string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/results":
			if r.URL.Query().Get("status") != "Reviewable" {
				t.Errorf("status filter not sent: %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"results": []map[string]interface{}{
				{"id": "j1", "status": "Reviewable", "submission": map[string]interface{}{
					"id": "s1", "status": "Submitted", "answers": map[string]string{"transcription": "hi"},
				}},
				{"id": "j2", "status": "Reviewable"},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/submissions/s1/approve":
			approved = "s1"
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	jobs, err := client.ListResults(ctx, domain.JobFilter{Status: domain.JobStatusReviewable})
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Submission.Answers["transcription"] != "hi" {
		t.Fatalf("unexpected results %v", jobs)
	}
	if err := client.Approve(ctx, jobs[0].Submission.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved != "s1" {
		t.Error("approve endpoint not called")
	}
}
