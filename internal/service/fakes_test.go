package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/storage"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fakeJobs struct {
	mu           sync.Mutex
	fields       domain.IdentifierFields
	seq          int
	jobs         map[string]*domain.RemoteJob
	order        []string
	created      []string
	deleted      []string
	approved     []string
	failCreateAt int
	deleteErr    map[string]error
	approveErr   error
	onApprove    func(submissionID string)
	results      []*domain.RemoteJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		fields:    domain.DefaultIdentifierFields(),
		jobs:      map[string]*domain.RemoteJob{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeJobs) add(job *domain.RemoteJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	f.order = append(f.order, job.ID)
}

func (f *fakeJobs) Create(ctx context.Context, req domain.JobRequest) (*domain.RemoteJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateAt == len(f.created)+1 {
		return nil, &domain.RemoteServiceError{Op: "create", Kind: domain.RemoteErrorUnknown, Err: errors.New("insufficient funds")}
	}
	f.seq++
	job := &domain.RemoteJob{
		ID:                 fmt.Sprintf("new-%d", f.seq),
		Status:             domain.JobStatusAssignable,
		ExpiresAt:          testNow.Add(req.Policy.Lifetime),
		AssignmentDuration: req.Policy.Deadline,
		Identifiers:        req.Identifiers,
	}
	f.jobs[job.ID] = job
	f.order = append(f.order, job.ID)
	f.created = append(f.created, job.ID)
	return job, nil
}

func (f *fakeJobs) FetchAll(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.RemoteJob
	for _, id := range f.order {
		job, ok := f.jobs[id]
		if !ok {
			continue
		}
		if filter.ProjectID != "" && job.Identifiers[f.fields.ProjectID] != filter.ProjectID {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeJobs) Delete(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[jobID]; err != nil {
		return err
	}
	if _, ok := f.jobs[jobID]; !ok {
		return &domain.ConsistencyError{JobID: jobID}
	}
	delete(f.jobs, jobID)
	f.deleted = append(f.deleted, jobID)
	return nil
}

func (f *fakeJobs) ListResults(ctx context.Context, filter domain.JobFilter) ([]*domain.RemoteJob, error) {
	return f.results, nil
}

func (f *fakeJobs) Approve(ctx context.Context, submissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return f.approveErr
	}
	f.approved = append(f.approved, submissionID)
	if f.onApprove != nil {
		f.onApprove(submissionID)
	}
	return nil
}

func (f *fakeJobs) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type fakeAssets struct {
	mu        sync.Mutex
	hosted    map[string]bool
	puts      [][]string
	removed   [][]string
	removeErr error
	failPut   bool
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{hosted: map[string]bool{}}
}

func (f *fakeAssets) Put(ctx context.Context, assets []storage.Asset) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut {
		return nil, &domain.UploadError{Op: "put", Failures: []error{errors.New("bucket unreachable")}}
	}
	urls := make([]string, len(assets))
	names := make([]string, len(assets))
	for i, a := range assets {
		urls[i] = "https://assets.test/" + a.Name
		names[i] = a.Name
		f.hosted[urls[i]] = true
	}
	f.puts = append(f.puts, names)
	return urls, nil
}

func (f *fakeAssets) Remove(ctx context.Context, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, urls)
	if f.removeErr != nil {
		return f.removeErr
	}
	var missing []error
	for _, u := range urls {
		if !f.hosted[u] {
			missing = append(missing, fmt.Errorf("%s: %w", u, domain.ErrAssetNotFound))
		}
		delete(f.hosted, u)
	}
	if len(missing) > 0 {
		return &domain.UploadError{Op: "remove", Failures: missing}
	}
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	saved   map[string]*domain.RemoteJob
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{saved: map[string]*domain.RemoteJob{}}
}

func (c *fakeCache) Save(ctx context.Context, job *domain.RemoteJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[job.ID] = job
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.saved, jobID)
	c.deleted = append(c.deleted, jobID)
	return nil
}

type harness struct {
	root   string
	jobs   *fakeJobs
	assets *fakeAssets
	cache  *fakeCache
	engine *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	renderer, err := taskpage.New(taskpage.Options{})
	if err != nil {
		t.Fatalf("taskpage.New failed: %v", err)
	}
	h := &harness{
		root:   t.TempDir(),
		jobs:   newFakeJobs(),
		assets: newFakeAssets(),
		cache:  newFakeCache(),
	}
	h.engine = NewEngine(Options{
		Jobs:     h.jobs,
		Assets:   h.assets,
		Renderer: renderer,
		Cache:    h.cache,
		Projects: project.NewFinder(h.root),
		Now:      func() time.Time { return testNow },
	})
	return h
}

// newProject creates a project with n chunk files on disk.
func (h *harness) newProject(t *testing.T, name string, n int) *project.Project {
	t.Helper()
	p, err := project.Create(h.root, name)
	if err != nil {
		t.Fatalf("project.Create failed: %v", err)
	}
	for i := 0; i < n; i++ {
		file := filepath.Join(p.ChunkDir(), fmt.Sprintf("%s.%02d.mp3", name, i))
		if err := os.WriteFile(file, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write chunk failed: %v", err)
		}
	}
	return p
}

// onlineProject creates a project whose audio is already hosted, with one
// uploaded ledger item per chunk.
func (h *harness) onlineProject(t *testing.T, name string, n int) *project.Project {
	t.Helper()
	p := h.newProject(t, name, n)
	assets, err := p.AudioChunks()
	if err != nil {
		t.Fatalf("AudioChunks failed: %v", err)
	}
	urls, err := h.assets.Put(context.Background(), assets)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	h.assets.puts = nil
	p.SetAudioURLs(urls)
	if err := p.AddItems(urls, domain.UploadStatusYes); err != nil {
		t.Fatalf("AddItems failed: %v", err)
	}
	if err := p.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return p
}

func testPolicy() domain.Policy {
	return domain.Policy{
		Title:    "Transcribe",
		Reward:   domain.Reward{Amount: "0.75", Currency: "USD"},
		Deadline: 3 * time.Hour,
		Lifetime: 48 * time.Hour,
		Approval: 24 * time.Hour,
	}
}

// remoteJob builds a job owned by p for item.
func remoteJob(p *project.Project, id, audioURL string) *domain.RemoteJob {
	fields := domain.DefaultIdentifierFields()
	return &domain.RemoteJob{
		ID:        id,
		Status:    domain.JobStatusAssignable,
		ExpiresAt: testNow.Add(time.Hour),
		Identifiers: map[string]string{
			fields.ProjectID: p.ID(),
			fields.AudioURL:  audioURL,
		},
	}
}

func reopen(t *testing.T, p *project.Project) *project.Project {
	t.Helper()
	reopened, err := project.Open(p.Dir())
	if err != nil {
		t.Fatalf("project.Open failed: %v", err)
	}
	return reopened
}
