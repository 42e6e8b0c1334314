package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonathanpberger/typingpool/internal/config"
	"github.com/jonathanpberger/typingpool/internal/domain"
)

func newTestRepo(t *testing.T) *ResultRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "cache.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return NewResultRepository(db, domain.DefaultIdentifierFields())
}

func job(id, project, audio string) *domain.RemoteJob {
	fields := domain.DefaultIdentifierFields()
	return &domain.RemoteJob{
		ID:        id,
		Status:    domain.JobStatusReviewable,
		ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Identifiers: map[string]string{
			fields.ProjectID: project,
			fields.AudioURL:  audio,
		},
	}
}

func TestResultRepositorySaveUpserts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	j := job("job-1", "p1", "https://a/0.mp3")
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	j.Submission = &domain.Submission{ID: "s1", Status: domain.SubmissionStatusSubmitted,
		Answers: map[string]string{"transcription": "hello"}}
	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	row, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if row == nil || row.ProjectID != "p1" || row.Transcription != "hello" || row.SubmissionID != "s1" {
		t.Fatalf("unexpected row %+v", row)
	}
	if n, _ := repo.Count(ctx, "p1"); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestResultRepositoryDeleteAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, j := range []*domain.RemoteJob{
		job("a", "p1", "u1"),
		job("b", "p1", "u2"),
		job("c", "p2", "u3"),
	} {
		if err := repo.Save(ctx, j); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, "never-cached"); err != nil {
		t.Fatalf("Delete of unknown job failed: %v", err)
	}

	rows, err := repo.ListByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 1 || rows[0].JobID != "b" {
		t.Fatalf("unexpected rows %+v", rows)
	}
	all, err := repo.ListByProject(ctx, "")
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 cached jobs, got %d", len(all))
	}
	if row, err := repo.Get(ctx, "a"); err != nil || row != nil {
		t.Fatalf("Get(deleted) = %+v, %v", row, err)
	}
}

func TestInitDBRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"unknown driver", config.DatabaseConfig{Driver: "mysql", Path: filepath.Join(t.TempDir(), "x.db")}},
		{"postgres without url", config.DatabaseConfig{Driver: "postgres"}},
		{"sqlite without path", config.DatabaseConfig{Driver: "sqlite"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if db, err := InitDB(&tc.cfg); err == nil {
				Close(db)
				t.Fatal("expected error")
			}
		})
	}
}
