package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "data", "assignment.csv"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d items", l.Len())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "assignment.csv")
	expires := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	l := New(path)
	err := l.Append(
		&domain.WorkItem{ProjectID: "p1", AudioURL: "https://a/0.mp3", RemoteJobID: "job-0",
			TaskURL: "https://a/0.html", JobExpiresAt: expires, JobDuration: 3 * time.Hour,
			AudioUploaded: domain.UploadStatusYes},
		&domain.WorkItem{ProjectID: "p1", AudioURL: "https://a/1.mp3", Transcription: "line one,\n\"quoted\""},
	)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := l.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	items := loaded.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.RemoteJobID != "job-0" || !first.JobExpiresAt.Equal(expires) || first.JobDuration != 3*time.Hour {
		t.Errorf("unexpected first item %+v", first)
	}
	if first.AudioUploaded != domain.UploadStatusYes {
		t.Errorf("AudioUploaded = %q, want yes", first.AudioUploaded)
	}
	if items[1].Transcription != "line one,\n\"quoted\"" {
		t.Errorf("transcription not preserved: %q", items[1].Transcription)
	}
	if items[1].AudioUploaded != domain.UploadStatusNo {
		t.Errorf("AudioUploaded default = %q, want no", items[1].AudioUploaded)
	}
}

func TestUnknownColumnsPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignment.csv")
	content := "audio_url,voice1,project_id,transcription\nhttps://a/0.mp3,Ann,p1,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	item := l.Find("https://a/0.mp3")
	if item == nil || item.Extra["voice1"] != "Ann" {
		t.Fatalf("unknown column not read: %+v", item)
	}
	item.Transcription = "hello"
	if err := l.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	header := strings.SplitN(string(raw), "\n", 2)[0]
	if !strings.HasPrefix(header, "audio_url,voice1,project_id,transcription,") {
		t.Errorf("existing column order changed: %q", header)
	}
	if !strings.Contains(header, ColRemoteJobID) {
		t.Errorf("missing required column not appended: %q", header)
	}
	if !strings.Contains(string(raw), "https://a/0.mp3,Ann,p1,hello") {
		t.Errorf("row not written in original order:\n%s", raw)
	}
}

func TestAppendRejectsDuplicates(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "assignment.csv"))
	if err := l.Append(&domain.WorkItem{AudioURL: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	err := l.Append(&domain.WorkItem{AudioURL: "b"}, &domain.WorkItem{AudioURL: "a"})
	if !errors.Is(err, ErrDuplicateAudio) {
		t.Fatalf("expected ErrDuplicateAudio, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("failed append must not add items, have %d", l.Len())
	}
}

func TestLoadRejectsDuplicateAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignment.csv")
	csv := "project_id,audio_url,remote_job_id\n" +
		"p1,https://a/0.mp3,\n" +
		"p1,https://a/1.mp3,\n" +
		"p1,https://a/0.mp3,job-9\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrDuplicateAudio) {
		t.Fatalf("Load error = %v, want ErrDuplicateAudio", err)
	}
	if !strings.Contains(err.Error(), "line 4") || !strings.Contains(err.Error(), "first on line 2") {
		t.Errorf("error does not name the lines: %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "assignment.csv"))
	if err := l.Append(&domain.WorkItem{AudioURL: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	snap := l.Snapshot()

	l.Find("a").RemoteJobID = "job-1"
	l.Restore(snap)

	if got := l.Find("a").RemoteJobID; got != "" {
		t.Fatalf("Restore did not roll back, RemoteJobID = %q", got)
	}
}

func TestReplace(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "assignment.csv"))
	if err := l.Append(&domain.WorkItem{AudioURL: "a"}, &domain.WorkItem{AudioURL: "b"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	clone := l.Find("b").Clone()
	clone.RemoteJobID = "job-b"
	if err := l.Replace(clone); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if l.Items()[1].RemoteJobID != "job-b" {
		t.Fatal("Replace did not update item in place")
	}
	if err := l.Replace(&domain.WorkItem{AudioURL: "zzz"}); err == nil {
		t.Fatal("expected error replacing unknown item")
	}
}
