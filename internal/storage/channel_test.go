package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

type memStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failKey   string
	deleteErr map[string]error
	delay     map[string]time.Duration
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, deleteErr: map[string]error{}, delay: map[string]time.Duration{}}
}

func (m *memStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if d := m.delay[key]; d > 0 {
		time.Sleep(d)
	}
	if key == m.failKey {
		return errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) GetURL(key string) string { return "https://assets.test/" + key }

func (m *memStorage) KeyForURL(url string) (string, bool) {
	return strings.CutPrefix(url, "https://assets.test/")
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	if err := m.deleteErr[key]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func TestChannelPutKeepsInputOrder(t *testing.T) {
	store := newMemStorage()
	// the first asset finishes last
	store.delay["proj/a.html"] = 30 * time.Millisecond
	ch := NewChannel(store, "/proj/", 3)

	assets := []Asset{
		BytesAsset("a.html", "text/html", []byte("a")),
		BytesAsset("b.html", "text/html", []byte("b")),
		BytesAsset("c.html", "text/html", []byte("c")),
	}
	urls, err := ch.Put(context.Background(), assets)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	want := []string{
		"https://assets.test/proj/a.html",
		"https://assets.test/proj/b.html",
		"https://assets.test/proj/c.html",
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestChannelPutFailure(t *testing.T) {
	store := newMemStorage()
	store.failKey = "b.html"
	ch := NewChannel(store, "", 1)

	_, err := ch.Put(context.Background(), []Asset{
		BytesAsset("a.html", "text/html", []byte("a")),
		BytesAsset("b.html", "text/html", []byte("b")),
	})
	var uploadErr *domain.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if uploadErr.URL != "https://assets.test/b.html" {
		t.Errorf("UploadError.URL = %q", uploadErr.URL)
	}
	if _, ok := store.objects["a.html"]; !ok {
		t.Error("successful upload before the failure should stay in place")
	}
}

func TestChannelRemoveReportsEveryFailure(t *testing.T) {
	store := newMemStorage()
	store.objects["p/a.mp3"] = []byte("a")
	store.objects["p/b.mp3"] = []byte("b")
	store.deleteErr["p/b.mp3"] = errors.New("access denied")
	ch := NewChannel(store, "p", 2)

	err := ch.Remove(context.Background(), []string{
		"https://assets.test/p/a.mp3",
		"https://assets.test/p/b.mp3",
		"https://assets.test/p/c.mp3",
	})
	var uploadErr *domain.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if len(uploadErr.Removed) != 1 || uploadErr.Removed[0] != "https://assets.test/p/a.mp3" {
		t.Errorf("Removed = %v", uploadErr.Removed)
	}
	if len(uploadErr.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %v", uploadErr.Failures)
	}
	if uploadErr.OnlyMissing() {
		t.Error("access denied must not count as missing")
	}
	if !errors.Is(err, domain.ErrAssetNotFound) {
		t.Error("missing object should be reported as ErrAssetNotFound")
	}
}

func TestChannelRemoveOnlyMissing(t *testing.T) {
	ch := NewChannel(newMemStorage(), "p", 2)
	err := ch.Remove(context.Background(), []string{"https://assets.test/p/gone.mp3"})
	var uploadErr *domain.UploadError
	if !errors.As(err, &uploadErr) || !uploadErr.OnlyMissing() {
		t.Fatalf("expected only-missing UploadError, got %v", err)
	}
}

func TestCanonicalBaseName(t *testing.T) {
	tests := map[string]string{
		"https://x.test/p/interview.00.00.mp3":    "interview.00.00",
		"https://x.test/p/a%20b.mp3?sig=1":        "a b",
		"https://x.test/p/noext":                  "noext",
		"file.html":                               "file",
		"https://x.test/deep/path/chunk.01.15.m4a": "chunk.01.15",
	}
	for in, want := range tests {
		if got := CanonicalBaseName(in); got != want {
			t.Errorf("CanonicalBaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileAsset(t *testing.T) {
	if _, err := FileAsset("x.mp3", fmt.Sprintf("%s/missing.mp3", t.TempDir())); err == nil {
		t.Fatal("expected error for missing file")
	}
}
