// Package project binds a ledger, its audio chunks and its remote asset
// namespace to one transcription job on disk.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/ledger"
	"github.com/jonathanpberger/typingpool/internal/storage"
)

const (
	dataDir        = "data"
	ledgerFile     = "assignment.csv"
	metadataFile   = "project.yaml"
	lockFile       = ".lock"
	chunkDir       = "audio/chunks"
	transcriptFile = "transcript.html"
)

var (
	ErrNotFound = errors.New("project not found")
	ErrExists   = errors.New("project already exists")
	ErrLocked   = errors.New("project is locked by another process")
)

// Metadata is the project.yaml document.
type Metadata struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Subtitle  string    `yaml:"subtitle,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	AudioURLs []string  `yaml:"audio_urls,omitempty"`
}

// Project is one transcription job: a directory holding the ledger, the
// audio chunks and the project metadata.
type Project struct {
	dir    string
	meta   Metadata
	ledger *ledger.Ledger
}

// Create makes a new project directory named name below root.
func Create(root, name string) (*Project, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, &domain.ArgumentError{Field: "project name", Value: name, Reason: "must be a plain directory name"}
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, dir)
	}
	for _, d := range []string{dataDir, chunkDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return nil, fmt.Errorf("create project dir: %w", err)
		}
	}

	p := &Project{
		dir: dir,
		meta: Metadata{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		},
		ledger: ledger.New(filepath.Join(dir, dataDir, ledgerFile)),
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Open loads the project in dir.
func Open(dir string) (*Project, error) {
	raw, err := os.ReadFile(filepath.Join(dir, dataDir, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read project metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse project metadata %s: %w", dir, err)
	}
	if meta.ID == "" {
		return nil, fmt.Errorf("project metadata %s has no id", dir)
	}

	l, err := ledger.Load(filepath.Join(dir, dataDir, ledgerFile))
	if err != nil {
		return nil, err
	}
	return &Project{dir: dir, meta: meta, ledger: l}, nil
}

func (p *Project) Dir() string { return p.dir }
func (p *Project) ID() string { return p.meta.ID }
func (p *Project) Name() string { return p.meta.Name }
func (p *Project) Subtitle() string { return p.meta.Subtitle }
func (p *Project) SetSubtitle(s string) { p.meta.Subtitle = s }
func (p *Project) CreatedAt() time.Time { return p.meta.CreatedAt }
func (p *Project) Ledger() *ledger.Ledger { return p.ledger }
func (p *Project) ChunkDir() string { return filepath.Join(p.dir, chunkDir) }
func (p *Project) TranscriptPath() string { return filepath.Join(p.dir, transcriptFile) }
func (p *Project) AudioOnline() bool { return len(p.meta.AudioURLs) > 0 }
func (p *Project) AudioURLs() []string { return append([]string(nil), p.meta.AudioURLs...) }
func (p *Project) SetAudioURLs(urls []string) { p.meta.AudioURLs = append([]string(nil), urls...) }

// AddItems appends a work item for every audio URL the ledger lacks, in the
// order given. Existing rows are left alone.
func (p *Project) AddItems(urls []string, status domain.UploadStatus) error {
	var items []*domain.WorkItem
	for _, u := range urls {
		if p.ledger.Find(u) != nil {
			continue
		}
		items = append(items, &domain.WorkItem{ProjectID: p.ID(), AudioURL: u, AudioUploaded: status})
	}
	return p.ledger.Append(items...)
}

// AudioChunks returns the chunk files as uploadable assets, sorted by file
// name, which is also chunk order.
func (p *Project) AudioChunks() ([]storage.Asset, error) {
	entries, err := os.ReadDir(p.ChunkDir())
	if err != nil {
		return nil, fmt.Errorf("read audio chunks: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	assets := make([]storage.Asset, 0, len(names))
	for _, name := range names {
		a, err := storage.FileAsset(p.RemoteName(name), filepath.Join(p.ChunkDir(), name))
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// RemoteName returns the object name for a project file. Names are
// namespaced by project id so two projects never collide on the asset host.
func (p *Project) RemoteName(file string) string {
	return p.meta.ID + "/" + filepath.Base(file)
}

// Transcript returns the transcribed items in ledger order.
func (p *Project) Transcript() []*domain.WorkItem {
	var out []*domain.WorkItem
	for _, item := range p.ledger.Items() {
		if item.Complete() {
			out = append(out, item)
		}
	}
	return out
}

// Save writes the metadata and the ledger.
func (p *Project) Save() error {
	raw, err := yaml.Marshal(&p.meta)
	if err != nil {
		return fmt.Errorf("encode project metadata: %w", err)
	}
	path := filepath.Join(p.dir, dataDir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write project metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write project metadata: %w", err)
	}
	return p.ledger.Save()
}

// Lock takes the project's writer lock, waiting until ctx is done. Only one
// process may mutate a ledger at a time.
func (p *Project) Lock(ctx context.Context) (unlock func() error, err error) {
	fl := flock.New(filepath.Join(p.dir, dataDir, lockFile))
	ok, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, p.Name())
		}
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, p.Name())
	}
	return fl.Unlock, nil
}
