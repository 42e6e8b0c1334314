// Package ledger persists a project's work items as a CSV file.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonathanpberger/typingpool/internal/domain"
)

const (
	ColProjectID     = "project_id"
	ColAudioURL      = "audio_url"
	ColTaskURL       = "task_url"
	ColRemoteJobID   = "remote_job_id"
	ColJobExpiresAt  = "job_expires_at"
	ColJobDuration   = "job_duration"
	ColTranscription = "transcription"
	ColAudioUploaded = "audio_uploaded"
)

// Columns are the columns every ledger carries, in the order used for new files.
var Columns = []string{
	ColProjectID,
	ColAudioURL,
	ColTaskURL,
	ColRemoteJobID,
	ColJobExpiresAt,
	ColJobDuration,
	ColTranscription,
	ColAudioUploaded,
}

var ErrDuplicateAudio = errors.New("audio url already in ledger")

// Ledger is the ordered list of work items for one project. Order is the
// audio chunk order and is never changed by the ledger itself.
type Ledger struct {
	path   string
	header []string
	items  []*domain.WorkItem
}

// New returns an empty ledger that will be written to path.
func New(path string) *Ledger {
	return &Ledger{path: path, header: append([]string(nil), Columns...)}
}

// Load reads the ledger at path. A missing file yields an empty ledger.
func Load(path string) (*Ledger, error) {
	l := New(path)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if err := l.read(f); err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	return l, nil
}

func (l *Ledger) read(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	l.header = mergeHeader(header)

	seen := make(map[string]int)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line, _ := cr.FieldPos(0)
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		item, err := decodeItem(row)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if item.AudioURL != "" {
			if first, dup := seen[item.AudioURL]; dup {
				return fmt.Errorf("line %d: %w: %s (first on line %d)", line, ErrDuplicateAudio, item.AudioURL, first)
			}
			seen[item.AudioURL] = line
		}
		l.items = append(l.items, item)
	}
}

// mergeHeader keeps the file's column order and appends required columns it lacks.
func mergeHeader(header []string) []string {
	seen := make(map[string]bool, len(header))
	out := append([]string(nil), header...)
	for _, h := range header {
		seen[h] = true
	}
	for _, c := range Columns {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}

func isKnown(col string) bool {
	for _, c := range Columns {
		if c == col {
			return true
		}
	}
	return false
}

func decodeItem(row map[string]string) (*domain.WorkItem, error) {
	item := &domain.WorkItem{
		ProjectID:     row[ColProjectID],
		AudioURL:      row[ColAudioURL],
		TaskURL:       row[ColTaskURL],
		RemoteJobID:   row[ColRemoteJobID],
		Transcription: row[ColTranscription],
		AudioUploaded: domain.ParseUploadStatus(row[ColAudioUploaded]),
	}
	if v := row[ColJobExpiresAt]; v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", ColJobExpiresAt, v, err)
		}
		item.JobExpiresAt = ts
	}
	if v := row[ColJobDuration]; v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q: %w", ColJobDuration, v, err)
		}
		item.JobDuration = time.Duration(secs) * time.Second
	}
	for k, v := range row {
		if isKnown(k) {
			continue
		}
		if item.Extra == nil {
			item.Extra = make(map[string]string)
		}
		item.Extra[k] = v
	}
	return item, nil
}

func encodeItem(item *domain.WorkItem, header []string) []string {
	rec := make([]string, len(header))
	for i, col := range header {
		switch col {
		case ColProjectID:
			rec[i] = item.ProjectID
		case ColAudioURL:
			rec[i] = item.AudioURL
		case ColTaskURL:
			rec[i] = item.TaskURL
		case ColRemoteJobID:
			rec[i] = item.RemoteJobID
		case ColJobExpiresAt:
			if !item.JobExpiresAt.IsZero() {
				rec[i] = item.JobExpiresAt.UTC().Format(time.RFC3339)
			}
		case ColJobDuration:
			if item.JobDuration > 0 {
				rec[i] = strconv.FormatInt(int64(item.JobDuration/time.Second), 10)
			}
		case ColTranscription:
			rec[i] = item.Transcription
		case ColAudioUploaded:
			status := item.AudioUploaded
			if status == "" {
				status = domain.UploadStatusNo
			}
			rec[i] = string(status)
		default:
			rec[i] = item.Extra[col]
		}
	}
	return rec
}

// Path returns the file backing the ledger.
func (l *Ledger) Path() string { return l.path }

// Len returns the number of items.
func (l *Ledger) Len() int { return len(l.items) }

// Items returns the items in ledger order. The returned items are live;
// mutate clones when a change may need to be abandoned.
func (l *Ledger) Items() []*domain.WorkItem {
	return append([]*domain.WorkItem(nil), l.items...)
}

// Find returns the item for audioURL, or nil.
func (l *Ledger) Find(audioURL string) *domain.WorkItem {
	for _, item := range l.items {
		if item.AudioURL == audioURL {
			return item
		}
	}
	return nil
}

// Append adds items at the end. Audio URLs must be unique within the ledger.
func (l *Ledger) Append(items ...*domain.WorkItem) error {
	seen := make(map[string]bool, len(l.items)+len(items))
	for _, item := range l.items {
		seen[item.AudioURL] = true
	}
	for _, item := range items {
		if item.AudioURL == "" {
			return &domain.ArgumentError{Field: ColAudioURL, Reason: "must not be empty"}
		}
		if seen[item.AudioURL] {
			return fmt.Errorf("%w: %s", ErrDuplicateAudio, item.AudioURL)
		}
		seen[item.AudioURL] = true
	}
	for _, item := range items {
		if item.AudioUploaded == "" {
			item.AudioUploaded = domain.UploadStatusNo
		}
		for col := range item.Extra {
			if !containsCol(l.header, col) {
				l.header = append(l.header, col)
			}
		}
		l.items = append(l.items, item)
	}
	return nil
}

func containsCol(header []string, col string) bool {
	for _, h := range header {
		if h == col {
			return true
		}
	}
	return false
}

// Replace swaps in updated copies of existing items, matched by audio URL.
func (l *Ledger) Replace(updated ...*domain.WorkItem) error {
	index := make(map[string]int, len(l.items))
	for i, item := range l.items {
		index[item.AudioURL] = i
	}
	for _, u := range updated {
		i, ok := index[u.AudioURL]
		if !ok {
			return fmt.Errorf("no ledger item for %s", u.AudioURL)
		}
		l.items[i] = u
	}
	return nil
}

// Snapshot returns a deep copy of every item, for Restore.
func (l *Ledger) Snapshot() []*domain.WorkItem {
	out := make([]*domain.WorkItem, len(l.items))
	for i, item := range l.items {
		out[i] = item.Clone()
	}
	return out
}

// Restore replaces the in-memory items with a snapshot.
func (l *Ledger) Restore(snapshot []*domain.WorkItem) {
	l.items = make([]*domain.WorkItem, len(snapshot))
	for i, item := range snapshot {
		l.items[i] = item.Clone()
	}
}

// Save writes the ledger atomically: a temp file in the same directory is
// renamed over the old one.
func (l *Ledger) Save() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".assignment-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := l.write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (l *Ledger) write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(l.header); err != nil {
		return err
	}
	for _, item := range l.items {
		if err := cw.Write(encodeItem(item, l.header)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
