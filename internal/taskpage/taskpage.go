// Package taskpage renders the HTML task page each remote job points at and
// the transcript assembled from collected results.
package taskpage

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/storage"
)

//go:embed templates/*.html
var defaults embed.FS

type hiddenField struct {
	Name  string
	Value string
}

type taskData struct {
	Title       string
	Description string
	SubmitURL   string
	AudioURL    string
	AnswerField string
	Hidden      []hiddenField
}

type chunkData struct {
	AudioURL   string
	Label      string
	Paragraphs []string
}

type transcriptData struct {
	Title    string
	Subtitle string
	Done     int
	Total    int
	Chunks   []chunkData
}

// Transcript describes a transcript document.
type Transcript struct {
	Title    string
	Subtitle string
	Total    int
	Items    []*domain.WorkItem
}

// Renderer renders task pages. The identifier fields are embedded as hidden
// inputs; their names are a wire contract with already published jobs.
type Renderer struct {
	fields     domain.IdentifierFields
	submitURL  string
	task       *template.Template
	transcript *template.Template
}

// Options configures a Renderer.
type Options struct {
	Fields domain.IdentifierFields
	// SubmitURL is the form action workers post their answer to.
	SubmitURL string
	// TaskTemplate overrides the embedded task page template.
	TaskTemplate string
}

// New parses the templates.
func New(opts Options) (*Renderer, error) {
	task, err := template.ParseFS(defaults, "templates/task.html")
	if err != nil {
		return nil, err
	}
	if opts.TaskTemplate != "" {
		task, err = template.ParseFiles(opts.TaskTemplate)
		if err != nil {
			return nil, fmt.Errorf("parse task template: %w", err)
		}
	}
	transcript, err := template.ParseFS(defaults, "templates/transcript.html")
	if err != nil {
		return nil, err
	}
	fields := opts.Fields
	if fields.ProjectID == "" || fields.AudioURL == "" || fields.Transcription == "" {
		fields = domain.DefaultIdentifierFields()
	}
	return &Renderer{fields: fields, submitURL: opts.SubmitURL, task: task, transcript: transcript}, nil
}

// RenderTask renders the task page for one item.
func (r *Renderer) RenderTask(item *domain.WorkItem, policy domain.Policy) (string, error) {
	ids := r.fields.Identifiers(item)
	data := taskData{
		Title:       policy.Title,
		Description: policy.Description,
		SubmitURL:   r.submitURL,
		AudioURL:    item.AudioURL,
		AnswerField: r.fields.Transcription,
		Hidden: []hiddenField{
			{Name: r.fields.ProjectID, Value: ids[r.fields.ProjectID]},
			{Name: r.fields.AudioURL, Value: ids[r.fields.AudioURL]},
		},
	}
	var buf bytes.Buffer
	if err := r.task.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render task page for %s: %w", item.AudioURL, err)
	}
	return buf.String(), nil
}

// RenderTranscript writes the transcript document for the transcribed items.
func (r *Renderer) RenderTranscript(w io.Writer, t Transcript) error {
	data := transcriptData{
		Title:    t.Title,
		Subtitle: t.Subtitle,
		Total:    t.Total,
	}
	for _, item := range t.Items {
		if !item.Complete() {
			continue
		}
		data.Chunks = append(data.Chunks, chunkData{
			AudioURL:   item.AudioURL,
			Label:      storage.CanonicalBaseName(item.AudioURL),
			Paragraphs: paragraphs(item.Transcription),
		})
	}
	data.Done = len(data.Chunks)
	return r.transcript.Execute(w, data)
}

func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
