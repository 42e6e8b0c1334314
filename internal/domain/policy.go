package domain

import (
	"fmt"
	"strings"
	"time"
)

// Comparator is a qualification comparison operator.
type Comparator string

const (
	ComparatorGreaterThan        Comparator = ">"
	ComparatorGreaterThanOrEqual Comparator = ">="
	ComparatorLessThan           Comparator = "<"
	ComparatorLessThanOrEqual    Comparator = "<="
	ComparatorEqual              Comparator = "=="
	ComparatorNotEqual           Comparator = "!="
	ComparatorExists             Comparator = "exists"
)

// Qualification restricts which workers may accept a job.
type Qualification struct {
	Attribute  string     `json:"attribute"`
	Comparator Comparator `json:"comparator"`
	Value      string     `json:"value,omitempty"`
}

// String renders the qualification in the same form it is configured in.
func (q Qualification) String() string {
	if q.Value == "" {
		return fmt.Sprintf("%s %s", q.Attribute, q.Comparator)
	}
	return fmt.Sprintf("%s %s %s", q.Attribute, q.Comparator, q.Value)
}

// Reward is the per-job payment.
type Reward struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (r Reward) String() string {
	return strings.TrimSpace(r.Amount + " " + r.Currency)
}

// Policy bundles everything the marketplace needs to price and schedule a job.
// Changes between runs only affect newly created jobs.
type Policy struct {
	Title          string
	Description    string
	Reward         Reward
	Keywords       []string
	Qualifications []Qualification
	Deadline       time.Duration // time a worker has to finish after accepting
	Lifetime       time.Duration // time the job stays assignable
	Approval       time.Duration // delay before a submission is auto-approved
}

// IdentifierFields names the hidden task-page fields that tie a remote job back
// to a local work item. The names are a wire contract with previously
// published jobs; changing them orphans existing jobs.
type IdentifierFields struct {
	ProjectID     string
	AudioURL      string
	Transcription string
}

// DefaultIdentifierFields returns the field names used by published task pages.
func DefaultIdentifierFields() IdentifierFields {
	return IdentifierFields{
		ProjectID:     "typingpool_project_id",
		AudioURL:      "typingpool_url",
		Transcription: "transcription",
	}
}

// Identifiers returns the identifier map embedded into an item's task page and job.
func (f IdentifierFields) Identifiers(item *WorkItem) map[string]string {
	return map[string]string{
		f.ProjectID: item.ProjectID,
		f.AudioURL:  item.AudioURL,
	}
}
