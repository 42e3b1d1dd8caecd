package pipeline

import (
	"time"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

// Status summarises what a zone run produced.
type Status string

const (
	StatusNew        Status = "new"
	StatusNothingNew Status = "nothing_new"
	StatusFailed     Status = "failed"
)

// ZoneResult is the outcome of processing one zone.
type ZoneResult struct {
	Zone   string `json:"zone"`
	Status Status `json:"status"`
	// Artifacts are the paths of the rasters created by this run.
	Artifacts []string `json:"artifacts,omitempty"`
	// Uploaded are the object names stored in the bucket by this run.
	Uploaded []string `json:"uploaded,omitempty"`
	// Duplicates are the keys skipped because they were already produced.
	Duplicates []string `json:"duplicates,omitempty"`
	// Skipped are the selected products whose names could not be keyed.
	Skipped    []string    `json:"skipped,omitempty"`
	Quicklooks []string    `json:"quicklooks,omitempty"`
	TooCloudy  bool        `json:"tooCloudy"`
	Trace      scene.Trace `json:"trace"`
	Error      string      `json:"error,omitempty"`
}

// NothingNew reports whether every candidate was a duplicate.
func (r ZoneResult) NothingNew() bool {
	return r.Status == StatusNothingNew
}

// Report is the outcome of one pipeline run over one or more zones.
type Report struct {
	RunID    string       `json:"runId"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Zones    []ZoneResult `json:"zones"`
	// Removed lists what retention deleted after the zones were processed.
	Removed        []string `json:"removed,omitempty"`
	RetentionError string   `json:"retentionError,omitempty"`
}

// Failed reports whether any zone failed.
func (r Report) Failed() bool {
	for _, z := range r.Zones {
		if z.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Artifacts returns every artifact created by the run, including those of
// zones that later failed.
func (r Report) Artifacts() []string {
	var out []string
	for _, z := range r.Zones {
		out = append(out, z.Artifacts...)
	}
	return out
}
