package pipeline

import (
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/movieport/pkg/errors"
)

// StageResult is the outcome of one stage
type StageResult struct {
	Name     string        `json:"name"`
	In       int           `json:"in"`
	Out      int           `json:"out"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes a run
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Stages    []StageResult `json:"stages"`
	Error     string        `json:"error,omitempty"`
}

// Stage returns the result of the named stage
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Failed reports whether the run stopped on an error
func (r *Report) Failed() bool {
	return r.Error != ""
}

// WriteFile stores the report as indented JSON
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode run report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write run report").WithDetail("path", path)
	}
	return nil
}

// ReadReport loads a report written by WriteFile
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read run report").WithDetail("path", path)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to decode run report").WithDetail("path", path)
	}
	return &r, nil
}
