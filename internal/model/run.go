package model

import "time"

// Run carries the state of one scrape through the pipeline steps.
// Each step reads what earlier steps produced and adds its own output.
type Run struct {
	// URL is the page to scrape.
	URL string

	// TagKinds are the normalized tag kinds to extract, in request order.
	TagKinds []string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Document is set by the fetch step.
	Document *Document

	// Results is set by the extract step.
	Results *ResultSet

	// Files lists the paths written by the persist step.
	Files []string

	// PersistFailures counts tag kinds whose files could not be written.
	PersistFailures int

	// PerformedSteps lists the names of steps that ran, in order.
	PerformedSteps []string

	// Err is the error that stopped the pipeline, if any.
	Err error
}

// NewRun creates a Run for the given URL and tag kinds.
func NewRun(url string, tagKinds []string) *Run {
	return &Run{
		URL:            url,
		TagKinds:       tagKinds,
		StartedAt:      time.Now(),
		Files:          make([]string, 0),
		PerformedSteps: make([]string, 0),
	}
}

// Succeeded reports whether the run produced results without error.
func (r *Run) Succeeded() bool {
	return r.Err == nil && r.Results != nil
}
