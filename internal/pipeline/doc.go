// Package pipeline runs a scrape as a sequence of steps.
//
// A scrape is delay, fetch, content-type guard, extract, preview, persist
// and optionally record. Each step receives the model.Run built up by the
// earlier steps and adds its own output. The pipeline stops at the first
// failing step and leaves the error in Run.Err.
package pipeline
