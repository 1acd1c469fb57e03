package models

import (
	"time"
)

// Candidate is a key present in both trees, with the path on each side
type Candidate struct {
	Name    string
	OldPath string
	NewPath string
}

// ModifiedEntry is a binary whose old and new versions scored at or below the
// similarity threshold
type ModifiedEntry struct {
	Name       string       `json:"name"`
	OldPath    string       `json:"old_path"`
	NewPath    string       `json:"new_path"`
	Similarity int          `json:"similarity"`
	Category   FileCategory `json:"type"`
}

// PairError is a common pair that could not be evaluated in keep-going mode
type PairError struct {
	Name    string
	OldPath string
	NewPath string
	Err     error
}

// DiffStatus represents the overall result of a comparison
type DiffStatus string

const (
	// StatusSuccess indicates every common pair was evaluated
	StatusSuccess DiffStatus = "success"
	// StatusPartial indicates some pairs were skipped because of errors
	StatusPartial DiffStatus = "partial"
)

// ExitCode returns the process exit code for the status
func (s DiffStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	default:
		return 1
	}
}

// DiffResult is the outcome of comparing two file indexes. It is not modified
// after the engine returns it.
type DiffResult struct {
	ID        string
	OldRoot   string
	NewRoot   string
	Threshold int

	// Modified is sorted by name, then category rank
	Modified []ModifiedEntry
	// Added holds keys only present in the new tree, sorted
	Added []string
	// Removed holds keys only present in the old tree, sorted
	Removed []string
	// Common is the number of keys present in both trees
	Common int
	// Evaluated is the number of common pairs that were fuzzy-compared
	Evaluated int

	Skipped []PairError

	StartTime time.Time
	Duration  time.Duration
}

// Status derives the overall status from the skipped pairs
func (r *DiffResult) Status() DiffStatus {
	if len(r.Skipped) > 0 {
		return StatusPartial
	}
	return StatusSuccess
}
