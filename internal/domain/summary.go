package domain

import "time"

// Failure records why a single source row was not migrated.
type Failure struct {
	NID    int64  `json:"nid"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// Summary describes the outcome of one migration pass.
// WouldMigrate is only set by dry runs, which never touch Migrated.
type Summary struct {
	RunID        string    `json:"runId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	DryRun       bool      `json:"dryRun"`
	Total        int       `json:"total"`
	Migrated     int       `json:"migrated"`
	WouldMigrate int       `json:"wouldMigrate,omitempty"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	Failures     []Failure `json:"failures,omitempty"`
}

// RecordFailure appends a failure for the given row.
func (s *Summary) RecordFailure(src SourceUser, err error) {
	s.Failed++
	s.Failures = append(s.Failures, Failure{
		NID:    src.ID,
		Email:  src.Email,
		Reason: err.Error(),
	})
}

// Succeeded reports whether every processed row was migrated or skipped.
func (s *Summary) Succeeded() bool {
	return s.Failed == 0
}
