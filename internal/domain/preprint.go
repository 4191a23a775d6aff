package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reference is a single bibliography entry extracted from a manuscript.
// Link is always non-empty on an emitted reference; Title may be empty
// when the citation line starts with its link.
type Reference struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// PreprintStatus is the review state of a submitted preprint.
// New submissions always start as StatusSubmitted; transitions are
// performed by the editorial workflow, never by the submission pipeline.
type PreprintStatus string

const (
	StatusSubmitted   PreprintStatus = "Submitted"
	StatusUnderReview PreprintStatus = "UnderReview"
	StatusAccepted    PreprintStatus = "Accepted"
	StatusRejected    PreprintStatus = "Rejected"
)

// String returns the status as stored and serialized.
func (s PreprintStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s PreprintStatus) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Preprint is the persisted record produced per accepted submission.
// The record is immutable after creation except for Status, which later
// editorial stages update through the repository.
type Preprint struct {
	ID               uuid.UUID
	Title            string
	Author           string
	Abstract         string
	Identifier       string
	References       []Reference
	DocumentLocation string
	Status           PreprintStatus
	OwnerID          uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
