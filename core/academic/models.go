package academic

import (
	"time"

	"github.com/trezcool/kumbukumbu/core"
)

// Kind is the resource segment of academic logs.
const Kind = "academic-logs"

// Log is an academic observation about a student.
type Log struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	StudentID      string    `json:"student_id" db:"student_id"`
	Subject        string    `json:"subject" db:"subject"`
	Note           string    `json:"note" db:"note"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"` // UTC
	CreatedAt      time.Time `json:"created_at" db:"created_at"`   // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`   // UTC
}

type NewLog struct {
	Subject    string    `json:"subject" validate:"required,notblank,max=120"`
	Note       string    `json:"note" validate:"required,notblank,max=4000"`
	OccurredAt time.Time `json:"occurred_at"` // defaults to now
}

func (nl *NewLog) Clean() {
	nl.Subject = core.CleanString(nl.Subject)
	nl.Note = core.CleanString(nl.Note)
	if !nl.OccurredAt.IsZero() {
		nl.OccurredAt = nl.OccurredAt.UTC()
	}
}

type UpdateLog struct {
	Subject    *string    `json:"subject" validate:"omitempty,notblank,max=120"`
	Note       *string    `json:"note" validate:"omitempty,notblank,max=4000"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func (ul *UpdateLog) Clean() {
	if ul.Subject != nil {
		*ul.Subject = core.CleanString(*ul.Subject)
	}
	if ul.Note != nil {
		*ul.Note = core.CleanString(*ul.Note)
	}
	if ul.OccurredAt != nil {
		t := ul.OccurredAt.UTC()
		ul.OccurredAt = &t
	}
}

func (ul UpdateLog) Apply(l *Log) {
	if ul.Subject != nil {
		l.Subject = *ul.Subject
	}
	if ul.Note != nil {
		l.Note = *ul.Note
	}
	if ul.OccurredAt != nil {
		l.OccurredAt = *ul.OccurredAt
	}
}

// Build returns the Log a NewLog describes. scope.ParentID is the student.
func Build(id string, scope core.Scope, nl NewLog, now time.Time) Log {
	occurred := nl.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return Log{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		StudentID:      scope.ParentID,
		Subject:        nl.Subject,
		Note:           nl.Note,
		OccurredAt:     occurred,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Less orders logs newest first.
func Less(a, b Log) bool {
	if a.OccurredAt.Equal(b.OccurredAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.OccurredAt.After(b.OccurredAt)
}
