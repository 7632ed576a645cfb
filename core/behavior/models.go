package behavior

import (
	"time"

	"github.com/trezcool/kumbukumbu/core"
)

// Resource segments.
const (
	CategoryKind = "behavior-categories"
	LogKind      = "behavior-logs"
)

// Category classifies behavior logs. A category referenced by a log cannot be deleted.
type Category struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewCategory struct {
	Name        string `json:"name" validate:"required,notblank,max=80"`
	Description string `json:"description" validate:"max=500"`
}

func (nc *NewCategory) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
}

type UpdateCategory struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=80"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

func (uc *UpdateCategory) Clean() {
	if uc.Name != nil {
		*uc.Name = core.CleanString(*uc.Name)
	}
	if uc.Description != nil {
		*uc.Description = core.CleanString(*uc.Description)
	}
}

func (uc UpdateCategory) Apply(c *Category) {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
}

func BuildCategory(id string, scope core.Scope, nc NewCategory, now time.Time) Category {
	return Category{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		Name:           nc.Name,
		Description:    nc.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// LessCategory orders categories by name.
func LessCategory(a, b Category) bool {
	if a.Name == b.Name {
		return a.ID < b.ID
	}
	return a.Name < b.Name
}

// Log is a behavior observation about a student.
type Log struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	StudentID      string    `json:"student_id" db:"student_id"`
	CategoryID     string    `json:"category_id" db:"category_id"`
	Note           string    `json:"note" db:"note"`
	OccurredAt     time.Time `json:"occurred_at" db:"occurred_at"` // UTC
	CreatedAt      time.Time `json:"created_at" db:"created_at"`   // UTC
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`   // UTC
}

type NewLog struct {
	CategoryID string    `json:"category_id" validate:"required"`
	Note       string    `json:"note" validate:"required,notblank,max=4000"`
	OccurredAt time.Time `json:"occurred_at"` // defaults to now
}

func (nl *NewLog) Clean() {
	nl.CategoryID = core.CleanString(nl.CategoryID)
	nl.Note = core.CleanString(nl.Note)
	if !nl.OccurredAt.IsZero() {
		nl.OccurredAt = nl.OccurredAt.UTC()
	}
}

type UpdateLog struct {
	CategoryID *string    `json:"category_id" validate:"omitempty,notblank"`
	Note       *string    `json:"note" validate:"omitempty,notblank,max=4000"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func (ul *UpdateLog) Clean() {
	if ul.CategoryID != nil {
		*ul.CategoryID = core.CleanString(*ul.CategoryID)
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
	if ul.CategoryID != nil {
		l.CategoryID = *ul.CategoryID
	}
	if ul.Note != nil {
		l.Note = *ul.Note
	}
	if ul.OccurredAt != nil {
		l.OccurredAt = *ul.OccurredAt
	}
}

// BuildLog returns the Log a NewLog describes. scope.ParentID is the student.
func BuildLog(id string, scope core.Scope, nl NewLog, now time.Time) Log {
	occurred := nl.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return Log{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		StudentID:      scope.ParentID,
		CategoryID:     nl.CategoryID,
		Note:           nl.Note,
		OccurredAt:     occurred,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// LessLog orders logs newest first.
func LessLog(a, b Log) bool {
	if a.OccurredAt.Equal(b.OccurredAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.OccurredAt.After(b.OccurredAt)
}
