package task

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kumbukumbu/core"
)

// Kind is the resource segment of follow-up tasks.
const Kind = "tasks"

type Status string

const (
	StatusToDo       Status = "To-Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

var Statuses = []Status{StatusToDo, StatusInProgress, StatusDone}

func (s Status) Choices() []string {
	out := make([]string, 0, len(Statuses))
	for _, st := range Statuses {
		out = append(out, string(st))
	}
	return out
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Task is a follow-up, optionally about a student.
type Task struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	StudentID      null.String `json:"student_id" db:"student_id"`
	Title          string      `json:"title" db:"title"`
	Status         Status      `json:"status" db:"status"`
	DueDate        null.Time   `json:"due_date" db:"due_date"` // UTC
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

type NewTask struct {
	Title     string      `json:"title" validate:"required,notblank,max=200"`
	Status    Status      `json:"status" validate:"omitempty,enum"` // defaults to To-Do
	StudentID null.String `json:"student_id"`
	DueDate   null.Time   `json:"due_date"`
}

func (nt *NewTask) Clean() {
	nt.Title = core.CleanString(nt.Title)
	if nt.Status == "" {
		nt.Status = StatusToDo
	}
	if nt.StudentID.Valid && core.CleanString(nt.StudentID.String) == "" {
		nt.StudentID = null.String{}
	}
	if nt.DueDate.Valid {
		nt.DueDate.Time = nt.DueDate.Time.UTC()
	}
}

// UpdateTask is a partial update. An empty StudentID detaches the task from its student;
// ClearDueDate removes the due date.
type UpdateTask struct {
	Title        *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Status       *Status    `json:"status" validate:"omitempty,enum"`
	StudentID    *string    `json:"student_id"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

func (ut *UpdateTask) Clean() {
	if ut.Title != nil {
		*ut.Title = core.CleanString(*ut.Title)
	}
	if ut.StudentID != nil {
		*ut.StudentID = core.CleanString(*ut.StudentID)
	}
	if ut.DueDate != nil {
		d := ut.DueDate.UTC()
		ut.DueDate = &d
	}
}

func (ut UpdateTask) Apply(t *Task) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Status != nil {
		t.Status = *ut.Status
	}
	if ut.StudentID != nil {
		t.StudentID = null.NewString(*ut.StudentID, *ut.StudentID != "")
	}
	if ut.ClearDueDate {
		t.DueDate = null.Time{}
	} else if ut.DueDate != nil {
		t.DueDate = null.TimeFrom(*ut.DueDate)
	}
}

func Build(id string, scope core.Scope, nt NewTask, now time.Time) Task {
	status := nt.Status
	if status == "" {
		status = StatusToDo
	}
	return Task{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		StudentID:      nt.StudentID,
		Title:          nt.Title,
		Status:         status,
		DueDate:        nt.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Less orders tasks by due date (undated last), then by creation.
func Less(a, b Task) bool {
	switch {
	case a.DueDate.Valid && !b.DueDate.Valid:
		return true
	case !a.DueDate.Valid && b.DueDate.Valid:
		return false
	case a.DueDate.Valid && !a.DueDate.Time.Equal(b.DueDate.Time):
		return a.DueDate.Time.Before(b.DueDate.Time)
	}
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
