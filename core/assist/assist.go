// Package assist defines the AI collaborators. Their internals are out of reach of the core:
// callers only see request/response functions that may be slow or fail.
package assist

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message, context map[string]string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Entry is one dated observation fed to a summary.
type Entry struct {
	Kind       string
	Title      string
	Note       string
	OccurredAt time.Time
}

const summaryPrompt = "You help teachers follow up on their students. " +
	"Summarize the observations below in a few sentences and suggest one next step."

// SummaryMessages composes the messages asking for a summary of a student's entries.
func SummaryMessages(studentName string, entries []Entry) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Student: %s\n", studentName)
	if len(entries) == 0 {
		b.WriteString("No observations recorded.\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s %s: %s\n", e.OccurredAt.Format("2006-01-02"), e.Kind, e.Title, e.Note)
	}
	return []Message{
		{Role: RoleSystem, Content: summaryPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}
