package assist

import (
	"context"
	"fmt"
	"strings"
)

// Console is an offline ChatCompleter & Transcriber. It echoes a digest of its input.
type Console struct{}

var (
	_ ChatCompleter = Console{}
	_ Transcriber   = Console{}
)

func (Console) Complete(ctx context.Context, messages []Message, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var lines int
	for _, m := range messages {
		if m.Role == RoleUser {
			lines += strings.Count(m.Content, "\n- ")
		}
	}
	return fmt.Sprintf("Summary unavailable offline: %d observation(s) recorded.", lines), nil
}

func (Console) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%d bytes of audio]", len(audio)), nil
}
