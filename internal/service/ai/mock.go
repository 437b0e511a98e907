package ai

import (
	"context"
	"fmt"
	"strings"
)

// Mock answers without any network call. It echoes the user's words so the
// chat flow can be exercised end to end without credentials.
type Mock struct{}

// NewMock returns the canned assistant.
func NewMock() *Mock { return &Mock{} }

// Reply implements Assistant.
func (*Mock) Reply(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	said := prompt
	if _, after, ok := strings.Cut(prompt, "User says: "); ok {
		said = after
	}
	said = strings.TrimSpace(said)

	return fmt.Sprintf("Thank you for sharing that. You said: %q. How has that been affecting your day?", said), nil
}
