// Package functions implements the backend's callable functions and
// document triggers.
package functions

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizapp/quiz-platform/internal/mail"
	"github.com/quizapp/quiz-platform/internal/models"
	"github.com/quizapp/quiz-platform/internal/push"
)

// Caller identifies who invoked a callable. UID is empty for anonymous
// callers.
type Caller struct {
	UID string
}

type Mailer interface {
	Ready() bool
	Send(ctx context.Context, msg mail.Message) error
}

type Directory interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Documents interface {
	User(ctx context.Context, id string) (*models.User, error)
	Quiz(ctx context.Context, id string) (*models.Quiz, error)
}

type Pusher interface {
	Send(ctx context.Context, msg push.Message) error
}

// stringField reads a field the way loosely typed clients send it: absent or
// null gives def, non-strings are formatted.
func stringField(data map[string]any, key, def string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return strings.TrimSpace(def)
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
