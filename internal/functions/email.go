package functions

import (
	"context"
	"errors"

	"github.com/quizapp/quiz-platform/internal/store"
)

type EmailExistsResult struct {
	Exists bool `json:"exists"`
}

// CheckEmailExists reports whether an account uses the given address.
func CheckEmailExists(ctx context.Context, dir Directory, data map[string]any) (*EmailExistsResult, error) {
	email := stringField(data, "email", "")
	if email == "" {
		return nil, newError(InvalidArgument, "Email is required.")
	}
	_, err := dir.UserByEmail(ctx, email)
	switch {
	case err == nil:
		return &EmailExistsResult{Exists: true}, nil
	case errors.Is(err, store.ErrNotFound):
		return &EmailExistsResult{Exists: false}, nil
	}
	return nil, &Error{Code: Internal, Message: "Error checking email.", Err: err}
}
