package functions

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/quizapp/quiz-platform/internal/mail"
	"go.uber.org/zap"
)

type BugReportResult struct {
	Success  bool   `json:"success"`
	ReportID string `json:"reportId"`
}

// BugReporter emails bug reports from the app to a fixed destination.
type BugReporter struct {
	log         *zap.Logger
	mailer      Mailer
	destination string
	fromName    string
	newID       func() string
}

func NewBugReporter(log *zap.Logger, mailer Mailer, destination, fromName string) *BugReporter {
	return &BugReporter{
		log:         log,
		mailer:      mailer,
		destination: destination,
		fromName:    fromName,
		newID:       uuid.NewString,
	}
}

func (b *BugReporter) Send(ctx context.Context, caller Caller, data map[string]any) (*BugReportResult, error) {
	title := stringField(data, "title", "")
	description := stringField(data, "description", "")
	name := stringField(data, "name", "Not provided")
	email := stringField(data, "email", "Not provided")
	if title == "" || description == "" {
		return nil, newError(InvalidArgument, "Title and description are required.")
	}

	screen := stringField(data, "screen", "unknown")
	userID := caller.UID
	if userID == "" {
		userID = "anonymous"
	}
	if v, ok := data["userId"]; ok && v != nil {
		userID = stringField(data, "userId", userID)
	}
	metadata, ok := data["metadata"]
	if !ok || metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, newError(InvalidArgument, "Metadata must be JSON.")
	}

	if !b.mailer.Ready() {
		return nil, newError(FailedPrecondition,
			"Missing mail credentials for bug report delivery. Set bugreport.user and bugreport.password.")
	}

	id := b.newID()
	body := strings.Join([]string{
		"Report ID: " + id,
		"Reporter Name: " + name,
		"Reporter Email: " + email,
		"Screen: " + screen,
		"User ID: " + userID,
		"Metadata: " + string(meta),
		"",
		"Description:",
		description,
	}, "\n")

	err = b.mailer.Send(ctx, mail.Message{
		FromName: b.fromName,
		To:       []string{b.destination},
		Subject:  "[Bug] " + title,
		Text:     body,
	})
	if err != nil {
		b.log.Error("bug report delivery failed", zap.String("report_id", id), zap.Error(err))
		return nil, &Error{Code: Internal, Message: "Bug report could not be delivered.", Err: err}
	}
	b.log.Info("bug report sent", zap.String("report_id", id), zap.String("user_id", userID))
	return &BugReportResult{Success: true, ReportID: id}, nil
}
