package functions

import (
	"context"
	"errors"
	"strconv"

	"github.com/quizapp/quiz-platform/internal/models"
	"github.com/quizapp/quiz-platform/internal/push"
	"github.com/quizapp/quiz-platform/internal/store"
	"go.uber.org/zap"
)

const clickAction = "FLUTTER_NOTIFICATION_CLICK"

// Outcome is what a trigger did with an attempt change.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Notifier pushes notifications on attempt lifecycle changes. Failures are
// logged and reported as OutcomeFailed, never returned.
type Notifier struct {
	log    *zap.Logger
	docs   Documents
	pusher Pusher
}

func NewNotifier(log *zap.Logger, docs Documents, pusher Pusher) *Notifier {
	return &Notifier{log: log, docs: docs, pusher: pusher}
}

// AttemptCreated tells the quiz author about a new submission.
func (n *Notifier) AttemptCreated(ctx context.Context, quizID, attemptID string, attempt models.Attempt) Outcome {
	log := n.log.With(zap.String("quiz_id", quizID), zap.String("attempt_id", attemptID))

	quiz, err := n.docs.Quiz(ctx, quizID)
	if err != nil {
		return n.skipOrFail(log, "quiz", err)
	}
	if quiz.AuthorID == "" {
		return OutcomeSkipped
	}
	author, err := n.docs.User(ctx, quiz.AuthorID)
	if err != nil {
		return n.skipOrFail(log, "author", err)
	}
	if !author.WantsSubmissionNotifications() {
		log.Info("instructor disabled submission notifications", zap.String("user_id", author.ID))
		return OutcomeSkipped
	}
	if author.FCMToken == "" {
		log.Info("no push token for instructor", zap.String("user_id", author.ID))
		return OutcomeSkipped
	}

	student := attempt.ParticipantName
	if student == "" {
		student = "A student"
	}
	err = n.pusher.Send(ctx, push.Message{
		Token: author.FCMToken,
		Notification: push.Notification{
			Title: "New Submission: " + quiz.Title,
			Body:  student + " has submitted an attempt.",
		},
		Data: map[string]string{
			"click_action": clickAction,
			"screen":       "quiz_results",
			"quizId":       quizID,
			"attemptId":    attemptID,
		},
	})
	if err != nil {
		log.Error("submission notification failed", zap.Error(err))
		return OutcomeFailed
	}
	log.Info("submission notification sent", zap.String("user_id", author.ID))
	return OutcomeSent
}

// AttemptUpdated tells the student their result changed. Only score changes
// and the transition into graded count.
func (n *Notifier) AttemptUpdated(ctx context.Context, quizID, attemptID string, before, after models.Attempt) Outcome {
	log := n.log.With(zap.String("quiz_id", quizID), zap.String("attempt_id", attemptID))

	scoreChanged := !sameScore(before.Score, after.Score)
	justGraded := after.Status == models.StatusGraded && before.Status != models.StatusGraded
	if !scoreChanged && !justGraded {
		return OutcomeSkipped
	}
	if after.UserID == "" {
		return OutcomeSkipped
	}

	student, err := n.docs.User(ctx, after.UserID)
	if err != nil {
		return n.skipOrFail(log, "student", err)
	}
	if !student.WantsResultNotifications() {
		log.Info("student disabled result notifications", zap.String("user_id", student.ID))
		return OutcomeSkipped
	}
	if student.FCMToken == "" {
		log.Info("no push token for student", zap.String("user_id", student.ID))
		return OutcomeSkipped
	}

	title := "Quiz"
	quiz, err := n.docs.Quiz(ctx, quizID)
	switch {
	case err == nil:
		title = quiz.Title
	case !errors.Is(err, store.ErrNotFound):
		log.Error("quiz lookup failed", zap.Error(err))
		return OutcomeFailed
	}

	err = n.pusher.Send(ctx, push.Message{
		Token: student.FCMToken,
		Notification: push.Notification{
			Title: "Results Updated: " + title,
			Body:  "Your new score is " + formatScore(after.Score) + ". Tap to view.",
		},
		Data: map[string]string{
			"click_action": clickAction,
			"screen":       "attempt_detail",
			"quizId":       quizID,
			"attemptId":    attemptID,
		},
	})
	if err != nil {
		log.Error("result notification failed", zap.Error(err))
		return OutcomeFailed
	}
	log.Info("result notification sent", zap.String("user_id", student.ID))
	return OutcomeSent
}

func (n *Notifier) skipOrFail(log *zap.Logger, what string, err error) Outcome {
	if errors.Is(err, store.ErrNotFound) {
		log.Debug(what+" not found")
		return OutcomeSkipped
	}
	log.Error(what+" lookup failed", zap.Error(err))
	return OutcomeFailed
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatScore(s *float64) string {
	if s == nil {
		return "pending"
	}
	return strconv.FormatFloat(*s, 'f', -1, 64)
}
