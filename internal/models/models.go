package models

// User is a document of the users collection.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Email       string `json:"email" yaml:"email"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name"`
	FCMToken    string `json:"fcmToken,omitempty" yaml:"fcm_token"`
	// Notification preferences default to true when unset.
	NotifySubmission   *bool `json:"notifySubmission,omitempty" yaml:"notify_submission"`
	NotifyResultUpdate *bool `json:"notifyResultUpdate,omitempty" yaml:"notify_result_update"`
}

func (u *User) WantsSubmissionNotifications() bool {
	return u.NotifySubmission == nil || *u.NotifySubmission
}

func (u *User) WantsResultNotifications() bool {
	return u.NotifyResultUpdate == nil || *u.NotifyResultUpdate
}

// Quiz is a document of the quizzes collection.
type Quiz struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	AuthorID string `json:"authorId" yaml:"author_id"`
}

const StatusGraded = "graded"

// Attempt is a document of quizzes/{quizId}/attempts.
type Attempt struct {
	ID              string   `json:"id,omitempty" yaml:"id"`
	UserID          string   `json:"userId,omitempty" yaml:"user_id"`
	ParticipantName string   `json:"participantName,omitempty" yaml:"participant_name"`
	Score           *float64 `json:"score,omitempty" yaml:"score"`
	Status          string   `json:"status,omitempty" yaml:"status"`
}
