// Package push sends notifications through Firebase Cloud Messaging.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ScopeMessaging is the OAuth scope FCM HTTP v1 requires.
const ScopeMessaging = "https://www.googleapis.com/auth/firebase.messaging"

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type Message struct {
	Token        string            `json:"token"`
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

// FCMSender posts to the FCM HTTP v1 API. Access tokens come from an
// oauth2.TokenSource and are refreshed when they expire.
type FCMSender struct {
	endpoint  string
	projectID string
	client    *http.Client
}

// NewFCMSender authorizes requests with tokens from ts.
func NewFCMSender(endpoint, projectID string, ts oauth2.TokenSource) *FCMSender {
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = 10 * time.Second
	return &FCMSender{
		endpoint:  strings.TrimRight(endpoint, "/"),
		projectID: projectID,
		client:    client,
	}
}

// ServiceAccountTokenSource reads a Google service account key file and
// returns a refreshing token source for the messaging scope. An empty
// projectID is taken from the key file.
func ServiceAccountTokenSource(ctx context.Context, path string) (oauth2.TokenSource, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	creds, err := google.CredentialsFromJSON(ctx, b, ScopeMessaging)
	if err != nil {
		return nil, "", fmt.Errorf("push: %s: %w", path, err)
	}
	return creds.TokenSource, creds.ProjectID, nil
}

// StaticTokenSource wraps a fixed access token, for emulators and tests.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func (s *FCMSender) Send(ctx context.Context, msg Message) error {
	if msg.Token == "" {
		return errors.New("push: empty device token")
	}
	body, err := json.Marshal(map[string]any{"message": msg})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.endpoint, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: fcm status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}

// LogSender only logs what it would send.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Log.Info("push (dry run)",
		zap.String("title", msg.Notification.Title),
		zap.String("body", msg.Notification.Body),
		zap.Any("data", msg.Data))
	return nil
}
