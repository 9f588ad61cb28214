package httpserver

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/quizapp/quiz-platform/internal/config"
	"github.com/quizapp/quiz-platform/internal/events"
	"github.com/quizapp/quiz-platform/internal/functions"
	"github.com/quizapp/quiz-platform/internal/mail"
	"github.com/quizapp/quiz-platform/internal/models"
	"github.com/quizapp/quiz-platform/internal/observer"
	"github.com/quizapp/quiz-platform/internal/push"
	"github.com/quizapp/quiz-platform/internal/settings"
	"github.com/quizapp/quiz-platform/internal/store"
	"github.com/quizapp/quiz-platform/pkg/sdk"
	"go.uber.org/zap"
)

const serviceID = "com.example.quiz/com.example.quiz.AppSwitch"

type fakeMailer struct{ sent []mail.Message }

func (m *fakeMailer) Ready() bool { return true }
func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type fakePusher struct{ sent []push.Message }

func (p *fakePusher) Send(_ context.Context, msg push.Message) error {
	p.sent = append(p.sent, msg)
	return nil
}

type failingNavigator struct{}

func (failingNavigator) OpenAccessibilitySettings(context.Context) error {
	return errors.New("no settings activity")
}

type testEnv struct {
	srv      *Server
	bridge   *events.Bridge
	mailer   *fakeMailer
	pusher   *fakePusher
	settings string
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	settingsPath := filepath.Join(t.TempDir(), "enabled_accessibility_services")
	bridge := events.NewBridge(zap.NewNop(), events.Options{
		ServiceID: serviceID,
		Settings:  settings.FileSource{Path: settingsPath},
		Navigator: failingNavigator{},
	})
	t.Cleanup(bridge.Close)

	docs := store.New()
	docs.PutUser(models.User{ID: "teacher", Email: "teacher@example.com", FCMToken: "tok"})
	docs.PutQuiz(models.Quiz{ID: "q1", Title: "Fractions", AuthorID: "teacher"})

	env := &testEnv{bridge: bridge, mailer: &fakeMailer{}, pusher: &fakePusher{}, settings: settingsPath}
	env.srv = New(cfg, zap.NewNop(), Deps{
		Bridge:    bridge,
		Bugs:      functions.NewBugReporter(zap.NewNop(), env.mailer, "bugs@example.com", "Quiz App"),
		Directory: docs,
		Notifier:  functions.NewNotifier(zap.NewNop(), docs, env.pusher),
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	rec := newTestEnv(t, nil).do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAntiCheatStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	var res map[string]bool
	rec := env.do(t, http.MethodGet, "/v1/anticheat/status", "", nil)
	decode(t, rec, &res)
	if res["enabled"] {
		t.Fatal("missing settings file must read as disabled")
	}

	if err := os.WriteFile(env.settings, []byte("com.a/com.a.S:"+strings.ToUpper(serviceID)), 0o600); err != nil {
		t.Fatal(err)
	}
	rec = env.do(t, http.MethodGet, "/v1/anticheat/status", "", nil)
	decode(t, rec, &res)
	if !res["enabled"] {
		t.Fatal("service should be enabled")
	}
}

func TestAntiCheatEnable(t *testing.T) {
	env := newTestEnv(t, nil)
	if rec := env.do(t, http.MethodPost, "/v1/anticheat/enable", "", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("navigation failure: got %d", rec.Code)
	}

	env.bridge.Reload(events.Options{Navigator: settings.CommandNavigator{Argv: []string{"true"}}})
	if rec := env.do(t, http.MethodPost, "/v1/anticheat/enable", "", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestCallableCheckEmailExists(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/functions/checkEmailExists", `{"data":{"email":"teacher@example.com"}}`, nil)
	var ok struct {
		Result functions.EmailExistsResult `json:"result"`
	}
	decode(t, rec, &ok)
	if rec.Code != http.StatusOK || !ok.Result.Exists {
		t.Fatalf("got %d %+v", rec.Code, ok)
	}

	rec = env.do(t, http.MethodPost, "/v1/functions/checkEmailExists", `{"data":{}}`, nil)
	var bad struct {
		Error callableError `json:"error"`
	}
	decode(t, rec, &bad)
	if rec.Code != http.StatusBadRequest || bad.Error.Status != "INVALID_ARGUMENT" || bad.Error.Message != "Email is required." {
		t.Fatalf("got %d %+v", rec.Code, bad)
	}

	rec = env.do(t, http.MethodPost, "/v1/functions/checkEmailExists", `not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: got %d", rec.Code)
	}
}

func TestCallableSendBugReport(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/functions/sendBugReport", `{"data":{"title":"crash","description":"on submit"}}`, nil)
	var res struct {
		Result functions.BugReportResult `json:"result"`
	}
	decode(t, rec, &res)
	if rec.Code != http.StatusOK || !res.Result.Success || res.Result.ReportID == "" {
		t.Fatalf("got %d %+v", rec.Code, res)
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].Subject != "[Bug] crash" {
		t.Fatalf("sent %+v", env.mailer.sent)
	}
}

func TestTriggerAttemptCreated(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/triggers/attempts/q1/a1/created", `{"attempt":{"participantName":"Ada"}}`, nil)
	var res map[string]string
	decode(t, rec, &res)
	if res["outcome"] != string(functions.OutcomeSent) {
		t.Fatalf("got %+v", res)
	}
	if env.pusher.sent[0].Data["attemptId"] != "a1" {
		t.Fatalf("data %+v", env.pusher.sent[0].Data)
	}

	rec = env.do(t, http.MethodPost, "/v1/triggers/attempts/q1/a1/updated", `{"before":{"score":1},"after":{"score":1}}`, nil)
	decode(t, rec, &res)
	if res["outcome"] != string(functions.OutcomeSkipped) {
		t.Fatalf("got %+v", res)
	}

	if rec := env.do(t, http.MethodPost, "/v1/triggers/attempts/q1/a1/created", `{`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/anticheat/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !env.bridge.HasSubscriber() {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	pkg := "com.other.app"
	obs := observer.New(zap.NewNop(), env.bridge)
	obs.Connected()
	obs.Notify(events.RawEvent{Type: events.TypeWindowStateChanged, PackageName: &pkg, EventTime: 5})
	obs.Disconnected()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []sdk.Envelope
	for i := 0; i < 3; i++ {
		var e sdk.Envelope
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	if got[0].Type != sdk.TypeServiceState || got[0].State != sdk.StateConnected {
		t.Errorf("event 0: %+v", got[0])
	}
	if got[1].Type != sdk.TypeForegroundChange || got[1].EventKind != sdk.KindWindowStateChanged || got[1].PackageName != pkg || got[1].Timestamp != 5 {
		t.Errorf("event 1: %+v", got[1])
	}
	if got[2].Type != sdk.TypeServiceState || got[2].State != sdk.StateDisconnected {
		t.Errorf("event 2: %+v", got[2])
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for env.bridge.HasSubscriber() {
		if time.Now().After(deadline) {
			t.Fatal("subscription not released after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func writeCert(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "k1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_ = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	path := filepath.Join(t.TempDir(), "k1.pem")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path, key
}

func TestAuth(t *testing.T) {
	path, key := writeCert(t)
	cfg := &config.Config{}
	cfg.Auth.JWTPublicKeys = []string{path}
	env := newTestEnv(t, cfg)

	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, gojwt.MapClaims{"sub": "uid-9"})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	bearerHdr := map[string]string{"Authorization": "Bearer " + signed}

	if rec := env.do(t, http.MethodGet, "/v1/anticheat/status", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/anticheat/status", "", map[string]string{"Authorization": "Bearer junk"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/anticheat/status", "", bearerHdr); rec.Code != http.StatusOK {
		t.Fatalf("good token: got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/v1/anticheat/status?access_token="+signed, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("query token: got %d", rec.Code)
	}

	// callables stay open to anonymous callers but reject bad tokens
	body := `{"data":{"title":"t","description":"d"}}`
	if rec := env.do(t, http.MethodPost, "/v1/functions/sendBugReport", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("anonymous callable: got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/functions/sendBugReport", body, map[string]string{"Authorization": "Bearer junk"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token callable: got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/v1/functions/sendBugReport", body, bearerHdr); rec.Code != http.StatusOK {
		t.Fatalf("authenticated callable: got %d", rec.Code)
	}
	if last := env.mailer.sent[len(env.mailer.sent)-1].Text; !strings.Contains(last, "User ID: uid-9") {
		t.Fatalf("caller uid not used:\n%s", last)
	}
}
