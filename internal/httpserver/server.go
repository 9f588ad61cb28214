package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/quizapp/quiz-platform/internal/config"
	"github.com/quizapp/quiz-platform/internal/events"
	"github.com/quizapp/quiz-platform/internal/functions"
	"github.com/quizapp/quiz-platform/internal/jwt"
	"github.com/quizapp/quiz-platform/internal/models"
	"github.com/quizapp/quiz-platform/pkg/sdk"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Deps are the collaborators the routes call into.
type Deps struct {
	Bridge    *events.Bridge
	Bugs      *functions.BugReporter
	Directory functions.Directory
	Notifier  *functions.Notifier
}

type Server struct {
	log  *zap.Logger
	deps Deps
	r    *chi.Mux
	jwt  atomic.Pointer[jwt.Validator]
}

func New(cfg *config.Config, log *zap.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	s := &Server{log: log, deps: deps, r: r}
	s.Reload(cfg)
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.r }

// Reload rebuilds the token validator from cfg. A broken key set keeps the
// previous validator.
func (s *Server) Reload(cfg *config.Config) {
	v, err := jwt.NewValidator(cfg.Auth.JWTPublicKeys, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		s.log.Warn("jwt keys not loaded", zap.Error(err))
		if s.jwt.Load() == nil {
			s.jwt.Store(&jwt.Validator{})
		}
		return
	}
	if !v.Enabled() {
		s.log.Warn("no jwt keys configured, control and trigger routes are unauthenticated")
	}
	s.jwt.Store(v)
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.r.Route("/v1", func(r chi.Router) {
		r.Get("/anticheat/events", s.auth(s.handleEvents))
		r.Get("/anticheat/status", s.auth(s.handleStatus))
		r.Post("/anticheat/enable", s.auth(s.handleEnable))

		r.Post("/functions/sendBugReport", s.callable(func(ctx context.Context, c functions.Caller, data map[string]any) (any, error) {
			return s.deps.Bugs.Send(ctx, c, data)
		}))
		r.Post("/functions/checkEmailExists", s.callable(func(ctx context.Context, _ functions.Caller, data map[string]any) (any, error) {
			return functions.CheckEmailExists(ctx, s.deps.Directory, data)
		}))

		r.Post("/triggers/attempts/{quizId}/{attemptId}/created", s.auth(s.handleAttemptCreated))
		r.Post("/triggers/attempts/{quizId}/{attemptId}/updated", s.auth(s.handleAttemptUpdated))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.deps.Bridge.IsServiceEnabled(r.Context())})
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bridge.RequestEnable(r.Context()); err != nil {
		s.log.Warn("open accessibility settings failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// wsSubscriber hands bridge deliveries to the connection's writer. A slow
// client loses events rather than stalling the bridge.
type wsSubscriber struct {
	send chan sdk.Envelope
}

func (c *wsSubscriber) OnEvent(ev sdk.Event) {
	select {
	case c.send <- sdk.Wrap(ev):
	default:
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	sub := &wsSubscriber{send: make(chan sdk.Envelope, 64)}
	reg := s.deps.Bridge.Subscribe(sub)
	s.log.Info("anticheat subscriber connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go s.writeEvents(conn, sub, done)

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if !reg.Cancel() {
		s.log.Debug("anticheat subscriber had already been replaced")
	}
	close(done)
	_ = conn.Close()
	s.log.Info("anticheat subscriber disconnected", zap.String("remote", r.RemoteAddr))
}

func (s *Server) writeEvents(conn *websocket.Conn, sub *wsSubscriber, done <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case env := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				s.log.Debug("ws write error", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

type createdRequest struct {
	Attempt models.Attempt `json:"attempt"`
}

type updatedRequest struct {
	Before models.Attempt `json:"before"`
	After  models.Attempt `json:"after"`
}

func (s *Server) handleAttemptCreated(w http.ResponseWriter, r *http.Request) {
	var req createdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	out := s.deps.Notifier.AttemptCreated(r.Context(), chi.URLParam(r, "quizId"), chi.URLParam(r, "attemptId"), req.Attempt)
	writeJSON(w, http.StatusOK, map[string]functions.Outcome{"outcome": out})
}

func (s *Server) handleAttemptUpdated(w http.ResponseWriter, r *http.Request) {
	var req updatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	out := s.deps.Notifier.AttemptUpdated(r.Context(), chi.URLParam(r, "quizId"), chi.URLParam(r, "attemptId"), req.Before, req.After)
	writeJSON(w, http.StatusOK, map[string]functions.Outcome{"outcome": out})
}

// auth requires a valid bearer token when keys are configured. Websocket
// clients may pass it as the access_token query parameter.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := s.jwt.Load()
		if !v.Enabled() {
			next(w, r)
			return
		}
		tok := bearer(r)
		if tok == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := v.Verify(tok); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func bearer(r *http.Request) string {
	tok := r.Header.Get("Authorization")
	if tok == "" {
		return r.URL.Query().Get("access_token")
	}
	return strings.TrimPrefix(tok, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
