package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/quizapp/quiz-platform/internal/functions"
	"go.uber.org/zap"
)

// callableFunc is a function invoked with the callable protocol: the request
// body is {"data": ...} and the response {"result": ...} or {"error": ...}.
type callableFunc func(ctx context.Context, caller functions.Caller, data map[string]any) (any, error)

type callableRequest struct {
	Data map[string]any `json:"data"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) callable(fn callableFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeCallableError(w, &functions.Error{Code: functions.InvalidArgument, Message: "Request body must be {\"data\": {...}}.", Err: err})
			return
		}
		if req.Data == nil {
			req.Data = map[string]any{}
		}

		var caller functions.Caller
		if tok := bearer(r); tok != "" {
			v := s.jwt.Load()
			if v.Enabled() {
				uid, err := v.Subject(tok)
				if err != nil {
					s.writeCallableError(w, &functions.Error{Code: functions.Unauthenticated, Message: "Invalid ID token.", Err: err})
					return
				}
				caller.UID = uid
			}
		}

		res, err := fn(r.Context(), caller, req.Data)
		if err != nil {
			s.writeCallableError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": res})
	}
}

func (s *Server) writeCallableError(w http.ResponseWriter, err error) {
	fe := functions.AsError(err)
	if fe.Code == functions.Internal {
		s.log.Error("callable failed", zap.Error(err))
	} else {
		s.log.Debug("callable rejected", zap.Error(err))
	}
	writeJSON(w, fe.Code.HTTPStatus(), map[string]callableError{
		"error": {Status: fe.Code.Status(), Message: fe.Message},
	})
}
