// Package httpapi exposes the executor over two transports: an HTTP
// server for normal operation and a JSONL stdio loop for callers that
// spawn the process and talk over pipes. Both speak the same request
// shapes and the same response envelope.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/colonyops/warden/internal/executor"
)

// Server routes action and approval requests to one executor.
type Server struct {
	exec *executor.Executor
	log  zerolog.Logger
}

func NewServer(exec *executor.Executor, log zerolog.Logger) *Server {
	return &Server{exec: exec, log: log.With().Str("component", "httpapi").Logger()}
}

// envelope is the uniform response shape. Blocked is true when the
// approval gate stopped the action; the HTTP status stays 200 because
// a blocked action is a normal outcome.
type envelope struct {
	Result  string `json:"result"`
	Blocked bool   `json:"blocked"`
}

type errorBody struct {
	Error string `json:"error"`
}

type dmRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type postRequest struct {
	Caption string `json:"caption"`
}

type approvalRequest struct {
	Action  string `json:"action"`
	Subject string `json:"subject"`
	Details string `json:"details"`
}

// Router assembles the HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/actions/dm", s.handleDM)
		r.Post("/actions/post", s.handlePost)
		r.Post("/approvals", s.handleRequestApproval)
		r.Get("/approvals/check", s.handleCheckApproval)
	})
	return r
}

func (s *Server) handleDM(w http.ResponseWriter, r *http.Request) {
	var req dmRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.exec.SendDirectMessage(r.Context(), req.Recipient, req.Message)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Result: res.Message, Blocked: res.Blocked})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.exec.PublishPost(r.Context(), req.Caption)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Result: res.Message, Blocked: res.Blocked})
}

func (s *Server) handleRequestApproval(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Action == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "action is required"})
		return
	}

	name, err := s.exec.RequestApproval(req.Action, req.Subject, req.Details)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, envelope{Result: name})
}

func (s *Server) handleCheckApproval(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "action is required"})
		return
	}

	ok, name, err := s.exec.CheckApproval(action, r.URL.Query().Get("subject"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Result: name, Blocked: !ok})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Msg("request failed")
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("response encode failed")
	}
}
