package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/lestrrat-go/strftime"

	"i4.energy/across/fwril/host"
	"i4.energy/across/fwril/ril"
	"i4.energy/across/fwril/session"
)

const timestampLayout = "%Y-%m-%dT%H:%M:%S"

func formatTimestamp(t time.Time) string {
	formatted, _ := strftime.Format(timestampLayout, t)
	return formatted
}

// Server exposes the host bridge over HTTP: requests are submitted one at a
// time and answered with their completion.
type Server struct {
	Logger  *slog.Logger
	Bridge  *host.Bridge
	Session *session.Session
	// RequestTimeout bounds the wait for a completion; zero waits as long
	// as the client does
	RequestTimeout time.Duration

	once   sync.Once
	router *mux.Router
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(func() {
		s.router = mux.NewRouter()
		s.router.HandleFunc("/requests/{name}", s.handleRequest).Methods(http.MethodPost)
		s.router.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
		s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
		s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	})
	s.router.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug("Failed to write response", "error", err)
	}
}

// handleRequest submits the named request with a JSON string array as its
// payload. An empty body is an empty payload.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	req := host.ParseRequest(name)

	var payload host.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, "payload must be a JSON array of strings: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if s.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}

	c, err := s.Bridge.Submit(ctx, req, payload)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.sendError(w, "request did not complete in time", http.StatusGatewayTimeout)
		return
	case errors.Is(err, host.ErrNoHandler), errors.Is(err, host.ErrClosed):
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		s.Logger.Info("Request abandoned", "request", name, "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Debug("Request completed", "request", c.Name, "status", c.Status)
	s.sendJSON(w, c, http.StatusOK)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			s.sendError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	type NotificationResponse struct {
		Event host.Event `json:"event"`
		Data  any        `json:"data,omitempty"`
		Time  string     `json:"time"`
	}
	recent := s.Bridge.Notifications(limit)
	resp := make([]NotificationResponse, 0, len(recent))
	for _, n := range recent {
		resp = append(resp, NotificationResponse{Event: n.Event, Data: n.Data, Time: formatTimestamp(n.Time)})
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		session.Snapshot
		Version string `json:"version"`
		Updated string `json:"updated"`
	}
	s.sendJSON(w, StatusResponse{
		Snapshot: s.Session.Snapshot(),
		Version:  ril.Version,
		Updated:  formatTimestamp(time.Now()),
	}, http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Session.Closed() {
		s.sendError(w, "AT channel closed", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
