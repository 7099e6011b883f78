package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chatbridge/internal/api"
	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
)

const maxRequestBytes = 1 << 20

// StatusReporter supplies the payload for GET /api/status.
type StatusReporter interface {
	Status() Status
}

type apiServer struct {
	bind     string
	logger   *slog.Logger
	queueSvc *api.QueueService
	status   StatusReporter

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, svc *api.QueueService, status StatusReporter, logger *slog.Logger) *apiServer {
	bind = strings.TrimSpace(bind)
	if bind == "" || svc == nil {
		return nil
	}
	srv := &apiServer{
		bind:     bind,
		logger:   logging.NewComponentLogger(logger, "api-server"),
		queueSvc: svc,
		status:   status,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware(token))

	r.Route("/api", func(r chi.Router) {
		r.Post("/inbound", s.handleInbound)
		r.Post("/outbound", s.handleOutbound)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/queue/failed", s.handleFailed)
		r.Post("/queue/resend", s.handleResend)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check api_bind and restart the daemon"),
				logging.String(logging.FieldImpact, "ingestion endpoints unavailable"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_server_listening"),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleInbound acknowledges duplicates with 200 so the chat platform stops
// redelivering. Only store failures return 5xx, which asks the caller to retry.
func (s *apiServer) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req api.InboundRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.queueSvc.EnqueueInbound(r.Context(), accountParam(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !resp.Enqueued {
		s.logger.Debug("inbound message ignored",
			logging.Account(resp.Account),
			logging.String("external_message_id", req.MessageID),
			logging.String("reason", resp.Reason),
			logging.String(logging.FieldEventType, "inbound_duplicate"),
		)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req api.OutboundRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.queueSvc.EnqueueOutbound(r.Context(), accountParam(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Stats(r.Context(), accountParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Health(r.Context(), accountParam(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.writeJSON(w, http.StatusOK, Status{Accounts: s.queueSvc.Accounts()})
		return
	}
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *apiServer) handleFailed(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Failed(r.Context(), accountParam(r), r.URL.Query().Get("queue"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleResend(w http.ResponseWriter, r *http.Request) {
	var req api.ResendRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.queueSvc.Resend(r.Context(), accountParam(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("failed outbound messages resent",
		logging.Account(resp.Account),
		logging.Queue(string(queue.KindOutbound)),
		logging.Int("resent", len(resp.IDs)),
		logging.String(logging.FieldEventType, "queue_resend"),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

func accountParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("account"))
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *api.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid request", Details: validationErr.Fields})
	case errors.Is(err, api.ErrUnknownAccount):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.ErrorWithContext(s.logger, "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "caller should retry the request"),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
