package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sessionwatch/internal/logger"
	"sessionwatch/internal/pipeline"
	"sessionwatch/internal/sessiontable"
	"sessionwatch/pkg/models"
)

const defaultAlertLimit = 50

// AlertQuerier serves the recent-alert lookups for the status
// endpoints. A nil querier means alerts are not queryable (file-mode
// storage) and the endpoints return empty lists.
type AlertQuerier interface {
	QueryAlerts(ctx context.Context, sessionID string, limit int) ([]*models.Alert, error)
}

// Server exposes the ingestion and query API.
type Server struct {
	pipe     *pipeline.Pipeline
	table    *sessiontable.Table
	alerts   AlertQuerier
	upgrader websocket.Upgrader
}

// New creates a server.
func New(pipe *pipeline.Pipeline, table *sessiontable.Table, alerts AlertQuerier) *Server {
	return &Server{
		pipe:   pipe,
		table:  table,
		alerts: alerts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Monitoring agents connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/events", s.handleSubmitEvent)
	r.Get("/api/sessions/{sessionID}/status", s.handleSessionStatus)
	r.Get("/api/admin/sessions", s.handleListSessions)
	r.Get("/ws/session-monitor", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var raw models.RawEvent
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	if err := s.pipe.Submit(r.Context(), &raw); err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, ok := s.table.Get(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	alerts := s.recentAlerts(r.Context(), sessionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":     sessionID,
		"status":         session.Status,
		"last_heartbeat": session.LastHeartbeat,
		"risk_score":     session.RiskScore,
		"alerts":         alerts,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.table.Snapshot()
	out := make([]models.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, models.SessionSummary{
			SessionID:     session.SessionID,
			UserID:        session.UserID,
			Status:        session.Status,
			StartTime:     session.StartTime,
			LastHeartbeat: session.LastHeartbeat,
			RiskScore:     session.RiskScore,
			AlertCount:    len(s.recentAlerts(r.Context(), session.SessionID)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebSocket ingests a stream of raw events from one monitoring
// agent. Rejected events are reported back on the socket but do not
// close it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		var raw models.RawEvent
		if err := json.Unmarshal(payload, &raw); err != nil {
			s.writeSocketError(conn, "malformed JSON payload")
			continue
		}
		if err := s.pipe.Submit(r.Context(), &raw); err != nil {
			s.writeSocketError(conn, err.Error())
		}
	}
}

func (s *Server) writeSocketError(conn *websocket.Conn, msg string) {
	if err := conn.WriteJSON(map[string]string{"error": msg}); err != nil {
		logger.Debugf("WebSocket write failed: %v", err)
	}
}

func (s *Server) recentAlerts(ctx context.Context, sessionID string) []*models.Alert {
	if s.alerts == nil {
		return []*models.Alert{}
	}
	alerts, err := s.alerts.QueryAlerts(ctx, sessionID, defaultAlertLimit)
	if err != nil {
		logger.Errorf("Failed to query alerts for session %s: %v", sessionID, err)
		return []*models.Alert{}
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	return alerts
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugf("Failed to encode response: %v", err)
	}
}
