package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"shellpilot/internal/channel"
	"shellpilot/internal/execution"
	"shellpilot/internal/history"
	"shellpilot/internal/logger"
	"shellpilot/internal/servers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ServerStore is the read side of the server inventory exposed over HTTP.
type ServerStore interface {
	List(ctx context.Context) ([]*servers.Server, error)
	Get(ctx context.Context, id string) (*servers.Server, error)
}

// HistoryStore lists finished executions.
type HistoryStore interface {
	List(ctx context.Context, serverID string, limit int) ([]*history.ExecutionRecord, error)
	Get(ctx context.Context, id string) (*history.ExecutionRecord, error)
}

// SessionState reports whether a live SSH session to a server is cached.
type SessionState interface {
	IsConnected(serverID string) bool
}

// LiveExecutions lists executions that have not reached a terminal state.
type LiveExecutions interface {
	Active() []execution.Snapshot
}

type Dependencies struct {
	Channel       http.Handler
	Verifier      channel.TokenVerifier
	Servers       ServerStore
	History       HistoryStore
	Sessions      SessionState
	Executions    LiveExecutions
	AllowedOrigin string
}

func Router(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(deps.AllowedOrigin))

	r.Get("/api/health", handleHealth)

	// Websocket upgrades authenticate inside the channel handler so that
	// refusals are logged with the connection details.
	r.Handle("/ws/chat", deps.Channel)

	r.Group(func(r chi.Router) {
		r.Use(channel.RequireToken(deps.Verifier))

		r.Get("/api/servers", listServers(deps.Servers, deps.Sessions))
		r.Get("/api/servers/{serverID}", getServer(deps.Servers, deps.Sessions))
		r.Get("/api/executions", listExecutions(deps.History))
		r.Get("/api/executions/active", listActiveExecutions(deps.Executions))
		r.Get("/api/executions/{executionID}", getExecution(deps.History))
	})

	return r
}

func corsMiddleware(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorDTO{Error: err.Error()})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthDTO{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func connected(sessions SessionState, serverID string) bool {
	return sessions != nil && sessions.IsConnected(serverID)
}

func listServers(store ServerStore, sessions SessionState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())

		if err != nil {
			logger.Error("[%s] Failed to list servers: %v", r.Method, err)
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		out := make([]serverDTO, 0, len(list))

		for _, server := range list {
			out = append(out, newServerDTO(server, connected(sessions, server.ID)))
		}

		respondJSON(w, http.StatusOK, out)
	}
}

func getServer(store ServerStore, sessions SessionState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, err := store.Get(r.Context(), chi.URLParam(r, "serverID"))

		if err != nil {
			if errors.Is(err, servers.ErrServerNotFound) {
				respondError(w, http.StatusNotFound, err)
				return
			}

			logger.Error("[%s] Failed to get server: %v", r.Method, err)
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		respondJSON(w, http.StatusOK, newServerDTO(server, connected(sessions, server.ID)))
	}
}

func listExecutions(store HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0

		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)

			if err != nil || parsed < 0 {
				respondError(w, http.StatusBadRequest, errInvalidLimit)
				return
			}

			limit = parsed
		}

		records, err := store.List(r.Context(), r.URL.Query().Get("serverId"), limit)

		if err != nil {
			logger.Error("[%s] Failed to list executions: %v", r.Method, err)
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		if records == nil {
			records = []*history.ExecutionRecord{}
		}

		respondJSON(w, http.StatusOK, records)
	}
}

func getExecution(store HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.Get(r.Context(), chi.URLParam(r, "executionID"))

		if err != nil {
			if errors.Is(err, history.ErrExecutionNotFound) {
				respondError(w, http.StatusNotFound, err)
				return
			}

			logger.Error("[%s] Failed to get execution: %v", r.Method, err)
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		respondJSON(w, http.StatusOK, record)
	}
}

// listActiveExecutions answers with executions still in flight, oldest first.
func listActiveExecutions(executions LiveExecutions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := []activeExecutionDTO{}

		if executions != nil {
			snapshots := executions.Active()

			sort.Slice(snapshots, func(i, j int) bool {
				return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
			})

			for _, snapshot := range snapshots {
				out = append(out, newActiveExecutionDTO(snapshot))
			}
		}

		respondJSON(w, http.StatusOK, out)
	}
}
