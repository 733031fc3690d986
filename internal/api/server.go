package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/reqchat/internal/oracle"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/session"
	"github.com/kalambet/reqchat/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// UploadStore persists uploaded documents and queues their extraction.
// *storage.Store satisfies it.
type UploadStore interface {
	QueueUpload(u storage.Upload, job storage.Job) error
	ListUploads(sessionID string) ([]storage.Upload, error)
}

// Deps holds the dependencies of the HTTP API.
type Deps struct {
	Sessions *session.Manager
	Oracle   session.Oracle
	Uploads  UploadStore
	Hub      *Hub
	// Token enables bearer authentication on /api when non-empty.
	Token string
}

// NewHandler returns the HTTP API: the stateless oracle endpoints, the
// session API, the session event stream, and the browser UI.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/", handleIndex)

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/extract", handleExtract(deps))
		r.Post("/generate-architecture", handleGenerateArchitecture(deps))
		r.Post("/validate", handleValidate(deps))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handleCreateSession(deps))
			r.Get("/", handleListSessions(deps))
			r.Get("/{id}", handleGetSession(deps))
			r.Delete("/{id}", handleDeleteSession(deps))
			r.Post("/{id}/messages", handleSendMessage(deps))
			r.Delete("/{id}/requirements/{category}/{itemID}", handleDeleteItem(deps))
			r.Post("/{id}/clear", handleClear(deps))
			r.Post("/{id}/architecture", handleArchitecture(deps))
			r.Post("/{id}/validate", handleSessionValidate(deps))
			r.Get("/{id}/quote", handleQuote(deps))
			r.Get("/{id}/export", handleExport(deps))
			r.Post("/{id}/import", handleImport(deps))
			r.Post("/{id}/documents", handleUploadDocument(deps))
			r.Get("/{id}/documents", handleListDocuments(deps))
			r.Get("/{id}/events", handleEvents(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func isOracleError(err error) bool {
	return errors.Is(err, oracle.ErrUnavailable) || errors.Is(err, oracle.ErrMalformed)
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, session.ErrItemNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrSuperseded), errors.Is(err, session.ErrClosed):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, session.ErrConfirmationRequired),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrInvalidPreference),
		errors.Is(err, requirements.ErrInvalidImport):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case isOracleError(err):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		slog.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
