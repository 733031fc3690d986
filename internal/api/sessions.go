package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/session"
)

const maxImportBodySize = 5 << 20 // 5MB

type sendMessageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Reply   session.Reply    `json:"reply"`
	Session session.Snapshot `json:"session"`
	Error   string           `json:"error,omitempty"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type regenerateRequest struct {
	PreferredArchitectureType string `json:"preferredArchitectureType"`
}

type regenerateResponse struct {
	Architecture *requirements.Architecture `json:"architecture"`
	Session      session.Snapshot           `json:"session"`
	Error        string                     `json:"error,omitempty"`
}

type sessionValidateResponse struct {
	Validation  *requirements.ValidationResult `json:"validation,omitempty"`
	ChatMessage requirements.ChatMessage       `json:"chatMessage"`
	Session     session.Snapshot               `json:"session"`
	Error       string                         `json:"error,omitempty"`
}

type importResponse struct {
	TotalRequirements int              `json:"totalRequirements"`
	Session           session.Snapshot `json:"session"`
}

// loadSession resolves the {id} URL parameter or writes the error response.
func loadSession(deps Deps, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Create()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.Snapshot())
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)
		list, err := deps.Sessions.List(limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func handleDeleteSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}

		reply, err := s.SendMessage(r.Context(), req.Message)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, messageResponse{Reply: reply, Session: s.Snapshot()})
		case isOracleError(err):
			// The apology is already part of the chat log.
			writeJSON(w, http.StatusBadGateway, messageResponse{Reply: reply, Session: s.Snapshot(), Error: err.Error()})
		default:
			writeError(w, err)
		}
	}
}

func handleDeleteItem(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := requirements.ParseCategory(chi.URLParam(r, "category"))
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown category %q", chi.URLParam(r, "category"))
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		if err := s.DeleteItem(c, chi.URLParam(r, "itemID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func handleClear(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clearRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		if err := s.Clear(req.Confirm); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

func handleArchitecture(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req regenerateRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}

		arch, err := s.Regenerate(r.Context(), req.PreferredArchitectureType)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, regenerateResponse{Architecture: arch, Session: s.Snapshot()})
		case isOracleError(err):
			writeJSON(w, http.StatusBadGateway, regenerateResponse{Session: s.Snapshot(), Error: err.Error()})
		default:
			writeError(w, err)
		}
	}
}

func handleSessionValidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}

		v, msg, err := s.Validate(r.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, sessionValidateResponse{Validation: &v, ChatMessage: msg, Session: s.Snapshot()})
		case isOracleError(err):
			writeJSON(w, http.StatusBadGateway, sessionValidateResponse{ChatMessage: msg, Session: s.Snapshot(), Error: err.Error()})
		default:
			writeError(w, err)
		}
	}
}

func handleQuote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, s.Quote())
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		exp := s.Export()
		name := "requirements-" + exp.ExportInfo.Timestamp.Format("2006-01-02")

		if r.URL.Query().Get("format") == "yaml" {
			data, err := requirements.MarshalExportYAML(exp)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.yaml"`, name))
			w.Write(data)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, name))
		writeJSON(w, http.StatusOK, exp)
	}
}

func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()
		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}

		if isYAML(r) {
			if data, err = requirements.YAMLToJSON(data); err != nil {
				writeError(w, err)
				return
			}
		}

		exp, err := s.Import(data)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, importResponse{TotalRequirements: exp.Requirements.Total(), Session: s.Snapshot()})
	}
}

func isYAML(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/yaml" || mt == "application/x-yaml" || mt == "text/yaml" || r.URL.Query().Get("format") == "yaml"
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
