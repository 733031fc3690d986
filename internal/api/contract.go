package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/reqchat/internal/render"
	"github.com/kalambet/reqchat/internal/requirements"
)

// The stateless endpoints relay one oracle call each and always answer with
// a {success, ..., error?} envelope.

type extractRequest struct {
	Message string                `json:"message"`
	Context requirements.Document `json:"context"`
}

type extractResponse struct {
	Success           bool                   `json:"success"`
	Requirements      *requirements.Document `json:"requirements,omitempty"`
	AssistantResponse string                 `json:"assistantResponse,omitempty"`
	Error             string                 `json:"error,omitempty"`
}

type architectureRequest struct {
	Requirements              requirements.Document `json:"requirements"`
	PreferredArchitectureType string                `json:"preferredArchitectureType,omitempty"`
}

type architectureResponse struct {
	Success      bool                       `json:"success"`
	Architecture *requirements.Architecture `json:"architecture,omitempty"`
	Error        string                     `json:"error,omitempty"`
}

type validateRequest struct {
	Requirements requirements.Document `json:"requirements"`
}

type validateResponse struct {
	Success     bool                           `json:"success"`
	Validation  *requirements.ValidationResult `json:"validation,omitempty"`
	ChatMessage string                         `json:"chatMessage,omitempty"`
	Error       string                         `json:"error,omitempty"`
}

func failureStatus(err error) int {
	if isOracleError(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, extractResponse{Error: "message is required"})
			return
		}

		ext, err := deps.Oracle.Extract(r.Context(), req.Message, req.Context.Clone())
		if err != nil {
			slog.Warn("extract failed", "error", err)
			writeJSON(w, failureStatus(err), extractResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, extractResponse{
			Success:           true,
			Requirements:      &ext.Requirements,
			AssistantResponse: ext.AssistantResponse,
		})
	}
}

func handleGenerateArchitecture(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req architectureRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !requirements.ValidPreference(req.PreferredArchitectureType) {
			writeJSON(w, http.StatusBadRequest, architectureResponse{Error: "unknown preferredArchitectureType " + req.PreferredArchitectureType})
			return
		}
		if req.Requirements.IsEmpty() {
			writeJSON(w, http.StatusBadRequest, architectureResponse{Error: "requirements are empty"})
			return
		}

		arch, err := deps.Oracle.GenerateArchitecture(r.Context(), req.Requirements.Clone(), req.PreferredArchitectureType)
		if err != nil {
			slog.Warn("architecture generation failed", "error", err)
			writeJSON(w, failureStatus(err), architectureResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, architectureResponse{Success: true, Architecture: arch})
	}
}

func handleValidate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		v, err := deps.Oracle.Validate(r.Context(), req.Requirements.Clone())
		if err != nil {
			slog.Warn("validation failed", "error", err)
			writeJSON(w, failureStatus(err), validateResponse{ChatMessage: render.ValidationApology, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, validateResponse{
			Success:     true,
			Validation:  &v,
			ChatMessage: render.Validation(v),
		})
	}
}
