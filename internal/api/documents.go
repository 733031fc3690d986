package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/reqchat/internal/ingest"
	"github.com/kalambet/reqchat/internal/storage"
)

const maxUploadBodySize = 10 << 20 // 10MB

type uploadInfo struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	CreatedAt   string `json:"createdAt"`
}

// readUpload accepts either a multipart form with a "file" field or a raw
// body named by the "filename" query parameter.
func readUpload(w http.ResponseWriter, r *http.Request) (filename, contentType string, data []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
	defer r.Body.Close()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", "", nil, err
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return "", "", nil, err
		}
		return hdr.Filename, hdr.Header.Get("Content-Type"), data, nil
	}

	filename = r.URL.Query().Get("filename")
	if filename == "" {
		return "", "", nil, errors.New("filename query parameter is required for raw uploads")
	}
	data, err = io.ReadAll(r.Body)
	if err != nil {
		return "", "", nil, err
	}
	return filename, r.Header.Get("Content-Type"), data, nil
}

func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, contentType, data, err := readUpload(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid upload: %v", err)
			return
		}
		filename = filepath.Base(filename)
		if len(data) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "uploaded document is empty")
			return
		}
		if _, err := ingest.DetectKind(filename, contentType, data); err != nil {
			httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
			return
		}

		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}

		up := storage.Upload{
			ID:          uuid.New().String(),
			SessionID:   s.ID(),
			Filename:    filename,
			ContentType: contentType,
			Data:        data,
		}
		if err := deps.Uploads.QueueUpload(up, storage.Job{ID: uuid.New().String()}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue document: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     up.ID,
			"status": "queued",
		})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		ups, err := deps.Uploads.ListUploads(s.ID())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]uploadInfo, len(ups))
		for i, u := range ups {
			out[i] = uploadInfo{
				ID:          u.ID,
				Filename:    u.Filename,
				ContentType: u.ContentType,
				Size:        u.Size,
				Status:      u.Status,
				Error:       u.Error,
				Attempts:    u.Attempts,
				CreatedAt:   u.CreatedAt.Format(time.RFC3339),
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}
