package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/ingestoor/pkg/ingest"
)

const (
	// maxUploadSize bounds the accepted archive payload.
	maxUploadSize = 256 << 20

	defaultListLimit = 50
	maxListLimit     = 200
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload receives an execution archive for one project, branch and
// cycle, and indexes it synchronously.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	branch := chi.URLParam(r, "branch")
	cycle := chi.URLParam(r, "cycle")

	data, err := readArchivePayload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"empty archive payload"})

		return
	}

	err = s.ingest.IngestArchive(r.Context(), project, branch, cycle, data)

	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "indexed"})
	case errors.Is(err, ingest.ErrNotZip):
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"payload is not a valid zip archive"})
	case errors.Is(err, ingest.ErrUnknownProject):
		writeJSON(w, http.StatusNotFound,
			errorResponse{"unknown project: "+project})
	default:
		s.log.WithError(err).Error("Archive ingestion failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"ingestion failed"})
	}
}

// readArchivePayload reads the zip bytes from either a multipart "zip" form
// field or the raw request body.
func readArchivePayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	mediaType := r.Header.Get("Content-Type")
	if len(mediaType) >= 19 && mediaType[:19] == "multipart/form-data" {
		file, _, err := r.FormFile("zip")
		if err != nil {
			return nil, errors.New("missing multipart field \"zip\"")
		}
		defer func() { _ = file.Close() }()

		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}

type completionRequestBody struct {
	JobURL string `json:"jobUrl"`
}

// handleCreateCompletionRequest records that a CI job finished and its next
// upload must be indexed even if incomplete.
func (s *server) handleCreateCompletionRequest(w http.ResponseWriter, r *http.Request) {
	jobURL, ok := completionJobURL(w, r)
	if !ok {
		return
	}

	if err := s.store.CreateCompletionRequest(r.Context(), jobURL); err != nil {
		s.log.WithError(err).Error("Cannot create completion request")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"creating completion request"})

		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"jobUrl": jobURL})
}

// handleDeleteCompletionRequest withdraws a completion request.
func (s *server) handleDeleteCompletionRequest(w http.ResponseWriter, r *http.Request) {
	jobURL, ok := completionJobURL(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteCompletionRequest(r.Context(), jobURL); err != nil {
		s.log.WithError(err).Error("Cannot delete completion request")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"deleting completion request"})

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// completionJobURL extracts the job URL from the query string or a JSON
// body, writing a 400 response when absent.
func completionJobURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	if jobURL := r.URL.Query().Get("jobUrl"); jobURL != "" {
		return jobURL, true
	}

	var body completionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.JobURL != "" {
		return body.JobURL, true
	}

	writeJSON(w, http.StatusBadRequest, errorResponse{"jobUrl is required"})

	return "", false
}

// handleListExecutions returns the latest executions of a project, newest
// first, without their child collections.
func (s *server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	if _, ok := s.cfg.Project(project); !ok {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"unknown project: "+project})

		return
	}

	limit := defaultListLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"invalid limit"})

			return
		}

		limit = parsed
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	executions, err := s.store.ListExecutions(r.Context(), project, limit)
	if err != nil {
		s.log.WithError(err).Error("Cannot list executions")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"listing executions"})

		return
	}

	writeJSON(w, http.StatusOK, executions)
}

// handleGetExecution returns one execution with its full child tree.
func (s *server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	if _, ok := s.cfg.Project(project); !ok {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"unknown project: "+project})

		return
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid execution id"})

		return
	}

	execution, err := s.store.GetExecution(r.Context(), project, uint(id))
	if err != nil {
		s.log.WithError(err).Error("Cannot get execution")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"getting execution"})

		return
	}

	if execution == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"execution not found"})

		return
	}

	writeJSON(w, http.StatusOK, execution)
}
