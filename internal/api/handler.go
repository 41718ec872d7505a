// Package api exposes the document and search HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docsearch-io/docsearch/internal/document"
	"github.com/docsearch-io/docsearch/internal/search"
	apperrors "github.com/docsearch-io/docsearch/pkg/errors"
	"github.com/docsearch-io/docsearch/pkg/logger"
)

// Handler serves the REST endpoints for documents and search.
type Handler struct {
	documents *document.Service
	search    *search.Service
	logger    *slog.Logger
}

func New(documents *document.Service, searchSvc *search.Service) *Handler {
	return &Handler{
		documents: documents,
		search:    searchSvc,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Register attaches all routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/documents", h.CreateDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("GET /api/v1/search", h.Search)
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req document.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	doc, err := h.documents.Create(ctx, req)
	if err != nil {
		log.Error("document create failed", "error", err)
		h.writeAppError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+doc.ID)
	h.writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	doc, err := h.documents.Get(ctx, r.PathValue("id"))
	if err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Error("document fetch failed", "document_id", r.PathValue("id"), "error", err)
		}
		h.writeAppError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := h.documents.Delete(ctx, r.PathValue("id")); err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			log.Error("document delete failed", "document_id", r.PathValue("id"), "error", err)
		}
		h.writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	sort := r.URL.Query().Get("sort")

	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "size must be a positive integer")
		return
	}

	resp, err := h.search.Search(ctx, query, sort, page, size)
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"total", resp.Total,
		"returned", len(resp.Results),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return 0, errors.New("not a positive integer")
	}
	return parsed, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a service error onto its HTTP status. The client sees
// the AppError message when one exists and a generic phrase otherwise;
// internals never leak.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.writeError(w, status, appErr.Message)
		return
	}
	h.writeError(w, status, http.StatusText(status))
}
