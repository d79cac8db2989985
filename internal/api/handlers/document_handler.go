package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oselabs/paperbase/internal/config"
	middleware "github.com/oselabs/paperbase/internal/api/middlewares"
	"github.com/oselabs/paperbase/internal/services"
)

type DocumentHandler struct {
	docs *services.DocumentService
	cfg  *config.Config
}

func NewDocumentHandler(docs *services.DocumentService, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{docs: docs, cfg: cfg}
}

type fileEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type initiateUploadRequest struct {
	Files []fileEntry `json:"files"`
}

type initiateUploadResponse struct {
	Uploads []services.UploadTarget `json:"uploads"`
}

// InitiateUpload reserves a document row per file and returns presigned
// upload targets so the client PUTs bytes straight to storage.
func (h *DocumentHandler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req initiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Files) == 0 {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}

	resp := initiateUploadResponse{Uploads: make([]services.UploadTarget, 0, len(req.Files))}
	for _, f := range req.Files {
		target, err := h.docs.InitiateUpload(r.Context(), userID, f.Name, f.MimeType, f.Size, h.cfg.UploadURLExpiry)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Uploads = append(resp.Uploads, *target)
	}

	writeJSON(w, resp)
}

type confirmUploadRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

type confirmUploadResponse struct {
	Confirmed []string `json:"confirmed"`
}

// ConfirmUpload is called after the client finished uploading; it flips each
// document to uploaded and queues it for ingestion.
func (h *DocumentHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req confirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.DocumentIDs) == 0 {
		http.Error(w, "no document IDs provided", http.StatusBadRequest)
		return
	}

	confirmed, err := h.docs.ConfirmUpload(r.Context(), userID, req.DocumentIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, confirmUploadResponse{Confirmed: confirmed})
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	documents, err := h.docs.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, documents)
}

// GetSignedURL returns a short-lived download URL for one document.
func (h *DocumentHandler) GetSignedURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	docID := chi.URLParam(r, "document_id")
	url, err := h.docs.SignedDownloadURL(r.Context(), userID, docID, h.cfg.DownloadURLExpiry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if url == "" {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"signed_url": url})
}

type bulkDownloadRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// BulkDownload streams the requested documents back as one ZIP archive.
func (h *DocumentHandler) BulkDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req bulkDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.DocumentIDs) == 0 {
		http.Error(w, "no document IDs provided", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=documents.zip")

	if _, err := h.docs.BulkDownload(r.Context(), userID, req.DocumentIDs, w); err != nil {
		// Headers may already be out; nothing better to do than log-and-end.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// Reprocess re-enqueues a failed document for another pipeline run.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	docID := chi.URLParam(r, "document_id")
	if err := h.docs.Reprocess(r.Context(), userID, docID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]bool{"queued": true})
}

// DeleteDocument permanently removes a document, its storage object, and its
// segment/vector entries.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	docID := chi.URLParam(r, "document_id")
	if err := h.docs.Delete(r.Context(), userID, docID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]bool{"deleted": true})
}
