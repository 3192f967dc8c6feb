package handlers

import (
	"net/http"

	"tutor-backend/internal/models"
)

// DocumentHandler reports the cached textbook for the sidebar.
type DocumentHandler struct {
	ref  *models.DocumentRef
	info *models.DocumentInfo
}

func NewDocumentHandler(ref *models.DocumentRef, info *models.DocumentInfo) *DocumentHandler {
	return &DocumentHandler{ref: ref, info: info}
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := models.DocumentStatus{Loaded: h.ref != nil && h.ref.URI != ""}
	if h.ref != nil {
		status.DisplayName = h.ref.DisplayName
		status.MIMEType = h.ref.MIMEType
		status.URISuffix = h.ref.URISuffix(10)
	}
	if h.info != nil {
		status.Pages = h.info.Pages
		status.SizeBytes = h.info.SizeBytes
	}

	writeJSON(w, http.StatusOK, status)
}
