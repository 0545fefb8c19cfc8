package assets

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"biolink/internal/auth"
	"biolink/internal/util"
	"biolink/models"
)

// multipart overhead allowed on top of the largest asset
const formSlack = 1 << 20

type AssetHandlers struct {
	Service *AssetService
}

func NewAssetHandlers(service *AssetService) *AssetHandlers {
	return &AssetHandlers{Service: service}
}

// Upload accepts a multipart form with "type" and "file" and answers with
// {"success": true, "data": {"url": ...}}.
func (h *AssetHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, models.MaxAudioBytes+formSlack)
	if err := r.ParseMultipartForm(formSlack); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			util.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File is too large (max %d MB)", models.MaxAudioBytes>>20))
			return
		}
		util.WriteError(w, http.StatusBadRequest, "Invalid upload form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	assetType := models.AssetType(r.FormValue("type"))
	rule, err := Rule(assetType)
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "Unknown asset type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, rule.MaxBytes+1))
	if err != nil {
		util.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	asset, err := h.Service.Save(r.Context(), userID, assetType, header.Filename, header.Header.Get("Content-Type"), data)
	switch {
	case errors.Is(err, ErrTooLarge):
		util.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File is too large (max %d MB)", rule.MaxBytes>>20))
	case errors.Is(err, ErrUnsupportedType):
		util.WriteError(w, http.StatusBadRequest, "Unsupported file type")
	case err != nil:
		log.Printf("Failed to store %s for user %s: %v", assetType, userID, err)
		util.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
	default:
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"url": asset.URL, "id": asset.ID},
		})
	}
}

// List returns the caller's uploads, newest first.
func (h *AssetHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	list, err := h.Service.ListByUser(r.Context(), userID)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, "Failed to load assets")
		return
	}
	if list == nil {
		list = []*models.Asset{}
	}
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": list})
}
