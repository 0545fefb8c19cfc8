package settings

import (
	"errors"
	"net/http"

	"biolink/internal/auth"
	"biolink/internal/util"
	"biolink/models"
)

const maxSettingsBody = 64 << 10

type SettingsHandlers struct {
	Service *SettingsService
}

func NewSettingsHandlers(service *SettingsService) *SettingsHandlers {
	return &SettingsHandlers{Service: service}
}

// GetSettings serves both GET /dashboard and GET /customization/settings.
func (h *SettingsHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	settings, err := h.Service.GetUserSettings(r.Context(), userID)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]interface{}{"settings": settings.Values.ToWire()},
	})
}

// UpdateSettings accepts the complete settings object in snake_case form.
func (h *SettingsHandlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var wire map[string]interface{}
	if err := util.DecodeJSON(w, r, maxSettingsBody, &wire); err != nil {
		util.WriteError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	settings, errs, err := h.Service.UpdateUserSettings(r.Context(), userID, wire)
	if errors.Is(err, ErrInvalidSettings) {
		util.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Some settings are invalid",
			"errors":  wireErrors(errs),
		})
		return
	}
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Settings saved",
		"data":    map[string]interface{}{"settings": settings.Values.ToWire()},
	})
}

func wireErrors(errs models.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for key, msg := range errs {
		if f, ok := models.LookupField(key); ok {
			out[f.Wire] = msg
			continue
		}
		out[key] = msg
	}
	return out
}
