package security

import (
	"errors"
	"log"
	"net/http"

	"biolink/internal/auth"
	"biolink/internal/util"
)

const maxTwoFactorBody = 4 << 10

type TwoFactorHandlers struct {
	Service *TwoFactorService
}

func NewTwoFactorHandlers(service *TwoFactorService) *TwoFactorHandlers {
	return &TwoFactorHandlers{Service: service}
}

func (h *TwoFactorHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	setup, err := h.Service.Generate(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to generate 2FA secret for %s: %v", userID, err)
		util.WriteError(w, http.StatusInternalServerError, "Failed to generate two-factor secret")
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"secret":          setup.Secret,
		"qr_code_url":     setup.QRCodeURL,
		"backup_codes":    setup.BackupCodes,
		"message":         setup.Message,
		"already_enabled": setup.AlreadyEnabled,
	})
}

type verifyRequest struct {
	Code   string `json:"code"`
	Secret string `json:"secret"`
}

func (h *TwoFactorHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req verifyRequest
	if err := util.DecodeJSON(w, r, maxTwoFactorBody, &req); err != nil {
		util.WriteError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	err := h.Service.Verify(r.Context(), userID, req.Code, req.Secret)
	switch {
	case errors.Is(err, ErrInvalidCode):
		util.WriteError(w, http.StatusBadRequest, "Invalid verification code")
	case errors.Is(err, ErrNoPendingSecret), errors.Is(err, ErrSecretMismatch):
		util.WriteError(w, http.StatusBadRequest, "This setup has expired. Please start again")
	case err != nil:
		log.Printf("Failed to verify 2FA for %s: %v", userID, err)
		util.WriteError(w, http.StatusInternalServerError, "Failed to verify code")
	default:
		// backup codes were handed out by generate and are only stored hashed
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"message":      "Two-factor authentication enabled",
			"backup_codes": []string{},
		})
	}
}

type disableRequest struct {
	Password string `json:"password"`
}

func (h *TwoFactorHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req disableRequest
	if err := util.DecodeJSON(w, r, maxTwoFactorBody, &req); err != nil {
		util.WriteError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	err := h.Service.Disable(r.Context(), userID, req.Password)
	switch {
	case errors.Is(err, ErrIncorrectPassword):
		util.WriteError(w, http.StatusBadRequest, "Incorrect password")
	case errors.Is(err, ErrNotEnabled):
		util.WriteError(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
	case err != nil:
		log.Printf("Failed to disable 2FA for %s: %v", userID, err)
		util.WriteError(w, http.StatusInternalServerError, "Failed to disable two-factor authentication")
	default:
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}
