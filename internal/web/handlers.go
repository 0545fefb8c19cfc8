package web

import (
	"net/http"
	"runtime"
	"time"

	"biolink/internal/assets"
	"biolink/internal/auth"
	"biolink/internal/config"
	"biolink/internal/eventlog"
	"biolink/internal/security"
	"biolink/internal/settings"
	"biolink/internal/util"
	"biolink/middleware"
)

type WebHandler struct {
	auth       *auth.AuthHandlers
	settings   *settings.SettingsHandlers
	twoFactor  *security.TwoFactorHandlers
	assets     *assets.AssetHandlers
	eventLogs  *eventlog.EventLogHandlers
	middleware *middleware.Middleware
	config     *config.Config
	startedAt  time.Time
}

func NewWebHandler(
	authHandlers *auth.AuthHandlers,
	settingsHandlers *settings.SettingsHandlers,
	twoFactorHandlers *security.TwoFactorHandlers,
	assetHandlers *assets.AssetHandlers,
	eventLogHandlers *eventlog.EventLogHandlers,
	mw *middleware.Middleware,
	cfg *config.Config,
) *WebHandler {
	return &WebHandler{
		auth:       authHandlers,
		settings:   settingsHandlers,
		twoFactor:  twoFactorHandlers,
		assets:     assetHandlers,
		eventLogs:  eventLogHandlers,
		middleware: mw,
		config:     cfg,
		startedAt:  time.Now(),
	}
}

func (h *WebHandler) Health(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"status":     "ok",
			"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
			"go_version": runtime.Version(),
			"storage":    h.config.AssetStorage,
		},
	})
}

func (h *WebHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusNotFound, "Not found")
}

func (h *WebHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
