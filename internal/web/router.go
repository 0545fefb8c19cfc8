package web

import (
	"net/http"

	"biolink/internal/assets"
	"biolink/internal/config"
	"biolink/middleware"

	"github.com/gorilla/mux"
)

func (h *WebHandler) SetupRoutes() http.Handler {
	r := mux.NewRouter()
	protect := h.middleware.AuthMiddleware

	r.HandleFunc("/health", h.Health).Methods("GET")

	// Auth
	r.HandleFunc("/auth/login", h.auth.LoginHandler).Methods("POST")
	r.HandleFunc("/auth/logout", h.auth.LogoutHandler).Methods("POST")
	r.HandleFunc("/auth/2fa/generate", protect(h.twoFactor.Generate)).Methods("POST")
	r.HandleFunc("/auth/2fa/verify", protect(h.twoFactor.Verify)).Methods("POST")
	r.HandleFunc("/auth/2fa/disable", protect(h.twoFactor.Disable)).Methods("POST")

	// Settings, served under both the dashboard and customization paths
	r.HandleFunc("/dashboard", protect(h.settings.GetSettings)).Methods("GET")
	r.HandleFunc("/dashboard/settings", protect(h.settings.UpdateSettings)).Methods("POST")
	r.HandleFunc("/customization/settings", protect(h.settings.GetSettings)).Methods("GET")
	r.HandleFunc("/customization/settings", protect(h.settings.UpdateSettings)).Methods("POST", "PUT")

	// Assets
	r.HandleFunc("/upload/asset", protect(h.assets.Upload)).Methods("POST")
	r.HandleFunc("/assets", protect(h.assets.List)).Methods("GET")
	if h.config.AssetStorage != config.S3Storage {
		files := http.StripPrefix(assets.PublicPrefix, http.FileServer(http.Dir(h.config.UploadDir)))
		r.PathPrefix(assets.PublicPrefix).Handler(files).Methods("GET")
	}

	r.HandleFunc("/event-logs", protect(h.eventLogs.FindLatest)).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.MethodNotAllowed)

	return middleware.SetupCORS()(middleware.LoggingMiddleware(r))
}
