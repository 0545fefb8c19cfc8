package eventlog

import (
	"net/http"
	"strconv"

	"biolink/internal/auth"
	"biolink/internal/util"
	"biolink/models"
)

type EventLogHandlers struct {
	Service *EventLogService
}

func NewEventLogHandlers(service *EventLogService) *EventLogHandlers {
	return &EventLogHandlers{Service: service}
}

// FindLatest lists the caller's events, newest first. ?limit= caps the result.
func (h *EventLogHandlers) FindLatest(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	eventLogs, err := h.Service.GetAllByUserID(r.Context(), userID, limit)
	if err != nil {
		util.WriteError(w, http.StatusInternalServerError, "Failed to load event logs")
		return
	}
	if eventLogs == nil {
		eventLogs = []*models.EventLog{}
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    eventLogs,
	})
}
