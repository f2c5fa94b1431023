package http

import (
	"net/http"

	httpmiddleware "github.com/bidhub/procurement/internal/http/middleware"
)

// DashboardMetrics returns the organization-scoped dashboard summary.
func (h *Handler) DashboardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.dashboard.GetDashboardMetrics(r.Context(), httpmiddleware.CurrentUser(r.Context()))
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, metrics)
}
