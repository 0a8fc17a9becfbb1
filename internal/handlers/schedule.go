package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookwell/bookwell/internal/schedule"
	"github.com/bookwell/bookwell/internal/storage"
)

type WeeklySchedule interface {
	WeeklyWindows(ctx context.Context, staffID string) ([]schedule.Window, error)
	ReplaceWeeklyWindows(ctx context.Context, staffID string, windows []schedule.Window) error
}

type ScheduleHandler struct {
	windows WeeklySchedule
	catalog CatalogStore
	logger  *slog.Logger
}

func NewScheduleHandler(windows WeeklySchedule, catalog CatalogStore, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{windows: windows, catalog: catalog, logger: logger}
}

type windowItem struct {
	Weekday     int  `json:"weekday"`
	IsAvailable bool `json:"is_available"`
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
}

// Availability serves GET and PUT /api/v1/staff/availability for the
// authenticated business. PUT replaces the whole week.
func (h *ScheduleHandler) Availability(w http.ResponseWriter, r *http.Request) {
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	if staffID == "" {
		writeError(w, http.StatusBadRequest, "staff_id required")
		return
	}

	// The schedule belongs to the business holding the token.
	if _, err := h.catalog.StaffByID(r.Context(), claims.BusinessID, staffID); err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load staff")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, staffID)
	case http.MethodPut:
		h.put(w, r, staffID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request, staffID string) {
	week, err := h.windows.WeeklyWindows(r.Context(), staffID)
	if err != nil {
		if errors.Is(err, schedule.ErrStaffNotFound) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		h.logger.Error("weekly windows load failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load availability")
		return
	}

	items := make([]windowItem, 0, len(week))
	for _, win := range week {
		items = append(items, windowItem{
			Weekday:     win.Weekday,
			IsAvailable: win.Available,
			StartMinute: win.StartMinute,
			EndMinute:   win.EndMinute,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff_id": staffID, "windows": items})
}

type putAvailabilityRequest struct {
	Windows []windowItem `json:"windows"`
}

func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request, staffID string) {
	var req putAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	windows := make([]schedule.Window, 0, len(req.Windows))
	for _, item := range req.Windows {
		windows = append(windows, schedule.Window{
			StaffID:     staffID,
			Weekday:     item.Weekday,
			Available:   item.IsAvailable,
			StartMinute: item.StartMinute,
			EndMinute:   item.EndMinute,
		})
	}

	if err := h.windows.ReplaceWeeklyWindows(r.Context(), staffID, windows); err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidWindow):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, schedule.ErrStaffNotFound):
			writeError(w, http.StatusNotFound, "staff not found")
		default:
			h.logger.Error("availability replace failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to update availability")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff_id": staffID, "updated": len(windows)})
}
