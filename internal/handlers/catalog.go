package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/storage"
)

type CatalogStore interface {
	CreateService(ctx context.Context, svc *model.Service) (string, error)
	ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error)
	ListServices(ctx context.Context, businessID string) ([]model.Service, error)
	CreateStaff(ctx context.Context, st *model.Staff) (string, error)
	StaffByID(ctx context.Context, businessID, staffID string) (model.Staff, error)
	ListStaff(ctx context.Context, businessID string) ([]model.Staff, error)
	DeactivateStaff(ctx context.Context, businessID, staffID string) error
}

type CatalogHandler struct {
	catalog CatalogStore
	logger  *slog.Logger
}

func NewCatalogHandler(catalog CatalogStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

type serviceItem struct {
	ServiceID        string `json:"service_id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	DurationMinutes  int    `json:"duration_minutes"`
	Capacity         int    `json:"capacity"`
	ClassDays        []int  `json:"class_days,omitempty"`
	ClassStartMinute int    `json:"class_start_minute,omitempty"`
	SessionsPerMonth int    `json:"sessions_per_month,omitempty"`
	Price            string `json:"price,omitempty"`
}

func toServiceItem(svc model.Service) serviceItem {
	return serviceItem{
		ServiceID:        svc.ID,
		Name:             svc.Name,
		Type:             string(svc.Type),
		DurationMinutes:  svc.DurationMinutes,
		Capacity:         svc.Capacity,
		ClassDays:        svc.ClassDays,
		ClassStartMinute: svc.ClassStartMinute,
		SessionsPerMonth: svc.SessionsPerMonth,
		Price:            svc.Price,
	}
}

// Services serves GET (list) and POST (create) on /api/v1/services.
func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}

	switch r.Method {
	case http.MethodGet:
		services, err := h.catalog.ListServices(r.Context(), claims.BusinessID)
		if err != nil {
			h.logger.Error("service list failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to list services")
			return
		}
		items := make([]serviceItem, 0, len(services))
		for _, svc := range services {
			items = append(items, toServiceItem(svc))
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req serviceItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		svc := model.Service{
			BusinessID:       claims.BusinessID,
			Name:             strings.TrimSpace(req.Name),
			Type:             model.ServiceType(req.Type),
			DurationMinutes:  req.DurationMinutes,
			Capacity:         req.Capacity,
			ClassDays:        req.ClassDays,
			ClassStartMinute: req.ClassStartMinute,
			SessionsPerMonth: req.SessionsPerMonth,
			Price:            strings.TrimSpace(req.Price),
		}
		if svc.Name == "" {
			writeError(w, http.StatusBadRequest, "name required")
			return
		}
		if svc.Capacity == 0 {
			svc.Capacity = 1
		}
		id, err := h.catalog.CreateService(r.Context(), &svc)
		if err != nil {
			if errors.Is(err, model.ErrInvalidService) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("service create failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to create service")
			return
		}
		svc.ID = id
		writeJSON(w, http.StatusCreated, toServiceItem(svc))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type staffItem struct {
	StaffID  string `json:"staff_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Staff serves GET (list), POST (create), and DELETE (deactivate) on
// /api/v1/staff. Creation seeds the default Monday-Friday schedule.
func (h *CatalogHandler) Staff(w http.ResponseWriter, r *http.Request) {
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}

	switch r.Method {
	case http.MethodGet:
		members, err := h.catalog.ListStaff(r.Context(), claims.BusinessID)
		if err != nil {
			h.logger.Error("staff list failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to list staff")
			return
		}
		items := make([]staffItem, 0, len(members))
		for _, st := range members {
			items = append(items, staffItem{StaffID: st.ID, Name: st.Name, IsActive: st.IsActive})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req staffItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name required")
			return
		}
		id, err := h.catalog.CreateStaff(r.Context(), &model.Staff{BusinessID: claims.BusinessID, Name: name})
		if err != nil {
			h.logger.Error("staff create failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to create staff")
			return
		}
		writeJSON(w, http.StatusCreated, staffItem{StaffID: id, Name: name, IsActive: true})

	case http.MethodDelete:
		staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
		if staffID == "" {
			writeError(w, http.StatusBadRequest, "staff_id required")
			return
		}
		if err := h.catalog.DeactivateStaff(r.Context(), claims.BusinessID, staffID); err != nil {
			if storage.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "staff not found")
				return
			}
			h.logger.Error("staff deactivate failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to deactivate staff")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"staff_id": staffID, "is_active": false})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
