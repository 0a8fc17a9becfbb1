package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/schedule"
)

type fakeWindows struct {
	week     []schedule.Window
	replaced []schedule.Window
	err      error
}

func (f *fakeWindows) WeeklyWindows(ctx context.Context, staffID string) ([]schedule.Window, error) {
	return f.week, f.err
}

func (f *fakeWindows) ReplaceWeeklyWindows(ctx context.Context, staffID string, windows []schedule.Window) error {
	if err := schedule.ValidateWeek(windows); err != nil {
		return err
	}
	f.replaced = windows
	return f.err
}

type fakeCatalog struct {
	staff    map[string]model.Staff
	services []model.Service
}

func (f *fakeCatalog) CreateService(ctx context.Context, svc *model.Service) (string, error) {
	if err := svc.Validate(); err != nil {
		return "", err
	}
	return "svc-new", nil
}

func (f *fakeCatalog) ServiceByID(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	return model.Service{}, pgx.ErrNoRows
}

func (f *fakeCatalog) ListServices(ctx context.Context, businessID string) ([]model.Service, error) {
	return f.services, nil
}

func (f *fakeCatalog) CreateStaff(ctx context.Context, st *model.Staff) (string, error) {
	return "staff-new", nil
}

func (f *fakeCatalog) StaffByID(ctx context.Context, businessID, staffID string) (model.Staff, error) {
	st, ok := f.staff[staffID]
	if !ok || st.BusinessID != businessID {
		return model.Staff{}, pgx.ErrNoRows
	}
	return st, nil
}

func (f *fakeCatalog) ListStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	var out []model.Staff
	for _, st := range f.staff {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeCatalog) DeactivateStaff(ctx context.Context, businessID, staffID string) error {
	if _, ok := f.staff[staffID]; !ok {
		return pgx.ErrNoRows
	}
	return nil
}

func scheduleHarness() (*ScheduleHandler, *fakeWindows) {
	windows := &fakeWindows{week: schedule.DefaultWeek("staff-1")}
	catalog := &fakeCatalog{staff: map[string]model.Staff{
		"staff-1": {ID: "staff-1", BusinessID: "biz-1", Name: "Dana", IsActive: true},
	}}
	return NewScheduleHandler(windows, catalog, discardLogger()), windows
}

func TestAvailabilityGet(t *testing.T) {
	h, _ := scheduleHarness()
	protected := RequireBusiness(testSecret)(http.HandlerFunc(h.Availability))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/availability?staff_id=staff-1", nil)
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"start_minute":540`) {
		t.Fatalf("expected default week in body: %s", rec.Body.String())
	}
}

func TestAvailabilityPut(t *testing.T) {
	h, windows := scheduleHarness()
	protected := RequireBusiness(testSecret)(http.HandlerFunc(h.Availability))

	body := `{"windows":[
		{"weekday":1,"is_available":true,"start_minute":600,"end_minute":840},
		{"weekday":2,"is_available":false,"start_minute":0,"end_minute":0}
	]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/staff/availability?staff_id=staff-1", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(windows.replaced) != 2 {
		t.Fatalf("expected 2 replaced windows, got %d", len(windows.replaced))
	}
}

func TestAvailabilityPutInvalidWindow(t *testing.T) {
	h, _ := scheduleHarness()
	protected := RequireBusiness(testSecret)(http.HandlerFunc(h.Availability))

	body := `{"windows":[{"weekday":1,"is_available":true,"start_minute":840,"end_minute":600}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/staff/availability?staff_id=staff-1", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAvailabilityForeignStaff(t *testing.T) {
	h, _ := scheduleHarness()
	protected := RequireBusiness(testSecret)(http.HandlerFunc(h.Availability))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/staff/availability?staff_id=staff-other", nil)
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	catalog := &fakeCatalog{staff: map[string]model.Staff{}}
	h := NewCatalogHandler(catalog, discardLogger())
	protected := RequireBusiness(testSecret)(http.HandlerFunc(h.Services))

	body := `{"name":"Yoga","type":"class","duration_minutes":60,"capacity":8}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	// A class without class days is rejected by the model.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	body = `{"name":"Cut","type":"individual","duration_minutes":30}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+businessToken(t))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}
