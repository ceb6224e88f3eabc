package branch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/go-chi/chi/v5"

	"github.com/savoria/savoria/services/console/internal/session"
)

func newTestRouter(t *testing.T, repo Repository, user *session.User) *chi.Mux {
	t.Helper()
	store := session.NewMemStore()
	if user != nil {
		if err := store.SetUser(user); err != nil {
			t.Fatalf("SetUser failed: %v", err)
		}
	}
	cache := NewListCache(repo, time.Minute, apt.NewNoopLogger())
	mgr := NewManager(repo, cache, store, Filters{}, apt.NewNoopLogger())
	hub := NewHub(mgr, repo, store, NewSwitchNotifier(), nil, apt.NewNoopLogger())
	handler := NewHandler(hub, repo, apt.NewNoopLogger())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestCreateBranchRejectsOversizedBody(t *testing.T) {
	repo := NewFakeRepo()
	created := false
	repo.CreateFunc = func(ctx context.Context, data CreateData) (*Branch, error) {
		created = true
		return &Branch{ID: "b1", Name: data.Name}, nil
	}
	router := newTestRouter(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	body := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/branches", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversized body, got %d", rec.Code)
	}
	if created {
		t.Error("Oversized request must not reach the repository")
	}
}

func TestPlanDeliveryRouteOrdersStopsFromBranch(t *testing.T) {
	repo := NewFakeRepo(Branch{
		ID:   "b1",
		Name: "Main",
		Address: Address{
			Coordinates: &Coordinates{Latitude: 0, Longitude: 0},
		},
	})
	router := newTestRouter(t, repo, &session.User{ID: "u1", Role: session.RoleStaff, AssignedBranches: []string{"b1"}})

	body := `{"stops":[
		{"id":"far","coordinates":{"lat":0,"lng":0.3}},
		{"id":"near","coordinates":{"lat":0,"lng":0.1}},
		{"id":"mid","coordinates":{"lat":0,"lng":0.2}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/branches/b1/delivery-route", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []struct {
			Stops []struct {
				ID string `json:"id"`
			} `json:"stops"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Cannot decode response: %v", err)
	}
	if len(envelope.Data) != 1 || len(envelope.Data[0].Stops) != 3 {
		t.Fatalf("Expected one route with 3 stops, got %+v", envelope.Data)
	}
	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if envelope.Data[0].Stops[i].ID != id {
			t.Errorf("Stop %d is %q, want %q", i, envelope.Data[0].Stops[i].ID, id)
		}
	}
}

func TestPlanDeliveryRouteWithoutCoordinates(t *testing.T) {
	repo := NewFakeRepo(Branch{ID: "b1", Name: "Main"})
	router := newTestRouter(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	body := `{"stops":[{"id":"a","coordinates":{"lat":1,"lng":1}}]}`
	req := httptest.NewRequest(http.MethodPost, "/branches/b1/delivery-route", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a branch without coordinates, got %d", rec.Code)
	}
}

func TestCreateBranchRequiresPrivilegedRole(t *testing.T) {
	repo := NewFakeRepo()
	router := newTestRouter(t, repo, &session.User{ID: "u1", Role: session.RoleStaff})

	req := httptest.NewRequest(http.MethodPost, "/branches", strings.NewReader(`{"name":"North"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for staff, got %d", rec.Code)
	}
}
