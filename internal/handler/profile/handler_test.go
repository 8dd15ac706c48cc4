package profile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
)

func setupRouter() (*chi.Mux, profile.Profile) {
	p := profile.Profile{
		Name:  "Test Person",
		Title: "Engineer",
		Email: "test@example.com",
		Projects: []profile.Project{
			{Slug: "alpha", Name: "Alpha", Status: profile.StatusCompleted, Summary: "first"},
			{Slug: "beta", Name: "Beta", Status: profile.StatusInProgress, Summary: "second"},
		},
	}
	r := chi.NewRouter()
	New(profile.NewMemoryStore(p)).RegisterRoutes(r)
	return r, p
}

func TestProfileEndpoint(t *testing.T) {
	r, p := setupRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got profile.Profile
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != p.Name || len(got.Projects) != 2 {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestProjectEndpoints(t *testing.T) {
	r, _ := setupRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/projects", nil))
	var projects []profile.Project
	if err := json.NewDecoder(rec.Body).Decode(&projects); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(projects) != 2 || projects[1].Status != profile.StatusInProgress {
		t.Fatalf("unexpected projects: %+v", projects)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/projects/beta", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/projects/gamma", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
