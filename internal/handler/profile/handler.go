package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
	"github.com/umayarajkumar17/portfolio/backend/pkg/utils"
)

// Handler serves the portfolio profile.
type Handler struct {
	store profile.Store
}

// New creates the profile handler.
func New(store profile.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleProfile)
	r.Get("/profile/projects", h.handleListProjects)
	r.Get("/profile/projects/{slug}", h.handleGetProject)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Profile())
}

func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.Projects())
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.store.FindProject(chi.URLParam(r, "slug"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "project not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, project)
}
