package handlers

import (
	"net/http"

	"github.com/rolliki/backend/internal/models"
)

// RolesHandler lists the project role catalogue.
type RolesHandler struct{}

// List handles GET /api/help/roles.
func (RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	roles := models.Roles()
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	respondJSON(r.Context(), w, http.StatusOK, out)
}

// Labels handles GET /api/help/roles/labels.
func (RolesHandler) Labels(w http.ResponseWriter, r *http.Request) {
	assignable := make(map[models.Role]bool)
	for _, role := range models.AssignableRoles() {
		assignable[role] = true
	}

	roles := models.Roles()
	out := make([]roleLabelResponse, len(roles))
	for i, role := range roles {
		out[i] = roleLabelResponse{Role: string(role), Label: role.Label(), Assignable: assignable[role]}
	}
	respondJSON(r.Context(), w, http.StatusOK, out)
}
