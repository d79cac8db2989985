package handlers

import (
	"net/http"

	middleware "github.com/oselabs/paperbase/internal/api/middlewares"
	"github.com/oselabs/paperbase/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// DeleteAccount permanently removes the authenticated user and all
// associated data: storage objects, segments, vector entries, documents and
// the user row itself.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	if err := h.users.DeleteAccount(r.Context(), userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"detail": "account deleted"})
}
