package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/middleware"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/pkg/apierror"
)

// UserHandler covers the admin-only user management surface.
type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users, nil)
}

func (h *UserHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	username, err := targetUsername(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.SetAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	// Admins cannot strip their own flag, there must always be a way back in.
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.Username == username && !payload.IsAdmin {
		writeError(w, apierror.New("BAD_REQUEST", "cannot revoke your own admin flag", "is_admin", http.StatusBadRequest))
		return
	}

	if err := h.service.SetAdmin(r.Context(), username, payload.IsAdmin); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"username": username, "is_admin": payload.IsAdmin}, nil)
}

func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	username, err := targetUsername(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.Username == username && !payload.IsActive {
		writeError(w, apierror.New("BAD_REQUEST", "cannot deactivate your own account", "is_active", http.StatusBadRequest))
		return
	}

	if err := h.service.SetActive(r.Context(), username, payload.IsActive); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"username": username, "is_active": payload.IsActive}, nil)
}

func targetUsername(r *http.Request) (string, error) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		return "", apierror.New("BAD_REQUEST", "username is required", "username", http.StatusBadRequest)
	}

	return username, nil
}
