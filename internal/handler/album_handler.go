package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/middleware"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/pkg/apierror"
)

type AlbumHandler struct {
	service *service.AlbumService
}

func NewAlbumHandler(service *service.AlbumService) *AlbumHandler {
	return &AlbumHandler{service: service}
}

func (h *AlbumHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.CreateAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	album, err := h.service.Create(r.Context(), claims.Username, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, album, nil)
}

func (h *AlbumHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, _ := viewerIdentity(r)

	albums, err := h.service.List(r.Context(), viewer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, albums, nil)
}

func (h *AlbumHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, isAdmin := viewerIdentity(r)
	album, err := h.service.Get(r.Context(), viewer, isAdmin, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, album, nil)
}

func (h *AlbumHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateAlbumRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	album, err := h.service.Update(r.Context(), claims.Username, id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, album, nil)
}

func (h *AlbumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), claims.Username, claims.IsAdmin, id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func (h *AlbumHandler) Images(w http.ResponseWriter, r *http.Request) {
	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, isAdmin := viewerIdentity(r)
	images, err := h.service.Images(r.Context(), viewer, isAdmin, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, images, nil)
}

func (h *AlbumHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.AddAlbumImageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	if strings.TrimSpace(payload.Filename) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "filename is required", "filename", http.StatusBadRequest))
		return
	}

	if err := h.service.AddImage(r.Context(), claims.Username, id, payload.Filename); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"added": true}, nil)
}

func (h *AlbumHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := albumID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filename, err := imageFilename(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RemoveImage(r.Context(), claims.Username, id, filename); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"removed": true}, nil)
}

func albumID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", "album id must be a positive integer", "id", http.StatusBadRequest)
	}

	return id, nil
}
