package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/middleware"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/pkg/apierror"
)

type PostHandler struct {
	posts         *service.PostService
	images        *service.ImageService
	maxUploadSize int64
}

func NewPostHandler(posts *service.PostService, images *service.ImageService, maxUploadSize int64) *PostHandler {
	return &PostHandler{posts: posts, images: images, maxUploadSize: maxUploadSize}
}

type createPostRequest struct {
	Message string `json:"message"`
	Privacy string `json:"privacy"`
}

// Create accepts either a JSON body or a multipart form. The multipart
// variant takes an optional image part which is stored and attached to the
// post in the same request.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		h.createMultipart(w, r, claims.Username)
		return
	}

	var payload createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	privacy, err := parsePrivacyField(payload.Privacy)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), claims.Username, payload.Message, privacy, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, post, nil)
}

func (h *PostHandler) createMultipart(w http.ResponseWriter, r *http.Request, username string) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "upload exceeds the size limit", "", http.StatusRequestEntityTooLarge))
		return
	}

	privacy, err := parsePrivacyField(r.FormValue("privacy"))
	if err != nil {
		writeError(w, err)
		return
	}

	var imageID *int64
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()

		img, err := h.images.Upload(r.Context(), username, header.Filename, file)
		if err != nil {
			writeError(w, err)
			return
		}
		imageID = &img.ID
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeError(w, apierror.New("BAD_REQUEST", "malformed image part", "image", http.StatusBadRequest))
		return
	}

	post, err := h.posts.Create(r.Context(), username, r.FormValue("message"), privacy, imageID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, post, nil)
}

// Feed serves the main timeline. The route uses optional auth, so the
// visibility filter widens from public-only to public plus community when a
// valid token is attached.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	viewer := ""
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		viewer = claims.Username
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	posts, err := h.posts.Feed(r.Context(), viewer, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, posts, &model.Meta{Limit: limit, Offset: offset, Total: len(posts)})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, isAdmin := "", false
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		viewer = claims.Username
		isAdmin = claims.IsAdmin
	}

	post, err := h.posts.Get(r.Context(), viewer, isAdmin, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := postID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	post, err := h.posts.Update(r.Context(), claims.Username, id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := postID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.posts.Delete(r.Context(), claims.Username, claims.IsAdmin, id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func (h *PostHandler) Restore(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	id, err := postID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Restore(r.Context(), claims.Username, claims.IsAdmin, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

// Trash lists the caller's soft-deleted posts.
func (h *PostHandler) Trash(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	posts, err := h.posts.Trash(r.Context(), claims.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, posts, nil)
}

func postID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.New("BAD_REQUEST", "post id must be a positive integer", "id", http.StatusBadRequest)
	}

	return id, nil
}

func parsePrivacyField(raw string) (model.Privacy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.PrivacyPublic, nil
	}

	privacy, ok := model.ParsePrivacy(raw)
	if !ok {
		return "", apierror.New("BAD_REQUEST", "privacy must be public, community, or private", "privacy", http.StatusBadRequest)
	}

	return privacy, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
