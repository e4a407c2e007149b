package handler

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"postboard/internal/middleware"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/pkg/apierror"
)

type ImageHandler struct {
	service       *service.ImageService
	maxUploadSize int64
}

func NewImageHandler(service *service.ImageService, maxUploadSize int64) *ImageHandler {
	return &ImageHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "upload exceeds the size limit", "", http.StatusRequestEntityTooLarge))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "multipart field 'file' is required", "file", http.StatusBadRequest))
		return
	}
	defer file.Close()

	img, err := h.service.Upload(r.Context(), claims.Username, header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.UploadImageResponse{
		Filename:         img.Filename,
		OriginalFilename: img.OriginalFilename,
		FileSize:         img.FileSize,
		ContentType:      img.ContentType,
		URL:              "/api/v1/images/" + url.PathEscape(img.Filename),
	}, nil)
}

func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	images, err := h.service.ListForUser(r.Context(), claims.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, images, nil)
}

// Serve streams the original file with Range support.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	filename, err := imageFilename(r)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer, isAdmin := viewerIdentity(r)
	img, file, info, err := h.service.Open(r.Context(), viewer, isAdmin, filename)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": img.OriginalFilename}))
	http.ServeContent(w, r, img.Filename, info.ModTime(), file)
}

func (h *ImageHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	filename, err := imageFilename(r)
	if err != nil {
		writeError(w, err)
		return
	}

	size := 256
	if raw := strings.TrimSpace(r.URL.Query().Get("size")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			size = parsed
		}
	}

	viewer, isAdmin := viewerIdentity(r)
	file, info, err := h.service.Thumbnail(r.Context(), viewer, isAdmin, filename, size)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	filename, err := imageFilename(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), claims.Username, claims.IsAdmin, filename); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func imageFilename(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "filename")
	filename, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(filename) == "" {
		return "", apierror.New("BAD_REQUEST", "filename is required", "filename", http.StatusBadRequest)
	}

	return filename, nil
}

func viewerIdentity(r *http.Request) (string, bool) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return claims.Username, claims.IsAdmin
	}

	return "", false
}
