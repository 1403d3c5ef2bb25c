package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/friendbook/backend/internal/logging"
	"github.com/friendbook/backend/internal/models"
	"github.com/friendbook/backend/internal/storage"
)

const (
	defaultMaxUploadBytes = 4 << 20
	uploadFormField       = "image"
	// multipartOverhead leaves room for boundaries and part headers on top
	// of the file itself.
	multipartOverhead = 64 << 10
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/jpg":  {},
	"image/gif":  {},
	"image/tiff": {},
	"image/webp": {},
}

// MediaHandler accepts banner and profile picture uploads.
type MediaHandler struct {
	Users          UserStore
	Storage        MediaStorage
	MaxUploadBytes int64
}

// UploadBanner handles PUT /api/users/{id}/banner.
func (h MediaHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.MediaBanner)
}

// UploadPicture handles PUT /api/users/{id}/picture.
func (h MediaHandler) UploadPicture(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, models.MediaProfilePicture)
}

func (h MediaHandler) upload(w http.ResponseWriter, r *http.Request, kind models.MediaKind) {
	ctx := r.Context()
	logger := logging.FromContext(ctx).With("kind", kind)
	id := r.PathValue("id")
	label := mediaLabel(kind)

	if h.Users == nil || h.Storage == nil {
		logger.Error("media dependencies unavailable", "hasUsers", h.Users != nil, "hasStorage", h.Storage != nil)
		respondErrorMessage(ctx, w, http.StatusServiceUnavailable, "media uploads are not configured")
		return
	}

	limit := h.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondErrorMessage(ctx, w, http.StatusBadRequest, sizeLimitMessage(limit))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			respondErrorMessage(ctx, w, http.StatusBadRequest, fmt.Sprintf("No %s upload found", label))
		default:
			logger.Warn("parse upload", "error", err)
			respondErrorMessage(ctx, w, http.StatusBadRequest, "File upload error.")
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if header.Size > limit {
		respondErrorMessage(ctx, w, http.StatusBadRequest, sizeLimitMessage(limit))
		return
	}

	contentType := imageContentType(header.Header.Get("Content-Type"))
	if _, ok := allowedImageTypes[contentType]; !ok {
		logger.Warn("rejected upload type", "contentType", contentType)
		respondErrorMessage(ctx, w, http.StatusBadRequest, "Invalid file type.")
		return
	}

	if _, err := h.Users.FindByID(ctx, id); err != nil {
		respondError(ctx, w, err, fmt.Sprintf("There was an error updating the user's %s", label))
		return
	}

	location, err := h.Storage.Save(ctx, storage.MediaKey(id, kind, contentType), contentType, file)
	if err != nil {
		respondError(ctx, w, err, fmt.Sprintf("There was an error updating the user's %s", label))
		return
	}

	if err := h.Users.SetMedia(ctx, id, kind, models.Image{URL: location, ContentType: contentType}); err != nil {
		respondError(ctx, w, err, fmt.Sprintf("There was an error updating the user's %s", label))
		return
	}

	logger.Info("media updated", "userId", id, "location", location, "size", header.Size)
	respondMessage(ctx, w, fmt.Sprintf("Successfully updated user's %s", label))
}

func (h MediaHandler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func imageContentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mediaType
}

func sizeLimitMessage(limit int64) string {
	if limit%(1<<20) == 0 {
		return fmt.Sprintf("File size exceeds the limit of %dMB.", limit>>20)
	}
	return fmt.Sprintf("File size exceeds the limit of %d bytes.", limit)
}

func mediaLabel(kind models.MediaKind) string {
	if kind == models.MediaProfilePicture {
		return "profile picture"
	}
	return string(kind)
}
