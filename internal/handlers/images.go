package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/bimg"
	"github.com/rs/zerolog/hlog"

	"github.com/petermazzocco/photostockage/internal/metrics"
	"github.com/petermazzocco/photostockage/internal/storage"
	"github.com/petermazzocco/photostockage/internal/upload"
	"github.com/petermazzocco/photostockage/models"
)

// Upload rejection messages.
const (
	MsgNoFile            = "No file uploaded"
	MsgNoIdentifier      = "No file identifier provided"
	MsgInvalidIdentifier = "Invalid file identifier"
	MsgUploadFailed      = "Failed to upload file"
)

// multipartSlack covers the form fields and part headers around the file.
const multipartSlack = 1 << 20

// Ledger keeps track of stored uploads. It is optional.
type Ledger interface {
	Record(ctx context.Context, rec *models.UploadRecord) error
	Forget(ctx context.Context, fileName string) error
}

func rejectUpload(w http.ResponseWriter, r *http.Request, msg string) {
	hlog.FromRequest(r).Info().Str("reason", msg).Msg("upload rejected")
	metrics.UploadsTotal.WithLabelValues("rejected").Inc()
	writeJSON(w, http.StatusBadRequest, uploadResponse{Success: false, Error: msg})
}

func failUpload(w http.ResponseWriter) {
	metrics.UploadsTotal.WithLabelValues("failed").Inc()
	writeJSON(w, http.StatusInternalServerError, uploadResponse{Success: false, Error: MsgUploadFailed})
}

// UploadImageHandler stores the multipart "file" under the client chosen
// "identifier" and answers with the public URL.
func UploadImageHandler(w http.ResponseWriter, r *http.Request, blobs storage.Blobs, ledger Ledger) {
	log := hlog.FromRequest(r)

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			rejectUpload(w, r, upload.MsgTooLarge)
			return
		}
		rejectUpload(w, r, MsgNoFile)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		rejectUpload(w, r, MsgNoFile)
		return
	}
	defer file.Close()

	identifier := strings.TrimSpace(r.FormValue("identifier"))
	if identifier == "" {
		rejectUpload(w, r, MsgNoIdentifier)
		return
	}
	id, err := uuid.Parse(identifier)
	if err != nil {
		rejectUpload(w, r, MsgInvalidIdentifier)
		return
	}
	if header.Size > upload.MaxSize {
		rejectUpload(w, r, upload.MsgTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("failed to read upload")
		failUpload(w)
		return
	}
	format, ok := storedFormats[bimg.DetermineImageType(data)]
	if !ok {
		rejectUpload(w, r, upload.MsgNotImage)
		return
	}

	name := id.String() + format.ext
	contentType := format.contentType

	fileURL, err := blobs.Put(r.Context(), name, contentType, bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to store upload")
		failUpload(w)
		return
	}

	if ledger != nil {
		rec := &models.UploadRecord{
			Identifier: id,
			FileName:   name,
			Path:       fileURL,
			MimeType:   contentType,
			Size:       int64(len(data)),
		}
		if err := ledger.Record(r.Context(), rec); err != nil {
			log.Error().Err(err).Str("file", name).Msg("failed to record upload")
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
			defer cancel()
			if err := blobs.Delete(ctx, name); err != nil {
				log.Warn().Err(err).Str("file", name).Msg("orphaned upload left in storage")
			} else {
				metrics.UploadsReclaimedTotal.Inc()
			}
			failUpload(w)
			return
		}
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	metrics.UploadBytes.Observe(float64(len(data)))
	log.Info().Str("file", name).Int("bytes", len(data)).Msg("upload stored")
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, FileURL: fileURL})
}

type storedFormat struct {
	ext         string
	contentType string
}

// storedFormats lists the raster types accepted for upload. The stored
// name and content type come from the decoded bytes, never from the client.
var storedFormats = map[bimg.ImageType]storedFormat{
	bimg.JPEG: {".jpg", "image/jpeg"},
	bimg.PNG:  {".png", "image/png"},
	bimg.WEBP: {".webp", "image/webp"},
	bimg.GIF:  {".gif", "image/gif"},
	bimg.TIFF: {".tiff", "image/tiff"},
	bimg.HEIF: {".heic", "image/heif"},
	bimg.AVIF: {".avif", "image/avif"},
}

// DeleteUploadHandler removes a stored upload. Deleting twice succeeds.
func DeleteUploadHandler(w http.ResponseWriter, r *http.Request, blobs storage.Blobs, ledger Ledger) {
	log := hlog.FromRequest(r)
	name := chi.URLParam(r, "name")
	if err := storage.CheckName(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	}
	if err := blobs.Delete(r.Context(), name); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to delete upload")
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}
	if ledger != nil {
		if err := ledger.Forget(r.Context(), name); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to forget upload")
		}
	}
	log.Info().Str("file", name).Msg("upload deleted")
	w.WriteHeader(http.StatusNoContent)
}
