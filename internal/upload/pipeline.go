// Package upload moves a user-selected image into same-origin storage and
// then writes the backend record that references it.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/backend"
)

// MaxSize applies to photos and avatars alike.
const MaxSize = 8 << 20

const (
	MsgMissing  = "Please select a photo to upload"
	MsgTooLarge = "File size must be less than 8MB"
	MsgNotImage = "File must be an image"
)

// ErrRecordFailed marks a run where the file was stored but the record
// write failed.
var ErrRecordFailed = errors.New("upload succeeded, record failed")

// FieldError is a validation failure caught before any network call.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// RecordError is returned by Run when step two failed. Path is the stored
// file, kept so the caller can Retry.
type RecordError struct {
	Path      string
	Err       error
	Reclaimed bool
}

func (e *RecordError) Error() string { return e.Err.Error() }

func (e *RecordError) Unwrap() []error { return []error{ErrRecordFailed, e.Err} }

// File is a selected file. Body is read once.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// Validate checks presence, size and type, in that order.
func Validate(f *File) error {
	if f == nil || f.Body == nil {
		return &FieldError{Field: "file", Message: MsgMissing}
	}
	if f.Size > MaxSize {
		return &FieldError{Field: "file", Message: MsgTooLarge}
	}
	if !strings.HasPrefix(f.ContentType, "image/") {
		return &FieldError{Field: "file", Message: MsgNotImage}
	}
	return nil
}

// Storage is the same-origin upload endpoint.
type Storage interface {
	UploadFile(ctx context.Context, f backend.FilePart) (string, error)
	DeleteUpload(ctx context.Context, name string) error
}

// RecordFunc writes the backend record for a stored path.
type RecordFunc func(ctx context.Context, path string) error

type Pipeline struct {
	storage Storage
	newID   func() uuid.UUID
	log     zerolog.Logger
}

type Option func(*Pipeline)

// WithIdentifiers replaces uuid.New.
func WithIdentifiers(fn func() uuid.UUID) Option {
	return func(p *Pipeline) { p.newID = fn }
}

func New(storage Storage, log zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{storage: storage, newID: uuid.New, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload validates f and stores it under a fresh identifier.
func (p *Pipeline) Upload(ctx context.Context, f *File) (string, error) {
	if err := Validate(f); err != nil {
		return "", err
	}
	id := p.newID()
	stored, err := p.storage.UploadFile(ctx, backend.FilePart{
		Name:        f.Name,
		ContentType: f.ContentType,
		Identifier:  id.String(),
		Body:        f.Body,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("identifier", id.String()).Msg("upload failed")
		return "", err
	}
	p.log.Debug().Str("path", stored).Msg("file uploaded")
	return stored, nil
}

// Run uploads f, then calls record with the stored path. record is only
// called after a successful upload. When record fails the stored file is
// deleted on a best-effort basis and a *RecordError is returned.
func (p *Pipeline) Run(ctx context.Context, f *File, record RecordFunc) (string, error) {
	stored, err := p.Upload(ctx, f)
	if err != nil {
		return "", err
	}
	if err := record(ctx, stored); err != nil {
		rerr := &RecordError{Path: stored, Err: err}
		rerr.Reclaimed = p.reclaim(ctx, stored)
		p.log.Warn().Err(err).Str("path", stored).Bool("reclaimed", rerr.Reclaimed).Msg("record write failed")
		return stored, rerr
	}
	return stored, nil
}

// Retry re-runs only the record step for a path a previous Run stored.
// A path whose file was reclaimed has to be uploaded again.
func (p *Pipeline) Retry(ctx context.Context, rerr *RecordError, record RecordFunc) error {
	if rerr.Reclaimed {
		return fmt.Errorf("retry %s: file already removed", rerr.Path)
	}
	if err := record(ctx, rerr.Path); err != nil {
		return &RecordError{Path: rerr.Path, Err: err}
	}
	return nil
}

func (p *Pipeline) reclaim(ctx context.Context, stored string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.storage.DeleteUpload(ctx, path.Base(stored)); err != nil {
		p.log.Warn().Err(err).Str("path", stored).Msg("orphaned upload left in storage")
		return false
	}
	return true
}
