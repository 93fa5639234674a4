// Package storage keeps uploaded files and the ledger of what was stored.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix is the URL path uploads are served under.
const PublicPrefix = "/images/users/"

// ErrInvalidName is returned for names that would leave the upload
// directory.
var ErrInvalidName = errors.New("storage: invalid file name")

// Blobs stores uploaded files by name.
type Blobs interface {
	// Put stores body and returns the URL clients fetch it from.
	Put(ctx context.Context, name, contentType string, body io.Reader) (string, error)
	// Delete removes name. Deleting a missing file is not an error.
	Delete(ctx context.Context, name string) error
}

// CheckName accepts plain file names only.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// DiskStore writes files into a directory served as PublicPrefix.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) Dir() string { return d.dir }

// Put writes to a temporary file first so readers never see a partial
// upload.
func (d *DiskStore) Put(_ context.Context, name, _ string, body io.Reader) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, name)); err != nil {
		return "", fmt.Errorf("storage: store %s: %w", name, err)
	}
	return PublicPrefix + url.PathEscape(name), nil
}

func (d *DiskStore) Delete(_ context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}
