// Package storage archives export files per entity.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for file ids the archive does not hold.
var ErrNotFound = errors.New("archived file not found")

// FileInfo contains metadata about an archived file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	EntityID    string    `json:"entity_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the entity directory
	CreatedAt   time.Time `json:"created_at"`
}

// Archive stores export files grouped by entity id.
type Archive interface {
	// Save stores a file and returns its metadata
	Save(ctx context.Context, entityID, name, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for an archived file. The caller closes it.
	Open(ctx context.Context, entityID string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// List returns the files of an entity, newest first
	List(ctx context.Context, entityID string) ([]*FileInfo, error)

	Delete(ctx context.Context, entityID string, fileID uuid.UUID) error

	// Prune deletes all but the newest keep files of an entity. keep 0 keeps everything.
	Prune(ctx context.Context, entityID string, keep int) (int, error)
}

// Content types of the export formats.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)
