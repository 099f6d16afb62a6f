package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
)

const metaDir = ".meta"

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
	now      func() time.Time
}

// NewLocalArchive creates the base directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath, now: time.Now}, nil
}

// entityDir maps any hyphenated uuid form to its canonical directory name.
func (s *LocalArchive) entityDir(op, entityID string) (string, error) {
	id, err := uuid.Parse(entityID)
	if err != nil || strings.Count(entityID, "-") != 4 {
		return "", apperror.InvalidArgument(op, "invalid entity_id %q", entityID)
	}
	return filepath.Join(s.basePath, id.String()), nil
}

// Save stores a file and returns its metadata
func (s *LocalArchive) Save(ctx context.Context, entityID, name, contentType string, r io.Reader) (*FileInfo, error) {
	dir, err := s.entityDir("archive_save", entityID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create entity directory: %w", err)
	}

	fileID := uuid.New()
	storedName := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(name))
	filePath := filepath.Join(dir, storedName)

	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(filePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          fileID,
		EntityID:    entityID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Path:        storedName,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.saveMetadata(dir, info); err != nil {
		_ = os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns a reader for an archived file
func (s *LocalArchive) Open(ctx context.Context, entityID string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	dir, err := s.entityDir("archive_open", entityID)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.readMetadata(dir, fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(dir, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// List returns the files of an entity, newest first
func (s *LocalArchive) List(ctx context.Context, entityID string) ([]*FileInfo, error) {
	dir, err := s.entityDir("archive_list", entityID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := s.readMetadata(dir, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Delete removes an archived file and its metadata
func (s *LocalArchive) Delete(ctx context.Context, entityID string, fileID uuid.UUID) error {
	dir, err := s.entityDir("archive_delete", entityID)
	if err != nil {
		return err
	}
	info, err := s.readMetadata(dir, fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, info.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err := os.Remove(metaPath(dir, fileID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata: %w", err)
	}
	return nil
}

// Prune deletes all but the newest keep files and returns how many were removed.
func (s *LocalArchive) Prune(ctx context.Context, entityID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	files, err := s.List(ctx, entityID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range files[min(keep, len(files)):] {
		if err := s.Delete(ctx, entityID, info.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func metaPath(dir string, fileID uuid.UUID) string {
	return filepath.Join(dir, metaDir, fileID.String()+".json")
}

func (s *LocalArchive) readMetadata(dir string, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(metaPath(dir, fileID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalArchive) saveMetadata(dir string, info *FileInfo) error {
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath(dir, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	if name = replacer.Replace(name); name == "" {
		return "export"
	}
	return name
}
