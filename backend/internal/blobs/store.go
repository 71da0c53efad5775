// Package blobs stores one photograph per person identity on the local
// filesystem.
package blobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apperrors "persinteret/backend/pkg/errors"
	"persinteret/backend/pkg/logger"
)

const (
	storeName = "blob"
	blobExt   = ".img"
)

// LocalStorage keeps images as <id>.img files under a base directory
type LocalStorage struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	log := logger.For("blobs")
	log.Info("Blob store initialized", zap.String("path", absBasePath))
	return &LocalStorage{basePath: absBasePath, logger: log}, nil
}

// Put writes data as the image for id, replacing any existing one. The write
// goes to a temporary file that is renamed into place, so readers never see
// a half-written image.
func (ls *LocalStorage) Put(ctx context.Context, id int64, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepPutImage, err)
	}

	tmp, err := os.CreateTemp(ls.basePath, ".upload-*")
	if err != nil {
		return apperrors.Classify(storeName, apperrors.StepPutImage,
			fmt.Errorf("failed to create temp file for image %d: %w", id, err))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Classify(storeName, apperrors.StepPutImage,
			fmt.Errorf("failed to write image %d: %w", id, err))
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepPutImage,
			fmt.Errorf("failed to close image %d: %w", id, err))
	}

	if err := os.Rename(tmpName, ls.path(id)); err != nil {
		return apperrors.Classify(storeName, apperrors.StepPutImage,
			fmt.Errorf("failed to move image %d into place: %w", id, err))
	}

	ls.logger.Debug("Image stored", zap.Int64("person_id", id), zap.Int("bytes", len(data)))
	return nil
}

// Get returns the image for id; found is false when none is stored.
func (ls *LocalStorage) Get(ctx context.Context, id int64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, apperrors.Classify(storeName, apperrors.StepGetImage, err)
	}

	data, err := os.ReadFile(ls.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, apperrors.Classify(storeName, apperrors.StepGetImage,
			fmt.Errorf("failed to read image %d: %w", id, err))
	}
	return data, true, nil
}

// Delete removes the image for id. Deleting a missing image is not an error.
func (ls *LocalStorage) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Classify(storeName, apperrors.StepDeleteImage, err)
	}

	if err := os.Remove(ls.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Classify(storeName, apperrors.StepDeleteImage,
			fmt.Errorf("failed to delete image %d: %w", id, err))
	}
	return nil
}

// Count returns how many images are stored.
func (ls *LocalStorage) Count(ctx context.Context) (int64, error) {
	ids, err := ls.list(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// DeleteAll removes every stored image.
func (ls *LocalStorage) DeleteAll(ctx context.Context) error {
	ids, err := ls.list(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ls.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (ls *LocalStorage) list(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepCountImages, err)
	}

	entries, err := os.ReadDir(ls.basePath)
	if err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepCountImages,
			fmt.Errorf("failed to list images in %s: %w", ls.basePath, err))
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), blobExt) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(entry.Name(), blobExt), 10, 64)
		if err != nil {
			ls.logger.Warn("Skipping stray file in blob store", zap.String("file", entry.Name()))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (ls *LocalStorage) path(id int64) string {
	return filepath.Join(ls.basePath, strconv.FormatInt(id, 10)+blobExt)
}
