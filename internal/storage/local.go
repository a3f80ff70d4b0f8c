package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// LocalStore writes uploads under a directory served statically by the API.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, urlPrefix string, logger *zap.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	prefix := "/" + strings.Trim(urlPrefix, "/")
	logger.Info("object storage ready",
		zap.String("driver", string(config.StorageDriverLocal)),
		zap.String("dir", dir),
		zap.String("url_prefix", prefix))

	return &LocalStore{dir: dir, urlPrefix: prefix}, nil
}

// Dir returns the root directory uploads are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// URLPrefix returns the public path uploads are served under.
func (s *LocalStore) URLPrefix() string {
	return s.urlPrefix
}

// Put writes obj to disk and returns its public path.
func (s *LocalStore) Put(ctx context.Context, kind Kind, obj Object) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	key := objectKey(kind, obj.Name)
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Stored{}, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, err
	}
	if _, err := io.Copy(f, obj.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Stored{}, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return Stored{}, err
	}

	return Stored{
		Key:  key,
		Name: obj.Name,
		URL:  s.urlPrefix + "/" + key,
	}, nil
}

// Delete removes the file stored under key. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	clean := filepath.Clean("/" + key)
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
