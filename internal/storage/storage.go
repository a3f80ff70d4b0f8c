package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// Kind groups uploaded objects by purpose.
type Kind string

const (
	KindScreenshot Kind = "screenshots"
	KindAttachment Kind = "attachments"
)

// Object is an upload waiting to be stored.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Stored describes a persisted upload.
type Stored struct {
	Key  string
	Name string
	URL  string
}

// ObjectStore persists uploads and exposes them under a public URL.
type ObjectStore interface {
	Put(ctx context.Context, kind Kind, obj Object) (Stored, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, cfg, logger)
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.LocalURLPrefix, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName strips directories and anything outside a conservative
// character set from a client supplied file name.
func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	if len(base) > 100 {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:100-len(ext)] + ext
	}
	return base
}

// objectKey builds a unique key under the kind prefix.
func objectKey(kind Kind, name string) string {
	return fmt.Sprintf("%s/%s-%s", kind, uuid.NewString(), sanitizeName(name))
}
