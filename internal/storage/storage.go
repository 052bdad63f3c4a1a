package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bodhini-dev/mediadmin/internal/config"
)

// FilesPrefix is the URL path the local backend's files are served under
const FilesPrefix = "/media-files/"

// ErrInvalidKey is returned for keys that would escape the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// Storage keeps uploaded media files
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// URL returns an absolute URL, or a path rooted at "/" for files served by mediad itself
	URL(key string) string
	Keys(ctx context.Context) ([]string, error)
}

// New builds the backend selected by cfg
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageLocal:
		return NewLocal(cfg.MediaRoot)
	case config.StorageS3:
		return NewS3(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey derives a unique key for an uploaded file, keeping a readable
// form of its original name
func NewKey(filename, ext string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if e := path.Ext(base); e != "" {
		if ext == "" {
			ext = e
		}
		base = strings.TrimSuffix(base, e)
	}
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if len(base) > 64 {
		base = base[:64]
	}

	key := "media/" + strings.ToLower(ulid.Make().String())
	if base != "" {
		key += "-" + base
	}
	return key + strings.ToLower(ext)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// KeyTime extracts the creation time NewKey embedded in key
func KeyTime(key string) (time.Time, bool) {
	name := path.Base(key)
	if len(name) < ulid.EncodedSize {
		return time.Time{}, false
	}
	id, err := ulid.ParseStrict(strings.ToUpper(name[:ulid.EncodedSize]))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()), true
}
