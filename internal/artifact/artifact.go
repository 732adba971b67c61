// Package artifact publishes built index artifacts to shared storage and fetches them
// back on serving hosts.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/mizan/internal/models"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("artifact not found")

// ManifestKey is the key of the manifest naming the latest published build.
const ManifestKey = "latest.json"

// Store is a flat key/value blob store.
type Store interface {
	Put(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// StoreType selects the storage backend.
type StoreType string

const (
	StoreTypeLocal StoreType = "local"
	StoreTypeS3    StoreType = "s3"
)

// Config holds storage configuration.
type Config struct {
	Type      StoreType
	LocalPath string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// NewStore creates a store for cfg.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeLocal, "":
		return NewLocalStore(cfg.LocalPath)
	case StoreTypeS3:
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown artifact store type: %s", cfg.Type)
	}
}

// Manifest describes one published build.
type Manifest struct {
	Key         string           `json:"key"`
	Info        models.IndexInfo `json:"info"`
	PublishedAt time.Time        `json:"published_at"`
}

// Publish uploads the artifact file at src under <build id>/<file name> and points the
// manifest at it.
func Publish(ctx context.Context, store Store, src string, info models.IndexInfo) (*Manifest, error) {
	if info.BuildID == "" {
		return nil, fmt.Errorf("index has no build id")
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	key := path.Join(info.BuildID, filepath.Base(src))
	if err := store.Put(ctx, key, f); err != nil {
		return nil, fmt.Errorf("failed to upload artifact: %w", err)
	}
	m := &Manifest{Key: key, Info: info, PublishedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, ManifestKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}
	return m, nil
}

// Latest reads the manifest.
func Latest(ctx context.Context, store Store) (*Manifest, error) {
	rc, err := store.Get(ctx, ManifestKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Key == "" {
		return nil, fmt.Errorf("invalid manifest: empty key")
	}
	return &m, nil
}

// Fetch downloads the latest published artifact to dst. The file is written next to
// dst and renamed into place, so readers never see a partial artifact.
func Fetch(ctx context.Context, store Store, dst string) (*Manifest, error) {
	m, err := Latest(ctx, store)
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, m.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return m, nil
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return k, nil
}
