// Package blobstore wraps asset storage: GCS in production, a GCS emulator
// in dev/CI. It exposes the stat-and-fetch subset the validation engine and
// read API actually need, plus upload/delete for a complete external
// surface. Delivery failures are always returned to the caller — unlike
// events, asset reads gate validation and must not fail silently.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/clipstream/timeline-core/internal/logger"
)

// Mode selects how the storage.Client talks to its backend.
type Mode string

const (
	ModeGCS         Mode = "gcs"
	ModeGCSEmulator Mode = "gcs_emulator"
)

// Config configures a Store. BucketName is the single bucket this domain's
// assets live in — there is one asset bucket per project, not a split
// across multiple asset kinds.
type Config struct {
	Mode         Mode
	BucketName   string
	EmulatorHost string
	PublicBaseURL string
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		BucketName:   strings.TrimSpace(os.Getenv("ASSET_GCS_BUCKET_NAME")),
		EmulatorHost: strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")),
	}
	if cfg.BucketName == "" {
		return cfg, fmt.Errorf("missing env var ASSET_GCS_BUCKET_NAME")
	}

	rawMode := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	switch Mode(strings.ToLower(rawMode)) {
	case "":
		if cfg.EmulatorHost != "" {
			cfg.Mode = ModeGCSEmulator
		} else {
			cfg.Mode = ModeGCS
		}
	case ModeGCS:
		cfg.Mode = ModeGCS
	case ModeGCSEmulator:
		cfg.Mode = ModeGCSEmulator
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", rawMode, ModeGCS, ModeGCSEmulator)
	}

	if cfg.Mode == ModeGCSEmulator {
		if cfg.EmulatorHost == "" {
			return cfg, fmt.Errorf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", ModeGCSEmulator)
		}
		if u, err := url.Parse(cfg.EmulatorHost); err != nil || u.Scheme == "" || u.Host == "" {
			return cfg, fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q", cfg.EmulatorHost)
		}
		cfg.PublicBaseURL = strings.TrimRight(cfg.EmulatorHost, "/")
	}

	return cfg, nil
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func newStorageClientForMode(ctx context.Context, cfg Config) (*storage.Client, error) {
	switch cfg.Mode {
	case ModeGCS:
		opts := clientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ModeGCSEmulator:
		return storage.NewClient(ctx,
			option.WithEndpoint(cfg.EmulatorHost+"/storage/v1/"),
			option.WithoutAuthentication(),
		)
	default:
		return nil, fmt.Errorf("unsupported object storage mode %q", cfg.Mode)
	}
}

// Attrs is the subset of object metadata validation and the read API care
// about.
type Attrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

// Store is the asset blob surface the core module depends on.
type Store interface {
	DownloadByKey(ctx context.Context, key string) (io.ReadCloser, error)
	UploadFromPath(ctx context.Context, key, localPath string) error
	GenerateSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteByKey(ctx context.Context, key string) error
	FileExists(ctx context.Context, key string) (bool, error)
	Attrs(ctx context.Context, key string) (Attrs, error)
}

type gcsStore struct {
	log    *logger.Logger
	client *storage.Client
	cfg    Config
}

func NewStore(log *logger.Logger, cfg Config) (Store, error) {
	ctx := context.Background()
	client, err := newStorageClientForMode(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &gcsStore{
		log:    log.With("service", "AssetBlobStore"),
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *gcsStore) bucket() *storage.BucketHandle {
	return s.client.Bucket(s.cfg.BucketName)
}

// readCloserWithCancel keeps ctx alive until the caller finishes reading;
// canceling it early (e.g. at NewReader's defer) would kill the download
// mid-stream.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

func (s *gcsStore) DownloadByKey(ctx context.Context, key string) (io.ReadCloser, error) {
	dctx, cancel := context.WithCancel(ctx)
	rc, err := s.bucket().Object(key).NewReader(dctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: rc, cancel: cancel}, nil
}

func (s *gcsStore) UploadFromPath(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer f.Close()

	w := s.bucket().Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) GenerateSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.cfg.Mode == ModeGCSEmulator {
		// Emulators don't implement the signing endpoint; the public media
		// URL is a usable stand-in for local/dev.
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", s.cfg.PublicBaseURL, s.cfg.BucketName, url.PathEscape(key)), nil
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	u, err := s.client.Bucket(s.cfg.BucketName).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", key, err)
	}
	return u, nil
}

func (s *gcsStore) DeleteByKey(ctx context.Context, key string) error {
	if err := s.bucket().Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) FileExists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket().Object(key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
	return true, nil
}

func (s *gcsStore) Attrs(ctx context.Context, key string) (Attrs, error) {
	a, err := s.bucket().Object(key).Attrs(ctx)
	if err != nil {
		return Attrs{}, fmt.Errorf("stat %q: %w", key, err)
	}
	return Attrs{Size: a.Size, ContentType: a.ContentType, Updated: a.Updated}, nil
}
