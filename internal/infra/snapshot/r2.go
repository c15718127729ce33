package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// R2Options locates the snapshot object in an S3-compatible bucket.
type R2Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Object    string
	Region    string
	// Reload is how long a downloaded snapshot is served before it is fetched again.
	Reload time.Duration
}

// R2Source serves a snapshot document stored in Cloudflare R2.
type R2Source struct {
	client *minio.Client
	bucket string
	object string
	reload time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	index    *Index
	loadedAt time.Time
}

// NewR2Source constructs the source. The object is downloaded on first lookup.
func NewR2Source(opts R2Options, logger *slog.Logger) (*R2Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleanEndpoint := sanitizeEndpoint(opts.Endpoint)
	useSSL := strings.HasPrefix(strings.ToLower(opts.Endpoint), "https")
	client, err := minio.New(cleanEndpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       useSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init r2 client: %w", err)
	}
	return &R2Source{
		client: client,
		bucket: opts.Bucket,
		object: opts.Object,
		reload: opts.Reload,
		logger: logger.With("component", "snapshot.r2"),
		now:    time.Now,
	}, nil
}

// Lookup implements market.SnapshotSource.
func (s *R2Source) Lookup(ctx context.Context, commodity string) ([]market.PriceRecord, error) {
	idx, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Lookup(ctx, commodity)
}

func (s *R2Source) current(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && (s.reload <= 0 || s.now().Sub(s.loadedAt) < s.reload) {
		return s.index, nil
	}
	idx, err := s.download(ctx)
	if err != nil {
		if s.index != nil {
			s.logger.Warn("snapshot reload failed, serving previous copy", "object", s.object, "error", err)
			return s.index, nil
		}
		return nil, err
	}
	s.index = idx
	s.loadedAt = s.now()
	s.logger.Info("snapshot loaded", "object", s.object, "records", idx.Len(), "generated_at", idx.GeneratedAt())
	return idx, nil
}

func (s *R2Source) download(ctx context.Context) (*Index, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot object: %w", err)
	}
	defer obj.Close()
	if _, statErr := obj.Stat(); statErr != nil {
		return nil, fmt.Errorf("stat snapshot object: %w", statErr)
	}
	return Decode(obj)
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var _ market.SnapshotSource = (*R2Source)(nil)
