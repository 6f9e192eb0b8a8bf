package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/salesrank-backend/pkg/enums"
)

// ResolvedImage is a fetchable URL for one storage key. ExpiresAt is nil for
// URLs that carry no credential.
type ResolvedImage struct {
	Key       string     `json:"key"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Locator turns storage keys into URLs. Exactly one implementation is active
// per process and it must be safe for concurrent use.
type Locator interface {
	Strategy() enums.StorageStrategy
	Resolve(ctx context.Context, key string, ttl time.Duration) (ResolvedImage, error)
}

// Presigner issues time-limited signed GET URLs. Implemented by the S3 and
// GCS storage clients.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

var errEmptyKey = errors.New("storage key is required")

// DirectLocator builds static public URLs: <baseURL>/<bucket>/<key>.
type DirectLocator struct {
	baseURL string
	bucket  string
}

func NewDirectLocator(baseURL, bucket string) (*DirectLocator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("public base url required")
	}
	return &DirectLocator{
		baseURL: baseURL,
		bucket:  strings.Trim(strings.TrimSpace(bucket), "/"),
	}, nil
}

func (d *DirectLocator) Strategy() enums.StorageStrategy {
	return enums.StorageStrategyDirect
}

// Resolve ignores ttl; direct URLs never expire.
func (d *DirectLocator) Resolve(ctx context.Context, key string, _ time.Duration) (ResolvedImage, error) {
	if err := ctx.Err(); err != nil {
		return ResolvedImage{}, err
	}
	if key == "" {
		return ResolvedImage{}, errEmptyKey
	}

	url := d.baseURL + "/" + key
	if d.bucket != "" {
		url = d.baseURL + "/" + d.bucket + "/" + key
	}
	return ResolvedImage{Key: key, URL: url}, nil
}

// PresignedLocator delegates to a Presigner built once at startup.
type PresignedLocator struct {
	signer     Presigner
	bucket     string
	defaultTTL time.Duration
	timeNow    func() time.Time
}

func NewPresignedLocator(signer Presigner, bucket string, defaultTTL time.Duration) (*PresignedLocator, error) {
	if signer == nil {
		return nil, errors.New("presigner required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket required")
	}
	if defaultTTL <= 0 {
		return nil, errors.New("default ttl must be positive")
	}
	return &PresignedLocator{
		signer:     signer,
		bucket:     strings.TrimSpace(bucket),
		defaultTTL: defaultTTL,
		timeNow:    time.Now,
	}, nil
}

func (p *PresignedLocator) Strategy() enums.StorageStrategy {
	return enums.StorageStrategyPresigned
}

// Resolve signs a GET for key. A non-positive ttl uses the configured default.
func (p *PresignedLocator) Resolve(ctx context.Context, key string, ttl time.Duration) (ResolvedImage, error) {
	if key == "" {
		return ResolvedImage{}, errEmptyKey
	}
	if ttl <= 0 {
		ttl = p.defaultTTL
	}

	issuedAt := p.timeNow()
	url, err := p.signer.PresignGet(ctx, p.bucket, key, ttl)
	if err != nil {
		return ResolvedImage{}, fmt.Errorf("presign %s: %w", key, err)
	}
	expiresAt := issuedAt.Add(ttl).UTC()
	return ResolvedImage{Key: key, URL: url, ExpiresAt: &expiresAt}, nil
}

// LocatorConfig carries the static settings used to pick a Locator.
type LocatorConfig struct {
	Strategy      enums.StorageStrategy
	PublicBaseURL string
	Bucket        string
	DefaultTTL    time.Duration
	Signer        Presigner
}

// NewLocator selects the locator variant for the process.
func NewLocator(cfg LocatorConfig) (Locator, error) {
	switch cfg.Strategy {
	case enums.StorageStrategyDirect:
		direct, err := NewDirectLocator(cfg.PublicBaseURL, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return direct, nil
	case enums.StorageStrategyPresigned:
		presigned, err := NewPresignedLocator(cfg.Signer, cfg.Bucket, cfg.DefaultTTL)
		if err != nil {
			return nil, err
		}
		return presigned, nil
	default:
		return nil, fmt.Errorf("unsupported storage strategy %q", cfg.Strategy)
	}
}
