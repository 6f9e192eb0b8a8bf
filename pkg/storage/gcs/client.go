package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	readOnlyScope   = "https://www.googleapis.com/auth/devstorage.read_only"
	storageHost     = "storage.googleapis.com"
	pingTimeout     = 5 * time.Second
)

// Client presigns article image reads on Google Cloud Storage and probes the
// image bucket for readiness. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	bucket     string
	signer     *v4Signer
	tokens     *tokenSource
	apiBase    string
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`

	key *rsa.PrivateKey
}

// NewClient loads service account credentials (inline JSON first, then the
// credentials file) and verifies the bucket is listable. Presigning needs the
// account's private key, so metadata-server credentials cannot be used.
func NewClient(ctx context.Context, bucket string, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	raw, err := credentialsJSON(gcp)
	if err != nil {
		return nil, err
	}
	account, err := parseServiceAccount(raw)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	client := &Client{
		httpClient: httpClient,
		bucket:     bucket,
		signer:     &v4Signer{email: account.ClientEmail, key: account.key, now: time.Now},
		tokens:     newTokenSource(httpClient, account),
		apiBase:    "https://" + storageHost,
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"bucket": bucket, "signer": account.ClientEmail}), "gcs client initialized")
	}
	return client, nil
}

func credentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	if s := strings.TrimSpace(gcp.CredentialsJSON); s != "" {
		return []byte(s), nil
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("gcs presigning requires service account credentials")
}

func parseServiceAccount(raw []byte) (*serviceAccount, error) {
	var account serviceAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New("service account credentials need client_email and private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenURI
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	account.key = key
	return &account, nil
}

// PresignGet returns a V4 signed GET URL for key, valid for ttl. An empty
// bucket falls back to the configured image bucket.
func (c *Client) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if c == nil || c.signer == nil {
		return "", errors.New("gcs signer not configured")
	}
	if bucket == "" {
		bucket = c.bucket
	}
	return c.signer.sign(bucket, key, ttl)
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object, which needs the same read access as serving images.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokens == nil {
		return errors.New("gcs client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("gcs access token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1&fields=kind", c.apiBase, url.PathEscape(c.bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return fmt.Errorf("gcs bucket %q: %w", c.bucket, err)
	}
	return nil
}
