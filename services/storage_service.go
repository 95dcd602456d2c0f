package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ObjectStore is the put/get contract the pipeline needs from durable storage.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// S3ObjectStore uploads to a public bucket and returns the CloudFront URL.
type S3ObjectStore struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3ObjectStore(ctx context.Context) (*S3ObjectStore, error) {
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION") // fallback
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3ObjectStore{
		client:  s3.NewFromConfig(cfg),
		bucket:  os.Getenv("S3_BUCKET"),
		baseURL: strings.TrimSuffix(os.Getenv("CLOUDFRONT_URL"), "/"),
	}, nil
}

func (s *S3ObjectStore) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// DefaultObjectStore is initialized once at startup, like the DB handle.
var DefaultObjectStore ObjectStore

func InitObjectStore() {
	store, err := NewS3ObjectStore(context.Background())
	if err != nil {
		log.Fatalf("Unable to initialize object store: %v", err)
	}
	DefaultObjectStore = store
}

// Upload is one submitted file, still in memory.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// Asset is an ingested binary. Immutable once stored; the URL ends up on the
// meal log row.
type Asset struct {
	OriginalName string
	MimeType     string
	UserID       uint
	StoredURL    string
	CreatedAt    time.Time
}

// AssetIngestor writes uploads to the object store under collision-resistant
// keys.
type AssetIngestor struct {
	store      ObjectStore
	maxWorkers int
}

func NewAssetIngestor(store ObjectStore, maxWorkers int) *AssetIngestor {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &AssetIngestor{store: store, maxWorkers: maxWorkers}
}

// Ingest stores a single upload and returns the resulting asset.
func (a *AssetIngestor) Ingest(ctx context.Context, userID uint, up Upload) (Asset, error) {
	key := assetKey(userID, up.Filename)
	url, err := a.store.PutObject(ctx, key, up.Data, up.MimeType)
	if err != nil {
		return Asset{}, err
	}
	return Asset{
		OriginalName: up.Filename,
		MimeType:     up.MimeType,
		UserID:       userID,
		StoredURL:    url,
		CreatedAt:    time.Now(),
	}, nil
}

// IngestAll uploads a batch through a bounded worker group. The first failure
// cancels the remaining uploads; objects already written stay where they are.
// Results keep the order of the input slice.
func (a *AssetIngestor) IngestAll(ctx context.Context, userID uint, uploads []Upload) ([]Asset, error) {
	assets := make([]Asset, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxWorkers)
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			asset, err := a.Ingest(ctx, userID, up)
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

// assetKey builds a globally unique key: owner id + nanosecond timestamp +
// random token, so concurrent uploads can never collide.
func assetKey(userID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("meal-photos/%d/%d-%s%s",
		userID,
		time.Now().UnixNano(),
		uuid.NewString(),
		ext,
	)
}
