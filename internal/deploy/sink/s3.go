package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/openmined/sitedeploy/internal/deploy/planner"
)

const (
	// S3 user metadata key carrying the content fingerprint of the object.
	// Surfaces as x-amz-meta-content-hash on the wire.
	metadataHashKey = "content-hash"

	// versionTokenKey stores the tree fingerprint of the last deployment.
	// Never part of the site itself, never pruned.
	versionTokenKey = ".sitedeploy/version"

	maxConcurrentUploads = 8
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Sink uploads a sync plan to an S3-compatible bucket. It skips objects
// whose remote fingerprint already matches the planned content hash and sets
// Content-Type and Cache-Control verbatim from each record.
type S3Sink struct {
	client *s3.Client
	config *S3Config
}

func NewS3Sink(ctx context.Context, cfg *S3Config) (*S3Sink, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 50,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
		Timeout: 60 * time.Second,
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3SinkWithClient(client, cfg), nil
}

func NewS3SinkWithClient(client *s3.Client, cfg *S3Config) *S3Sink {
	return &S3Sink{client: client, config: cfg}
}

type PushResult struct {
	Uploaded int
	Skipped  int
	Pruned   int
	Bytes    int64
}

// Push uploads every record of the plan whose remote copy is missing or
// stale. When prune is set, remote objects not present in the plan are
// deleted afterwards.
func (s *S3Sink) Push(ctx context.Context, plan planner.SyncPlan, prune bool) (*PushResult, error) {
	remote, err := s.remoteHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list remote objects: %w", err)
	}

	result := &PushResult{}
	results := make([]struct {
		uploaded bool
		size     int64
	}, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, rec := range plan {
		i, rec := i, rec
		g.Go(func() error {
			if remote[rec.Key] == rec.ContentHash {
				slog.Debug("push skip", "key", rec.Key, "hash", rec.ContentHash)
				return nil
			}
			size, err := s.putAsset(gctx, rec)
			if err != nil {
				return fmt.Errorf("upload %s: %w", rec.Key, err)
			}
			results[i].uploaded = true
			results[i].size = size
			slog.Info("push upload", "key", rec.Key, "size", humanize.Bytes(uint64(size)), "type", rec.ContentType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.uploaded {
			result.Uploaded++
			result.Bytes += r.size
		} else {
			result.Skipped++
		}
	}

	if prune {
		pruned, err := s.pruneStale(ctx, plan, remote)
		if err != nil {
			return nil, err
		}
		result.Pruned = pruned
	}

	return result, nil
}

func (s *S3Sink) putAsset(ctx context.Context, rec *planner.AssetRecord) (int64, error) {
	f, err := os.Open(rec.SourcePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.config.Bucket,
		Key:           aws.String(rec.Key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(rec.ContentType),
		CacheControl:  aws.String(rec.CacheControl),
		Metadata:      map[string]string{metadataHashKey: rec.ContentHash},
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// remoteHashes maps every object key in the bucket to its stored content
// fingerprint. Objects without the metadata (uploaded by other tools) map to
// an empty hash and always get overwritten.
func (s *S3Sink) remoteHashes(ctx context.Context) (map[string]string, error) {
	keys := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.config.Bucket,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	hashes := make(map[string]string, len(keys))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			head, err := s.client.HeadObject(gctx, &s3.HeadObjectInput{
				Bucket: &s.config.Bucket,
				Key:    aws.String(key),
			})
			if err != nil {
				return err
			}
			mu.Lock()
			hashes[key] = head.Metadata[metadataHashKey]
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hashes, nil
}

func (s *S3Sink) pruneStale(ctx context.Context, plan planner.SyncPlan, remote map[string]string) (int, error) {
	pruned := 0
	for _, key := range staleKeys(plan, remote) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: &s.config.Bucket,
			Key:    aws.String(key),
		})
		if err != nil {
			return pruned, fmt.Errorf("prune %s: %w", key, err)
		}
		slog.Info("push prune", "key", key)
		pruned++
	}
	return pruned, nil
}

// staleKeys lists remote objects absent from the plan, sorted for stable
// deletion order. The version token object is never stale.
func staleKeys(plan planner.SyncPlan, remote map[string]string) []string {
	planned := make(map[string]bool, len(plan))
	for _, rec := range plan {
		planned[rec.Key] = true
	}

	var stale []string
	for key := range remote {
		if !planned[key] && key != versionTokenKey {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	return stale
}

// VersionToken returns the tree fingerprint recorded by the previous
// deployment, or "" when none exists yet.
func (s *S3Sink) VersionToken(ctx context.Context) (string, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.config.Bucket,
		Key:    aws.String(versionTokenKey),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", nil
		}
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *S3Sink) SetVersionToken(ctx context.Context, token string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       &s.config.Bucket,
		Key:          aws.String(versionTokenKey),
		Body:         strings.NewReader(token),
		ContentType:  aws.String("text/plain"),
		CacheControl: aws.String("no-store"),
	})
	return err
}
