// Package backup uploads snapshots of the local caches and sync queues to
// S3-compatible storage and restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/lifekeeper/internal/client/repositories/queue"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/dmitrijs2005/lifekeeper/internal/logging"
	"github.com/google/uuid"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// S3API is the part of *s3.Client the service uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config locates the bucket. Empty credentials fall back to the default
// AWS credential chain.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a client for AWS or an S3-compatible endpoint such as
// MinIO.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot is the uploaded document.
type Snapshot struct {
	Version   int                        `json:"version"`
	CreatedAt time.Time                  `json:"created_at"`
	Entries   map[string]json.RawMessage `json:"entries"`
}

// Included reports whether a store key belongs in a snapshot: domain
// caches, queues and queue counters. Session and auth keys never leave the
// device.
func Included(key string) bool {
	return strings.HasPrefix(key, services.CachePrefix) ||
		strings.HasSuffix(key, queue.KeySuffix) ||
		strings.HasSuffix(key, queue.SeqKeySuffix)
}

type Service struct {
	store  kv.Store
	s3     S3API
	bucket string
	prefix string
	log    logging.Logger

	now   func() time.Time
	newID func() string
}

func NewService(store kv.Store, api S3API, bucket, prefix string, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNop()
	}
	return &Service{
		store:  store,
		s3:     api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Backup uploads a snapshot and returns its object key.
func (s *Service) Backup(ctx context.Context) (string, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("read local store: %w", err)
	}

	now := s.now().UTC()
	snap := Snapshot{Version: SnapshotVersion, CreatedAt: now, Entries: map[string]json.RawMessage{}}
	for k, v := range all {
		if !Included(k) {
			continue
		}
		if !json.Valid(v) {
			s.log.Warn(ctx, "skipping undecodable value", "key", k)
			continue
		}
		snap.Entries[k] = v
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}

	key := path.Join(s.prefix, fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), s.newID()))
	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	s.log.Info(ctx, "backup uploaded", "key", key, "entries", len(snap.Entries))
	return key, nil
}

// Restore replaces all cache and queue keys with the snapshot at key in
// one transaction and returns the number of restored entries.
func (s *Service) Restore(ctx context.Context, key string) (int, error) {
	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("download backup: %w", err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, fmt.Errorf("read backup: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return 0, fmt.Errorf("decode backup: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("unsupported backup version %d", snap.Version)
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx kv.Store) error {
		current, err := tx.List(ctx)
		if err != nil {
			return err
		}
		for k := range current {
			if Included(k) {
				if err := tx.Delete(ctx, k); err != nil {
					return err
				}
			}
		}
		for k, v := range snap.Entries {
			if !Included(k) {
				continue
			}
			if err := tx.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("restore backup: %w", err)
	}

	s.log.Info(ctx, "backup restored", "key", key, "entries", len(snap.Entries))
	return len(snap.Entries), nil
}

// List returns snapshot keys under the prefix, newest first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}

	var keys []string
	for {
		out, err := s.s3.ListObjectsV2(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		in.ContinuationToken = out.NextContinuationToken
	}

	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}
