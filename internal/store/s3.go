package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"testforge/internal/types"
)

// S3Config carries the connection parameters for an S3-compatible object
// store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store archives stage results as objects under <runID>/<stage>.json.
// It is used as a mirror target, so every operation is context-bounded
// and the bucket is created lazily on first use.
type S3Store struct {
	client *minio.Client
	bucket string
	region string
	runID  string
	log    *zap.Logger

	initOnce sync.Once
	initErr  error
}

func NewS3Store(cfg S3Config, runID string, log *zap.Logger) (*S3Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("store: s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("store: s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("store: s3 bucket is required")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("store: run id is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("store: init s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: bucket, region: region, runID: runID, log: log}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) key(stage string) string {
	return s.runID + "/" + stage + ".json"
}

func (s *S3Store) Save(ctx context.Context, res types.StageResult) error {
	if res.Stage == "" {
		return fmt.Errorf("store: stage name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("store: ensure bucket: %w", err)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("store: encode %s result: %w", res.Stage, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key(res.Stage),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("store: put %s result: %w", res.Stage, err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, stage string) (types.StageResult, bool, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return types.StageResult{}, false, fmt.Errorf("store: ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(stage), minio.GetObjectOptions{})
	if err != nil {
		return types.StageResult{}, false, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return types.StageResult{}, false, nil
		}
		return types.StageResult{}, false, err
	}
	var res types.StageResult
	if err := json.Unmarshal(data, &res); err != nil {
		return types.StageResult{}, false, fmt.Errorf("store: decode %s result: %w", stage, err)
	}
	return res, true, nil
}

func (s *S3Store) Close() error { return nil }
