package main

import (
	"context"
	"fmt"

	"github.com/hupe1980/stepwise/blobstore"
	"github.com/hupe1980/stepwise/blobstore/minio"
	"github.com/hupe1980/stepwise/blobstore/s3"
	"github.com/hupe1980/stepwise/config"
)

// openStore builds the blob store and commit log of a job.
func openStore(ctx context.Context, cfg config.Store) (blobstore.BlobStore, blobstore.CommitLog, error) {
	var (
		store blobstore.BlobStore
		err   error
	)
	switch cfg.Backend {
	case "memory":
		store = blobstore.NewMemoryStore()
	case "local":
		store = blobstore.NewLocalStore(cfg.Path)
	case "s3":
		opts := []s3.Option{s3.WithPrefix(cfg.Prefix)}
		if cfg.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.Endpoint))
		}
		if cfg.PartSize > 0 {
			upload := s3.DefaultUploadConfig()
			upload.PartSize = cfg.PartSize
			opts = append(opts, s3.WithUpload(upload))
		}
		store, err = s3.New(ctx, cfg.Bucket, opts...)
	case "minio":
		store, err = minio.Dial(ctx, cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Bucket, cfg.Prefix, cfg.Secure)
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.CacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cfg.CacheBytes, nil)
	}

	if cfg.CommitTable == "" {
		return store, blobstore.NewMemoryCommitLog(), nil
	}
	log, err := s3.DialDDBCommitLog(ctx, cfg.CommitTable, cfg.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("commit log: %w", err)
	}
	return store, log, nil
}
