// Package artifactmirror is the optional additive write-behind mirror
// named in SPEC_FULL.md §6: after a job finishes, the worker may push its
// artifacts/ tree to an S3-compatible bucket so it survives the Job State
// Directory's eventual cleanup. It is never part of the client-facing API
// (spec.md's "no artifact uploads over the API" non-goal is unaffected —
// this is an internal worker-side write, not a client upload endpoint).
//
// Adapted from _examples/KevTiv-alieze-erp/pkg/storage/s3.go: the same
// aws-sdk-go-v2 config/credentials/s3 wiring and custom endpoint resolver
// for MinIO-style deployments, narrowed down to the one operation the
// worker needs (recursive directory upload) instead of the teacher's full
// Storage interface (Upload/Download/Delete/GetURL/List/Exists), which
// served a general-purpose file store the orchestrator has no use for.
package artifactmirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Mirror pushes a job's artifacts directory to a single bucket, keyed by
// job_id/relative_path.
type S3Mirror struct {
	client *s3.Client
	bucket string
}

// Config bundles the mirror settings. Bucket, Region and Endpoint come from
// the ARTIFACT_MIRROR_* environment variables (SPEC_FULL.md §6);
// AccessKeyID and SecretAccessKey are not read from the environment by
// config.Load, and when AccessKeyID is empty the SDK's default credential
// chain is used.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// New builds an S3Mirror, or returns nil with no error when cfg.Bucket is
// empty — the mirror is entirely optional.
func New(ctx context.Context, cfg Config) (*S3Mirror, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("artifactmirror: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{client: client, bucket: cfg.Bucket}, nil
}

// MirrorDir walks artifactsDir and uploads every regular file under
// "<jobID>/<relative path>".
func (m *S3Mirror) MirrorDir(ctx context.Context, jobID, artifactsDir string) error {
	if m == nil {
		return nil
	}

	return filepath.Walk(artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(artifactsDir, path)
		if err != nil {
			return fmt.Errorf("artifactmirror: relative path: %w", err)
		}
		key := jobID + "/" + filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("artifactmirror: open %s: %w", path, err)
		}
		defer f.Close()

		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
			Body:   f,
		})
		if err != nil {
			return fmt.Errorf("artifactmirror: put %s: %w", key, err)
		}
		return nil
	})
}
