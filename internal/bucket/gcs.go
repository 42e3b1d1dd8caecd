package bucket

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/i474232898/look-pyrenees/internal/scene"
)

const gcsEndpoint = "storage.googleapis.com"

// MinioAPI is the subset of the minio client used by GCSBucket.
type MinioAPI interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// GCSBucket stores artifacts in Google Cloud Storage through its
// S3-compatible XML API, authenticated with HMAC keys.
//
// GCS offers no conditional put over this API, so Upload checks for the
// object first. Two processes uploading the same object at the same moment
// may both succeed; the second write replaces identical content.
type GCSBucket struct {
	client MinioAPI
	bucket string
}

func NewGCSBucket(cfg Config) (*GCSBucket, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = gcsEndpoint
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: true,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return NewGCSBucketWithClient(client, cfg.Name), nil
}

// NewGCSBucketWithClient wraps an existing client.
func NewGCSBucketWithClient(client MinioAPI, bucket string) *GCSBucket {
	return &GCSBucket{client: client, bucket: bucket}
}

func (b *GCSBucket) Name() string {
	return "gs://" + b.bucket
}

func (b *GCSBucket) Exists(ctx context.Context, key scene.ArtifactKey) (bool, error) {
	objects, err := b.List(ctx, "")
	if err != nil {
		return false, err
	}
	return matchAny(objects, key), nil
}

func (b *GCSBucket) Upload(ctx context.Context, localPath, object string) error {
	_, err := b.client.StatObject(ctx, b.bucket, object, minio.StatObjectOptions{})
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, object)
	}
	if err := translateMinioError(err, object); !errors.Is(err, ErrObjectNotFound) {
		return err
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	_, err = b.client.FPutObject(ctx, b.bucket, object, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return translateMinioError(err, object)
	}
	return nil
}

func (b *GCSBucket) Delete(ctx context.Context, object string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return translateMinioError(err, object)
	}
	return nil
}

func (b *GCSBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	for info := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, translateMinioError(info.Err, prefix)
		}
		out = append(out, Object{Key: info.Key, Size: info.Size, Modified: info.LastModified})
	}
	return out, nil
}

func translateMinioError(err error, object string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, object)
	case "PreconditionFailed":
		return fmt.Errorf("%w: %s", ErrAlreadyExists, object)
	}
	return fmt.Errorf("gcs %s: %w", object, err)
}
