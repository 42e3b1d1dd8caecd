package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/look-pyrenees/internal/bucket"
	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
)

// retry runs fn with the service backoff, each attempt bounded by timeout.
// Bucket answers that retrying cannot change are returned at once.
func (s *Service) retry(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	backoff := s.opts.Backoff
	if backoff.InitialInterval <= 0 {
		backoff = resilience.DefaultBackoff
	}
	return resilience.Do(ctx, backoff, timeout, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, bucket.ErrAlreadyExists) || errors.Is(err, bucket.ErrObjectNotFound) {
			return resilience.Permanent(err)
		}
		return err
	})
}

// retryingBucket bounds and retries every call to the wrapped bucket.
type retryingBucket struct {
	bucket.Bucket
	svc *Service
}

func (b *retryingBucket) Exists(ctx context.Context, key scene.ArtifactKey) (bool, error) {
	var exists bool
	err := b.svc.retry(ctx, b.svc.opts.CallTimeout, func(ctx context.Context) error {
		var err error
		exists, err = b.Bucket.Exists(ctx, key)
		return err
	})
	return exists, err
}

func (b *retryingBucket) Upload(ctx context.Context, localPath, object string) error {
	return b.svc.retry(ctx, b.svc.opts.CallTimeout, func(ctx context.Context) error {
		return b.Bucket.Upload(ctx, localPath, object)
	})
}

func (b *retryingBucket) Delete(ctx context.Context, object string) error {
	return b.svc.retry(ctx, b.svc.opts.CallTimeout, func(ctx context.Context) error {
		return b.Bucket.Delete(ctx, object)
	})
}

func (b *retryingBucket) List(ctx context.Context, prefix string) ([]bucket.Object, error) {
	var objects []bucket.Object
	err := b.svc.retry(ctx, b.svc.opts.CallTimeout, func(ctx context.Context) error {
		var err error
		objects, err = b.Bucket.List(ctx, prefix)
		return err
	})
	return objects, err
}
