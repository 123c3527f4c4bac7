// Package delivery mirrors finished archives to R2-compatible object
// storage, so a result survives the session TTL when the operator wants a
// permanent copy. Uploads go through a bounded worker pool and never block
// the pipeline.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
)

// ErrQueueFull means the upload backlog is saturated; the archive is still
// delivered to the requester, only the object-storage copy is skipped.
var ErrQueueFull = errors.New("upload queue is full")

type uploadReq struct {
	ctx         context.Context
	key         string
	contentType string
	payload     []byte
}

type Uploader struct {
	bucket string
	prefix string

	workers        int
	queueSize      int
	maxRetries     int
	retryBaseDelay time.Duration

	queue chan uploadReq
	wg    sync.WaitGroup

	uploader *manager.Uploader
}

func NewUploader(cfg *config.S3Config) (*Uploader, error) {
	u := &Uploader{
		bucket:         cfg.BucketName,
		prefix:         cfg.Prefix,
		workers:        4,
		queueSize:      64,
		maxRetries:     3,
		retryBaseDelay: 300 * time.Millisecond,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		o.UsePathStyle = true
	})
	u.uploader = manager.NewUploader(client)

	u.queue = make(chan uploadReq, u.queueSize)
	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker()
	}

	log.Printf("[delivery] uploader ready (bucket=%s workers=%d)", u.bucket, u.workers)
	return u, nil
}

// Close drains the queue and waits for in-flight uploads.
func (u *Uploader) Close() {
	close(u.queue)
	u.wg.Wait()
}

// Enqueue hands an archive to the pool without blocking; a full queue is
// reported, not waited out.
func (u *Uploader) Enqueue(ctx context.Context, key string, payload []byte) error {
	req := uploadReq{ctx: ctx, key: u.prefix + key, contentType: "application/zip", payload: payload}
	select {
	case u.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (u *Uploader) worker() {
	defer u.wg.Done()
	for req := range u.queue {
		for attempt := 1; ; attempt++ {
			_, err := u.uploader.Upload(req.ctx, &s3.PutObjectInput{
				Bucket:      aws.String(u.bucket),
				Key:         aws.String(req.key),
				Body:        bytes.NewReader(req.payload),
				ContentType: aws.String(req.contentType),
			})
			if err == nil {
				log.Printf("[delivery] uploaded %s (%d bytes)", req.key, len(req.payload))
				break
			}
			if attempt > u.maxRetries {
				log.Printf("[delivery] giving up on %s: %v", req.key, err)
				break
			}

			timer := time.NewTimer(u.backoffDelay(attempt))
			select {
			case <-timer.C:
			case <-req.ctx.Done():
				timer.Stop()
			}
			if req.ctx != nil && req.ctx.Err() != nil {
				break
			}
		}
	}
}

// backoff with jitter
func (u *Uploader) backoffDelay(attempt int) time.Duration {
	delay := u.retryBaseDelay << (attempt - 1)
	jitter := time.Duration(int64(delay) / 10)
	return delay - (jitter / 2) + time.Duration(int64(jitter)*time.Now().UnixNano()%2)
}
