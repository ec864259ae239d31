package report

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Notifier uploads a snapshot of the log under a dated key.
type S3Notifier struct {
	bucket string
	prefix string
	client objectPutter
	now    func() time.Time
	log    *logging.Logger
}

// NewS3Notifier resolves AWS credentials from the default chain.
func NewS3Notifier(ctx context.Context, cfg config.ReportConfig, log *logging.Logger) (*S3Notifier, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("report.s3.bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Notifier{
		bucket: cfg.S3.Bucket,
		prefix: cfg.S3.Prefix,
		client: s3.NewFromConfig(awsCfg),
		now:    time.Now,
		log:    log.Sub("report"),
	}, nil
}

func (n *S3Notifier) Name() string { return "s3" }

// Key is the object key for a snapshot taken at t.
func (n *S3Notifier) Key(t time.Time) string {
	return path.Join(n.prefix, t.UTC().Format("2006/01/02"), t.UTC().Format("150405")+"-"+AttachmentName)
}

// Notify uploads the snapshot.
func (n *S3Notifier) Notify(ctx context.Context, snap Snapshot) error {
	key := n.Key(n.now())
	_, err := n.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(n.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(snap.Data),
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return &domain.DeliveryError{Notifier: n.Name(), Err: err}
	}
	n.log.Info().Str("bucket", n.bucket).Str("key", key).Msg("report uploaded")
	return nil
}
