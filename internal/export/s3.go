package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/401-Nick/lra-alerts/internal/config"
	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// ListingSource supplies the full listing set for the artifact. Satisfied
// by the listings repository.
type ListingSource interface {
	All(ctx context.Context) ([]models.Listing, error)
}

// S3Exporter writes the run's CSV to S3 keyed by ingest date and returns
// a presigned GET URL for it.
type S3Exporter struct {
	s3     s3iface.S3API
	source ListingSource
	bucket string
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewS3Exporter builds an exporter from configuration, creating its own
// AWS session. Credentials come from the default chain.
func NewS3Exporter(cfg config.ExportConfig, source ListingSource, log *logger.Logger) (*S3Exporter, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	return &S3Exporter{
		s3:     s3.New(sess),
		source: source,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		ttl:    time.Duration(cfg.PresignTTLMin) * time.Minute,
		log:    log.WithComponent("export"),
	}, nil
}

// Export builds the CSV from freshly committed state, uploads it, and
// returns the time-limited retrieval URL. Re-running on the same day
// overwrites that day's object.
func (e *S3Exporter) Export(ctx context.Context, runTime time.Time) (string, error) {
	listings, err := e.source.All(ctx)
	if err != nil {
		return "", fmt.Errorf("loading listings for export: %w", err)
	}

	body, err := BuildCSV(listings)
	if err != nil {
		return "", fmt.Errorf("building export csv: %w", err)
	}

	key := path.Join(e.prefix, fmt.Sprintf("lra-%s.csv", runTime.UTC().Format("2006-01-02")))

	_, err = e.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading export to s3://%s/%s: %w", e.bucket, key, err)
	}

	req, _ := e.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(e.ttl)
	if err != nil {
		return "", fmt.Errorf("presigning export url for %s: %w", key, err)
	}

	e.log.Info("Export uploaded", map[string]interface{}{
		"key":  key,
		"rows": len(listings),
	})

	return url, nil
}
