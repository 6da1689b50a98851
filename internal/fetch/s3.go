package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	awscredentials "github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Options configures the S3 fetcher. Zero values defer to the AWS default
// credential and region resolution chain.
type S3Options struct {
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	DisableSSL     bool
	ForcePathStyle bool
}

// S3Fetcher fetches model resources addressed as s3://bucket/key.
type S3Fetcher struct {
	api s3iface.S3API
}

// NewS3Fetcher creates an S3Fetcher from opts.
func NewS3Fetcher(opts S3Options) (*S3Fetcher, error) {
	cfg := aws.NewConfig()
	if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint)
	}
	if opts.AccessKey != "" {
		cfg = cfg.WithCredentials(awscredentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""))
	}
	cfg = cfg.WithDisableSSL(opts.DisableSSL).WithS3ForcePathStyle(opts.ForcePathStyle)

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return &S3Fetcher{api: s3.New(sess)}, nil
}

// newS3FetcherWithAPI wires a fake API for tests.
func newS3FetcherWithAPI(api s3iface.S3API) *S3Fetcher {
	return &S3Fetcher{api: api}
}

// splitS3URL splits s3://bucket/key into bucket and key.
func splitS3URL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing S3 URL %s: %w", rawURL, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("S3 URL %s must have the form s3://bucket/key", rawURL)
	}
	return bucket, key, nil
}

// Fetch downloads the object and reports its content type and last-modified
// time. The timestamp is normalized to the HTTP time format so the rest of
// the cache treats HTTP and S3 sources identically.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := f.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body of %s: %w", rawURL, err)
	}

	res := &Resource{Body: body, ContentType: aws.StringValue(out.ContentType)}
	if out.LastModified != nil {
		res.LastModified = out.LastModified.UTC().Format(http.TimeFormat)
	}
	return res, nil
}

// Check compares the object's current last-modified time against the stored
// value via a metadata-only HeadObject call.
func (f *S3Fetcher) Check(ctx context.Context, rawURL, lastModified string) (bool, error) {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return false, err
	}

	out, err := f.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", rawURL, err)
	}

	if out.LastModified == nil || lastModified == "" {
		return false, nil
	}
	return out.LastModified.UTC().Format(http.TimeFormat) == lastModified, nil
}
