package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const Scheme = "s3://"

// Location is a parsed s3://bucket/key reference.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string { return Scheme + l.Bucket + "/" + l.Key }

// IsS3 reports whether ref uses the s3:// scheme.
func IsS3(ref string) bool { return strings.HasPrefix(ref, Scheme) }

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(ref string) (Location, error) {
	if !IsS3(ref) {
		return Location{}, fmt.Errorf("not an s3 url: %s", ref)
	}
	path := strings.TrimPrefix(ref, Scheme)
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return Location{}, fmt.Errorf("invalid s3 url: %s", ref)
	}
	return Location{Bucket: path[:slash], Key: path[slash+1:]}, nil
}

// S3Client wraps the AWS S3 transfer managers used for source and output refs.
type S3Client struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
}

// NewS3Client creates a new S3 client from the default AWS config chain.
func NewS3Client(ctx context.Context) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3ClientFromAPI(s3.NewFromConfig(cfg)), nil
}

// NewS3ClientFromAPI wraps an already configured S3 client.
func NewS3ClientFromAPI(cli *s3.Client) *S3Client {
	return &S3Client{
		client:     cli,
		downloader: manager.NewDownloader(cli),
		uploader:   manager.NewUploader(cli),
	}
}

// Download writes the object at loc into w.
func (s *S3Client) Download(ctx context.Context, loc Location, w io.WriterAt) (int64, error) {
	n, err := s.downloader.Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", loc, err)
	}
	log.Debug().Str("bucket", loc.Bucket).Str("key", loc.Key).Int64("size", n).Msg("downloaded s3 object")
	return n, nil
}

// Upload stores body at loc as a PDF object.
func (s *S3Client) Upload(ctx context.Context, loc Location, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        body,
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}
	log.Info().Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("uploaded output to s3")
	return nil
}
