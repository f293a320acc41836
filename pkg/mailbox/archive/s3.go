package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// PutObjectAPI is the subset of the S3 client used by S3Sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 archive sink.
type S3Config struct {
	Bucket string

	// Prefix is prepended to every object key.
	// Default: "mail-archive"
	Prefix string

	Region string

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string

	// UsePathStyle addresses buckets by path instead of virtual host.
	UsePathStyle bool
}

// S3Sink archives messages as JSON objects under
// <prefix>/<category>/<id>.json.
type S3Sink struct {
	client PutObjectAPI
	config S3Config
	now    func() time.Time
	logger *slog.Logger
}

// NewS3Sink creates an S3 sink using the default AWS credential chain.
func NewS3Sink(ctx context.Context, config S3Config) (*S3Sink, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("archive bucket cannot be empty")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})
	return NewS3SinkWithClient(client, config)
}

// NewS3SinkWithClient creates an S3 sink around an existing client.
func NewS3SinkWithClient(client PutObjectAPI, config S3Config) (*S3Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client cannot be nil")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("archive bucket cannot be empty")
	}
	if config.Prefix == "" {
		config.Prefix = "mail-archive"
	}
	return &S3Sink{
		client: client,
		config: config,
		now:    time.Now,
		logger: slog.Default().With("component", "mailbox.archive.s3"),
	}, nil
}

// Key returns the object key a message is archived to.
func (s *S3Sink) Key(msg mailbox.Message, category string) (string, error) {
	name, err := objectName(msg.ID)
	if err != nil {
		return "", err
	}
	cat, err := pathElement(category)
	if err != nil {
		return "", fmt.Errorf("invalid category %q", category)
	}
	return path.Join(strings.Trim(s.config.Prefix, "/"), cat, name), nil
}

// Archive implements mailbox.ArchiveSink.
func (s *S3Sink) Archive(ctx context.Context, msg mailbox.Message, category string) error {
	key, err := s.Key(msg, category)
	if err != nil {
		return err
	}
	data, err := encode(NewRecord(msg, category, s.now()), false)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"category":   category,
			"message-id": msg.ID,
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Warn("S3 rejected archive upload",
				"bucket", s.config.Bucket,
				"key", key,
				"code", apiErr.ErrorCode(),
				"fault", apiErr.ErrorFault().String(),
			)
		}
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Debug("message archived", "message_id", msg.ID, "category", category, "key", key)
	return nil
}
