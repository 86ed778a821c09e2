// Package publish uploads a finished build directory to S3.
package publish

import (
	"context"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/nodebuilder-go/nodebuilder/internal/config"
	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

// DefaultConcurrency is the number of parallel uploads.
const DefaultConcurrency = 4

// PutObjectAPI is the part of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Object is one uploaded file.
type Object struct {
	Path string
	Key  string
	Size int64
}

// Publisher uploads files under a key prefix.
type Publisher struct {
	client      PutObjectAPI
	bucket      string
	prefix      string
	concurrency int
}

// New creates a Publisher writing to bucket under prefix.
func New(client PutObjectAPI, bucket, prefix string) *Publisher {
	return &Publisher{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		concurrency: DefaultConcurrency,
	}
}

// WithConcurrency sets the number of parallel uploads.
func (p *Publisher) WithConcurrency(n int) *Publisher {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

// NewClient builds an S3 client from the manifest settings. Credentials come
// from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; the
// region falls back to AWS_REGION.
func NewClient(cfg config.S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "nodebuilder-env",
			}, nil
		})),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Key returns the object key of rel (a slash-separated path) for version.
func (p *Publisher) Key(version, rel string) string {
	return path.Join(p.prefix, version, rel)
}

// Publish uploads every regular file below dir to <prefix>/<version>/<relative path>.
// Directories listed in skip, such as the temp directory, are not uploaded.
// The first failed upload cancels the rest.
func (p *Publisher) Publish(ctx context.Context, dir, version string, skip ...string) ([]Object, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = true
	}

	var objects []Object
	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && file != dir && skipped[filepath.Clean(file)] {
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Path: file,
			Key:  p.Key(version, filepath.ToSlash(rel)),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.New("E204").WithPath(dir).Wrap(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, obj := range objects {
		g.Go(func() error {
			return p.upload(gctx, obj)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return objects, nil
}

func (p *Publisher) upload(ctx context.Context, obj Object) error {
	f, err := os.Open(obj.Path)
	if err != nil {
		return errors.New("E204").WithPath(obj.Path).Wrap(err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(obj.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(obj.Key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return errors.New("E204").WithPath(obj.Key).Wrap(err)
	}
	return nil
}
