// Package objectstore uploads files to S3 compatible object storage (MinIO).
package objectstore

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Uploader interface {
	// Upload the file at path as object in bucket. The bucket is created when missing.
	Upload(ctx context.Context, bucket string, object string, path string) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

type Minio struct {
	client *minio.Client
	region string
	logger logrus.FieldLogger
}

var _ Uploader = &Minio{}

func New(conf Config, logger logrus.FieldLogger) (*Minio, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.Secure,
		Region: conf.Region,
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return &Minio{
		client: client,
		region: conf.Region,
		logger: logger.WithField("component", "objectstore"),
	}, nil
}

func (m *Minio) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return xe.Classify(xe.TransientIntegration, "cannot check bucket "+bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			// created by another instance meanwhile.
			return nil
		}
		return xe.Classify(xe.TransientIntegration, "cannot create bucket "+bucket, err)
	}
	m.logger.WithField("bucket", bucket).Info("bucket is created")
	return nil
}

func (m *Minio) Upload(ctx context.Context, bucket string, object string, path string) error {
	if err := m.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	info, err := m.client.FPutObject(ctx, bucket, object, path, minio.PutObjectOptions{
		ContentType: "application/x-tar",
	})
	if err != nil {
		return xe.Classify(xe.TransientIntegration, "cannot upload "+object, err)
	}
	m.logger.WithFields(logrus.Fields{"bucket": bucket, "object": object}).
		Infof("uploaded (%d bytes)", info.Size)
	return nil
}
