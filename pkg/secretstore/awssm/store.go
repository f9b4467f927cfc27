// Package awssm stores secrets in AWS Secrets Manager.
//
// A secret path "services/RESULT_SERVICE" becomes the secret name
// "<prefix>services/RESULT_SERVICE".
package awssm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/secretstore"
	"github.com/sirupsen/logrus"
)

const (
	resourceNotFound = "ResourceNotFoundException"
)

// ManagerAPI is the subset of the Secrets Manager client used by Store.
type ManagerAPI interface {
	PutSecretValue(
		ctx context.Context,
		params *secretsmanager.PutSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.PutSecretValueOutput, error)

	CreateSecret(
		ctx context.Context,
		params *secretsmanager.CreateSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.CreateSecretOutput, error)

	DeleteSecret(
		ctx context.Context,
		params *secretsmanager.DeleteSecretInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.DeleteSecretOutput, error)
}

type Config struct {
	Region string

	// Endpoint overrides the service endpoint (for example, LocalStack). Optional.
	Endpoint string

	// Prefix is prepended to every secret name. Optional.
	Prefix string
}

type Store struct {
	api    ManagerAPI
	prefix string
	logger logrus.FieldLogger
}

var _ secretstore.Store = &Store{}

// New creates a Store with the default AWS credential chain.
func New(ctx context.Context, conf Config, logger logrus.FieldLogger) (*Store, error) {
	opts := []func(*config.LoadOptions) error{}
	if conf.Region != "" {
		opts = append(opts, config.WithRegion(conf.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	api := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	})
	return NewWithAPI(api, conf.Prefix, logger), nil
}

func NewWithAPI(api ManagerAPI, prefix string, logger logrus.FieldLogger) *Store {
	return &Store{
		api:    api,
		prefix: prefix,
		logger: logger.WithField("component", "secretstore"),
	}
}

func (s *Store) name(path string) string {
	return s.prefix + path
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == resourceNotFound
}

func (s *Store) Save(ctx context.Context, path string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return xe.Classify(xe.Validation, "secret cannot be marshalled", err)
	}
	name := s.name(path)
	secret := string(b)

	_, err = s.api.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &name,
		SecretString: &secret,
	})
	if err == nil {
		s.logger.WithField("secret", name).Debug("secret is updated")
		return nil
	}
	if !isNotFound(err) {
		return xe.Classify(xe.TransientIntegration, "cannot update secret "+name, err)
	}

	if _, err := s.api.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: &secret,
	}); err != nil {
		return xe.Classify(xe.TransientIntegration, "cannot create secret "+name, err)
	}
	s.logger.WithField("secret", name).Debug("secret is created")
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	name := s.name(path)
	_, err := s.api.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   &name,
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return xe.Classify(xe.NotFound, "secret "+name+" is not found", err)
	}
	return xe.Classify(xe.TransientIntegration, "cannot delete secret "+name, err)
}
