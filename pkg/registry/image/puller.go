// Package image pulls images from the registry into a local OCI image layout.
package image

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	gcrname "github.com/google/go-containerregistry/pkg/name"
	gcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"
	"github.com/google/go-containerregistry/pkg/v1/match"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/registry"
	"github.com/sirupsen/logrus"
)

// annotation naming the reference which a cached image is pulled as.
const refNameAnnotation = "org.opencontainers.image.ref.name"

type PullerInterface interface {
	// Pull the image into the cache, replacing older one pulled as the same ref.
	Pull(ctx context.Context, ref string) (gcr.Image, error)

	// Cached returns the image pulled as ref. It returns xe.NotFound error when not pulled yet.
	Cached(ref string) (gcr.Image, error)
}

type Puller struct {
	registry registry.Registry
	cache    layout.Path
	logger   logrus.FieldLogger
	options  []remote.Option
}

var _ PullerInterface = &Puller{}

// NewPuller opens (or initializes) the OCI image layout at cacheDir.
func NewPuller(
	reg registry.Registry,
	cacheDir string,
	logger logrus.FieldLogger,
	options ...remote.Option,
) (*Puller, error) {
	cache, err := layout.FromPath(cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, xe.Wrap(err)
		}
		cache, err = layout.Write(cacheDir, empty.Index)
	}
	if err != nil {
		return nil, xe.Wrap(err)
	}

	return &Puller{
		registry: reg,
		cache:    cache,
		logger:   logger.WithField("component", "image-puller"),
		options:  options,
	}, nil
}

func (p *Puller) parse(ref string) (gcrname.Reference, error) {
	opts := []gcrname.Option{}
	if p.registry.URL != nil && p.registry.URL.Scheme == "http" {
		opts = append(opts, gcrname.Insecure)
	}
	r, err := gcrname.ParseReference(ref, opts...)
	if err != nil {
		return nil, xe.Classify(xe.Validation, "malformed image reference "+ref, err)
	}
	return r, nil
}

func (p *Puller) Pull(ctx context.Context, ref string) (gcr.Image, error) {
	r, err := p.parse(ref)
	if err != nil {
		return nil, err
	}

	opts := append(
		[]remote.Option{
			remote.WithContext(ctx),
			remote.WithAuth(&authn.Basic{Username: p.registry.User, Password: p.registry.Password}),
		},
		p.options...,
	)
	img, err := remote.Image(r, opts...)
	if err != nil {
		return nil, xe.Classify(xe.TransientIntegration, "cannot pull "+ref, err)
	}

	if err := p.cache.ReplaceImage(
		img, match.Name(ref),
		layout.WithAnnotations(map[string]string{refNameAnnotation: ref}),
	); err != nil {
		return nil, xe.Classify(xe.TransientIntegration, "cannot save "+ref, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	p.logger.WithField("ref", ref).Infof("pulled: %s", digest)

	return p.cache.Image(digest)
}

func (p *Puller) Cached(ref string) (gcr.Image, error) {
	index, err := p.cache.ImageIndex()
	if err != nil {
		return nil, xe.Wrap(err)
	}
	manifest, err := index.IndexManifest()
	if err != nil {
		return nil, xe.Wrap(err)
	}

	for _, desc := range manifest.Manifests {
		if desc.Annotations[refNameAnnotation] != ref {
			continue
		}
		return p.cache.Image(desc.Digest)
	}
	return nil, xe.Errorf(xe.NotFound, "image %s is not pulled", ref)
}
