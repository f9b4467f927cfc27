// Package extract retrieves result images of trains and extracts their files.
package extract

import (
	"archive/tar"
	"context"
	"errors"
	"os"

	gcr "github.com/google/go-containerregistry/pkg/v1"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/registry"
	"github.com/opst/pht-central/pkg/registry/image"
	"github.com/opst/pht-central/pkg/utils/archive"
	"github.com/sirupsen/logrus"
)

// permission of extracted archives.
const ArchiveMode os.FileMode = 0o775

type Pipeline struct {
	registry registry.Registry
	projects registry.Projects
	puller   image.PullerInterface
	runtime  Runtime
	logger   logrus.FieldLogger
}

func NewPipeline(
	reg registry.Registry,
	projects registry.Projects,
	puller image.PullerInterface,
	runtime Runtime,
	logger logrus.FieldLogger,
) *Pipeline {
	return &Pipeline{
		registry: reg,
		projects: projects,
		puller:   puller,
		runtime:  runtime,
		logger:   logger.WithField("component", "extract"),
	}
}

// Ref returns the reference of the result image of the train.
func (p *Pipeline) Ref(trainId string) string {
	return registry.ResultImage(p.registry, p.projects, trainId)
}

// Retrieve pulls the result image of the train into local cache.
//
// It does not retry. Errors are returned as they are.
func (p *Pipeline) Retrieve(ctx context.Context, trainId string) (gcr.Image, error) {
	img, err := p.puller.Pull(ctx, p.Ref(trainId))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return img, nil
}

// Retrieved returns the image pulled by Retrieve. It returns xe.NotFound error when not pulled yet.
func (p *Pipeline) Retrieved(trainId string) (gcr.Image, error) {
	img, err := p.puller.Cached(p.Ref(trainId))
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return img, nil
}

// Extract writes files at paths in the image into one tar file at dest.
//
// Paths are archived in order. Each path appears in the archive by its base name,
// like "/out/a/x" as "a/x".
//
// Extract returns nil only after dest is closed and found on the filesystem.
// When any path cannot be archived, it returns xe.StreamError error
// and removes dest.
func (p *Pipeline) Extract(ctx context.Context, img gcr.Image, paths []string, dest string) (err error) {
	container, err := p.runtime.Create(ctx, img)
	if err != nil {
		return xe.Classify(xe.StreamError, "cannot instantiate container", err)
	}
	defer func() {
		if rerr := container.Remove(); rerr != nil {
			p.logger.WithError(rerr).Warn("failed to remove container")
		}
	}()

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, ArchiveMode)
	if err != nil {
		return xe.Wrap(err)
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			f.Close()
		}
		if rerr := os.Remove(dest); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			p.logger.WithError(rerr).WithField("dest", dest).Warn("failed to remove partial archive")
		}
	}()

	// mode passed to OpenFile is masked by umask.
	if err := f.Chmod(ArchiveMode); err != nil {
		return xe.Wrap(err)
	}

	tw := tar.NewWriter(f)
	for _, path := range paths {
		if err := func() error {
			stream, err := container.Archive(ctx, path)
			if err != nil {
				return err
			}
			defer stream.Close()
			return archive.Merge(ctx, tw, stream)
		}(); err != nil {
			return xe.Classify(xe.StreamError, "cannot archive "+path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return xe.Classify(xe.StreamError, "cannot finalize archive", err)
	}
	closed = true
	if err := f.Close(); err != nil {
		return xe.Classify(xe.StreamError, "cannot close archive", err)
	}
	if _, err := os.Stat(dest); err != nil {
		return xe.Classify(xe.StreamError, "archive is not found after writing", err)
	}

	p.logger.WithField("dest", dest).Infof("extracted %d path(s)", len(paths))
	return nil
}
