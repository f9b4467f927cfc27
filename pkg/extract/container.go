package extract

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	gcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/utils/archive"
)

// Container is a throwaway container instantiated from an image.
type Container interface {
	// Archive returns a tar stream of the path in the container.
	//
	// Entries are named relative to the parent of the path,
	// so archiving "/out/a" yields "a", "a/...".
	Archive(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove the container.
	Remove() error
}

// Runtime instantiates containers.
type Runtime interface {
	Create(ctx context.Context, img gcr.Image) (Container, error)
}

// SnapshotRuntime instantiates containers as snapshots of the image filesystem.
//
// Nothing in the image runs.
type SnapshotRuntime struct {
	// directory to keep snapshots. If empty, os.TempDir() is used.
	Dir string
}

var _ Runtime = SnapshotRuntime{}

func (r SnapshotRuntime) Create(ctx context.Context, img gcr.Image) (Container, error) {
	f, err := os.CreateTemp(r.Dir, "container-*.tar")
	if err != nil {
		return nil, xe.Wrap(err)
	}
	name := f.Name()

	fs := mutate.Extract(img)
	defer fs.Close()

	_, err = io.Copy(f, archive.WithContext(ctx, fs))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return nil, xe.Wrap(err)
	}
	return &snapshot{file: name}, nil
}

type snapshot struct {
	file string
}

func normalize(name string) string {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	return strings.TrimSuffix(name, "/")
}

func (s *snapshot) Archive(ctx context.Context, p string) (io.ReadCloser, error) {
	target := normalize(path.Clean("/" + p))
	base := path.Base("/" + target)

	f, err := os.Open(s.file)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer f.Close()
		tw := tar.NewWriter(pw)
		found := false

		err := archive.TarWalk(
			archive.WithContext(ctx, f),
			func(h *tar.Header, payload io.Reader, err error) error {
				if err != nil {
					return err
				}
				name := normalize(h.Name)
				var renamed string
				switch {
				case name == "":
					return nil
				case target == "":
					renamed = name
				case name == target:
					renamed = base
				case strings.HasPrefix(name, target+"/"):
					renamed = base + name[len(target):]
				default:
					return nil
				}
				found = true

				hdr := *h
				hdr.Name = renamed
				if h.Typeflag == tar.TypeDir {
					hdr.Name += "/"
				}
				if err := tw.WriteHeader(&hdr); err != nil {
					return err
				}
				_, err = io.Copy(tw, payload)
				return err
			},
		)
		if err == nil && !found {
			err = xe.Errorf(xe.NotFound, "%s is not found in the container", p)
		}
		if err == nil {
			err = tw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

func (s *snapshot) Remove() error {
	if err := os.Remove(s.file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
