package extract_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	gcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	gcrtarball "github.com/google/go-containerregistry/pkg/v1/tarball"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/utils/archive"
	"github.com/opst/pht-central/pkg/utils/try"
	"github.com/sirupsen/logrus"
)

type entry struct {
	Name    string
	Content string
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func tarOf(t *testing.T, entries ...entry) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Size: int64(len(e.Content)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(e.Name, "/") {
			hdr.Mode = 0o755
			hdr.Typeflag = tar.TypeDir
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.Content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func entriesOf(t *testing.T, r io.Reader) []entry {
	t.Helper()
	ret := []entry{}
	if err := archive.TarWalk(r, func(h *tar.Header, payload io.Reader, err error) error {
		if err != nil {
			return err
		}
		b, err := io.ReadAll(payload)
		if err != nil {
			return err
		}
		ret = append(ret, entry{Name: h.Name, Content: string(b)})
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return ret
}

// image with layers, each made of the entries.
func imageOf(t *testing.T, layers ...[]entry) gcr.Image {
	t.Helper()
	ls := []gcr.Layer{}
	for _, entries := range layers {
		b := tarOf(t, entries...)
		ls = append(ls, try.To(gcrtarball.LayerFromOpener(func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		})).OrFatal(t))
	}
	return try.To(mutate.AppendLayers(empty.Image, ls...)).OrFatal(t)
}

// image with files in /out/a and /out/b, and others.
func resultImage(t *testing.T) gcr.Image {
	return imageOf(
		t,
		[]entry{
			{"etc/", ""}, {"etc/hosts", "localhost"},
			{"out/", ""}, {"out/a/", ""}, {"out/a/1.txt", "one"},
		},
		[]entry{
			{"out/b/", ""}, {"out/b/2.txt", "two"}, {"out/b/3.txt", "three"},
			{"out/ab.txt", "not in a"},
		},
	)
}

// fake puller serving fixed images.
type fakePuller struct {
	images map[string]gcr.Image
	cached map[string]gcr.Image
	pulls  []string
}

func (f *fakePuller) Pull(_ context.Context, ref string) (gcr.Image, error) {
	f.pulls = append(f.pulls, ref)
	img, ok := f.images[ref]
	if !ok {
		return nil, xe.Errorf(xe.TransientIntegration, "%s is not in registry", ref)
	}
	if f.cached == nil {
		f.cached = map[string]gcr.Image{}
	}
	f.cached[ref] = img
	return img, nil
}

func (f *fakePuller) Cached(ref string) (gcr.Image, error) {
	img, ok := f.cached[ref]
	if !ok {
		return nil, xe.Errorf(xe.NotFound, "%s is not pulled", ref)
	}
	return img, nil
}

// reader failing after n bytes.
type failingReader struct {
	r   io.Reader
	n   int
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, f.err
	}
	if len(p) > f.n {
		p = p[:f.n]
	}
	n, err := f.r.Read(p)
	f.n -= n
	return n, err
}

func (f *failingReader) Close() error {
	return nil
}
