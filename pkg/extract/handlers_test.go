package extract_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	gcr "github.com/google/go-containerregistry/pkg/v1"
	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/extract"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/opst/pht-central/pkg/mq/memory"
	"github.com/opst/pht-central/pkg/utils/try"
)

const t1Ref = "harbor.example.com/pht_outgoing/T1:latest"

func command(t *testing.T, typ mq.Type, data any, options ...mq.EnvelopeOption) mq.Envelope {
	t.Helper()
	return try.To(mq.NewEnvelope(typ, data, options...)).OrFatal(t)
}

func reported(t *testing.T, broker *memory.Broker) []extract.StatusReported {
	t.Helper()
	ret := []extract.StatusReported{}
	for _, p := range broker.Published(mq.EventKey(mq.ResultServiceStatusReported)) {
		ret = append(ret, try.To(mq.Decode[extract.StatusReported](p.Envelope)).OrFatal(t))
	}
	return ret
}

func TestResultService(t *testing.T) {
	setup := func(t *testing.T) (*extract.ResultService, *fakePuller, *memory.Broker) {
		puller := &fakePuller{images: map[string]gcr.Image{t1Ref: resultImage(t)}}
		broker := memory.New()
		t.Cleanup(func() { broker.Close() })
		pipeline := extract.NewPipeline(
			testRegistry(t), projects, puller,
			extract.SnapshotRuntime{Dir: t.TempDir()}, quietLogger(),
		)
		testee := extract.NewResultService(
			extract.ResultServiceConfig{
				Paths:     []string{"/out/a", "/out/b"},
				OutputDir: filepath.Join(t.TempDir(), "results"),
			},
			pipeline, broker, quietLogger(),
		)
		return testee, puller, broker
	}

	t.Run("status goes unknown, downloaded, then extracted", func(t *testing.T) {
		ctx := context.Background()
		testee, puller, broker := setup(t)
		ref := extract.ResultRef{TrainId: "T1", Id: "R1"}

		steps := []mq.Envelope{
			command(t, mq.ResultServiceStatus, ref),
			command(t, mq.ResultServiceDownload, ref),
			command(t, mq.ResultServiceStatus, ref),
			command(t, mq.ResultServiceExtract, ref),
			command(t, mq.ResultServiceStatus, ref),
		}
		handlers := map[mq.Type]mq.Handler{
			mq.ResultServiceStatus:   testee.HandleStatus,
			mq.ResultServiceDownload: testee.HandleDownload,
			mq.ResultServiceExtract:  testee.HandleExtract,
		}
		for _, e := range steps {
			if err := handlers[e.Type](ctx, e); err != nil {
				t.Fatalf("%s: %v", e.Type, err)
			}
		}

		want := []extract.StatusReported{
			{TrainId: "T1", Id: "R1", Status: domain.ResultUnknown},
			{TrainId: "T1", Id: "R1", Status: domain.ResultDownloaded},
			{TrainId: "T1", Id: "R1", Status: domain.ResultDownloaded},
			{TrainId: "T1", Id: "R1", Status: domain.ResultExtracted},
			{TrainId: "T1", Id: "R1", Status: domain.ResultExtracted},
		}
		if got := reported(t, broker); !cmp.Equal(got, want) {
			t.Errorf("reported: %s", cmp.Diff(want, got))
		}
		if len(puller.pulls) != 1 {
			t.Errorf("extract should reuse retrieved image: pulls = %v", puller.pulls)
		}
		if _, err := os.Stat(testee.ArchivePath("T1")); err != nil {
			t.Errorf("archive: %v", err)
		}
	})

	t.Run("extract retrieves image when it is not retrieved yet", func(t *testing.T) {
		testee, puller, _ := setup(t)
		if err := testee.HandleExtract(
			context.Background(), command(t, mq.ResultServiceExtract, extract.ResultRef{TrainId: "T1"}),
		); err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(puller.pulls, []string{t1Ref}) {
			t.Errorf("pulls: %v", puller.pulls)
		}
	})

	t.Run("failure of retrieval is propagated, without report", func(t *testing.T) {
		testee, _, broker := setup(t)
		err := testee.HandleDownload(
			context.Background(), command(t, mq.ResultServiceDownload, extract.ResultRef{TrainId: "T9"}),
		)
		if !errors.Is(err, xe.ErrTransientIntegration) {
			t.Errorf("got %v", err)
		}
		if got := reported(t, broker); len(got) != 0 {
			t.Errorf("reported: %+v", got)
		}
	})

	t.Run("when extraction fails mid-stream, completion is never reported", func(t *testing.T) {
		a := tarOf(t, entry{"a/", ""}, entry{"a/1.txt", "one"})
		b := tarOf(t, entry{"b/", ""}, entry{"b/2.txt", "0123456789"})
		container := &fakeContainer{streams: map[string]func() io.ReadCloser{
			"/out/a": func() io.ReadCloser { return io.NopCloser(bytes.NewReader(a)) },
			"/out/b": func() io.ReadCloser {
				return &failingReader{r: bytes.NewReader(b), n: 1100, err: errors.New("fake")}
			},
		}}
		puller := &fakePuller{images: map[string]gcr.Image{t1Ref: resultImage(t)}}
		broker := memory.New()
		defer broker.Close()
		testee := extract.NewResultService(
			extract.ResultServiceConfig{Paths: []string{"/out/a", "/out/b"}, OutputDir: t.TempDir()},
			extract.NewPipeline(testRegistry(t), projects, puller, fakeRuntime{container: container}, quietLogger()),
			broker, quietLogger(),
		)

		err := testee.HandleExtract(
			context.Background(), command(t, mq.ResultServiceExtract, extract.ResultRef{TrainId: "T1"}),
		)
		if !errors.Is(err, xe.ErrStreamError) {
			t.Errorf("got %v, want StreamError", err)
		}
		if got := reported(t, broker); len(got) != 0 {
			t.Errorf("reported: %+v", got)
		}
		if _, err := os.Stat(testee.ArchivePath("T1")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("archive: %v", err)
		}
	})

	for name, data := range map[string]any{
		"missing train id":   map[string]string{},
		"train id with path": extract.ResultRef{TrainId: "../etc"},
	} {
		t.Run("it rejects "+name, func(t *testing.T) {
			testee, puller, _ := setup(t)
			err := testee.HandleExtract(context.Background(), command(t, mq.ResultServiceExtract, data))
			if !errors.Is(err, xe.ErrValidation) {
				t.Errorf("got %v, want Validation", err)
			}
			if len(puller.pulls) != 0 {
				t.Errorf("pulled: %v", puller.pulls)
			}
		})
	}

	t.Run("it registers all commands of the result service", func(t *testing.T) {
		testee, _, broker := setup(t)
		d := mq.NewDispatcher(
			"result-service", mq.ResultServiceCommand, broker, quietLogger(),
			mq.ResultServiceDownload, mq.ResultServiceExtract, mq.ResultServiceStatus,
		)
		if err := testee.Register(d); err != nil {
			t.Fatal(err)
		}
		if err := d.Validate(); err != nil {
			t.Error(err)
		}
	})
}

type upload struct {
	Bucket  string
	Object  string
	Entries []entry
}

type fakeUploader struct {
	t       *testing.T
	uploads []upload
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, bucket, object, path string) error {
	if f.err != nil {
		return f.err
	}
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	f.uploads = append(f.uploads, upload{Bucket: bucket, Object: object, Entries: entriesOf(f.t, fp)})
	return nil
}

func TestTrainManager(t *testing.T) {
	setup := func(t *testing.T, uploader *fakeUploader) (*extract.TrainManager, *memory.Broker, string) {
		puller := &fakePuller{images: map[string]gcr.Image{t1Ref: resultImage(t)}}
		broker := memory.New()
		t.Cleanup(func() { broker.Close() })
		work := t.TempDir()
		pipeline := extract.NewPipeline(
			testRegistry(t), projects, puller,
			extract.SnapshotRuntime{Dir: t.TempDir()}, quietLogger(),
		)
		testee := extract.NewTrainManager(
			extract.TrainManagerConfig{Paths: []string{"/out/a"}, WorkDir: work},
			pipeline, uploader, broker, quietLogger(),
		)
		return testee, broker, work
	}

	t.Run("it uploads the archive and emits extracted event", func(t *testing.T) {
		uploader := &fakeUploader{t: t}
		testee, broker, work := setup(t, uploader)

		cmd := command(
			t, mq.TrainManagerExtract, extract.ResultRef{TrainId: "T1"},
			mq.WithMetadata(map[string]any{"trace": "x"}),
		)
		if err := testee.HandleExtract(context.Background(), cmd); err != nil {
			t.Fatal(err)
		}

		want := []upload{{
			Bucket: "trains-t1-results", Object: "results.tar",
			Entries: []entry{{"a/", ""}, {"a/1.txt", "one"}},
		}}
		if !cmp.Equal(uploader.uploads, want) {
			t.Errorf("uploads: %s", cmp.Diff(want, uploader.uploads))
		}

		events := broker.Published(mq.EventKey(mq.TrainManagerExtracted))
		if len(events) != 1 {
			t.Fatalf("events: %+v", events)
		}
		if got := string(events[0].Envelope.Data); got != string(cmd.Data) {
			t.Errorf("data: got %s, want %s", got, cmd.Data)
		}
		if !cmp.Equal(events[0].Envelope.Metadata, cmd.Metadata) {
			t.Errorf("metadata: %v", events[0].Envelope.Metadata)
		}

		if files := try.To(os.ReadDir(work)).OrFatal(t); len(files) != 0 {
			t.Errorf("temporary files remain: %v", files)
		}
	})

	t.Run("when upload fails, it emits nothing", func(t *testing.T) {
		uploader := &fakeUploader{t: t, err: xe.New(xe.TransientIntegration, "fake")}
		testee, broker, _ := setup(t, uploader)

		err := testee.HandleExtract(
			context.Background(), command(t, mq.TrainManagerExtract, extract.ResultRef{TrainId: "T1"}),
		)
		if !errors.Is(err, xe.ErrTransientIntegration) {
			t.Errorf("got %v", err)
		}
		if got := broker.Published(mq.EventKey(mq.TrainManagerExtracted)); len(got) != 0 {
			t.Errorf("events: %+v", got)
		}
	})
}
