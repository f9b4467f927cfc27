package extract_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	xe "github.com/opst/pht-central/pkg/errors"
	"github.com/opst/pht-central/pkg/extract"
	"github.com/opst/pht-central/pkg/utils/try"
)

func TestSnapshotRuntime(t *testing.T) {
	type Then struct {
		entries []entry
	}
	theory := func(path string, then Then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			container := try.To(extract.SnapshotRuntime{Dir: dir}.Create(ctx, resultImage(t))).OrFatal(t)
			defer container.Remove()

			stream := try.To(container.Archive(ctx, path)).OrFatal(t)
			defer stream.Close()

			if got := entriesOf(t, stream); !cmp.Equal(got, then.entries) {
				t.Errorf("entries: %s", cmp.Diff(then.entries, got))
			}
		}
	}

	t.Run("directory is archived under its base name", theory(
		"/out/a", Then{entries: []entry{{"a/", ""}, {"a/1.txt", "one"}}},
	))
	t.Run("trailing slash is ignored", theory(
		"/out/b/", Then{entries: []entry{{"b/", ""}, {"b/2.txt", "two"}, {"b/3.txt", "three"}}},
	))
	t.Run("file is archived by its name", theory(
		"/etc/hosts", Then{entries: []entry{{"hosts", "localhost"}}},
	))

	t.Run("missing path fails the stream", func(t *testing.T) {
		ctx := context.Background()
		container := try.To(extract.SnapshotRuntime{Dir: t.TempDir()}.Create(ctx, resultImage(t))).OrFatal(t)
		defer container.Remove()

		stream := try.To(container.Archive(ctx, "/nowhere")).OrFatal(t)
		defer stream.Close()
		if _, err := io.ReadAll(stream); !errors.Is(err, xe.ErrNotFound) {
			t.Errorf("got %v, want NotFound", err)
		}
	})

	t.Run("Remove deletes the snapshot", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()
		container := try.To(extract.SnapshotRuntime{Dir: dir}.Create(ctx, resultImage(t))).OrFatal(t)

		if err := container.Remove(); err != nil {
			t.Fatal(err)
		}
		if files := try.To(os.ReadDir(dir)).OrFatal(t); len(files) != 0 {
			t.Errorf("remains: %v", files)
		}
	})
}
