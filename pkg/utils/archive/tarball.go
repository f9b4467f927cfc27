// Package archive combines tar streams.
package archive

import (
	"archive/tar"
	"context"
	"io"
)

type walkBreak struct {
	error string
}

func (w walkBreak) Error() string {
	return w.error
}

// WalkBreak is returned by TarWalker to stop walking without error.
func WalkBreak() walkBreak {
	return walkBreak{}
}

// handler of tar entry.
//
// args:
//   - header: header of tar entry
//   - payload: `io.Reader` points the content of the tar entry.
//   - err: error happens when get a tar entry.
//     err is never `io.EOF`.
//     Because walking focuses each entries, not whole tar file.
//
// return:
//
//	any error which caused in a handler.
//	You can early terminate with return `WalkBreak()`
type TarWalker func(header *tar.Header, payload io.Reader, err error) error

// traverse tar entries.
//
// args:
//   - from io.Reader: Reader object refers *.tar stream.
//     This function does not close `from`.
//   - walker TarWalker: tar entry handler.
//
// return: error, caused reading tar or returned by walker.
//
//	If nothing happens, it returns `nil`.
func TarWalk(from io.Reader, walker TarWalker) error {
	tarin := tar.NewReader(from)
	for {
		header, err := tarin.Next()
		if err == io.EOF {
			return nil
		}
		err = walker(header, tarin, err)
		if err == nil {
			continue
		}
		switch err.(type) {
		case walkBreak:
			return nil
		default:
			return err
		}
	}
}

// Merge copies all entries of the tar stream src into dest, in order.
//
// dest is not closed. Errors reading src (including malformed tar) abort merging,
// leaving dest with the entries copied so far.
func Merge(ctx context.Context, dest *tar.Writer, src io.Reader) error {
	return TarWalk(
		WithContext(ctx, src),
		func(header *tar.Header, payload io.Reader, err error) error {
			if err != nil {
				return err
			}
			if err := dest.WriteHeader(header); err != nil {
				return err
			}
			if _, err := io.Copy(dest, payload); err != nil {
				return err
			}
			return nil
		},
	)
}

// WithContext returns a reader which fails once ctx is done.
func WithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
	}
	return r.r.Read(p)
}
