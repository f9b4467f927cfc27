// Package filewatch ties lifetimes of processes to files they have read.
package filewatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// UntilModified returns a context that is canceled
// when one of target files is modified (= written, created, removed, or renamed).
//
// Each file is watched through its parent directory, so replacing the file
// (as mounted ConfigMaps are updated) is also detected.
// When a target is a directory, any change in the directory is detected.
//
// # Args
//
// - ctx: context.Context
//
// - logger: the change is logged with it.
//
// - targets ...string: paths to be watched.
//
// # Returns
//
// - context.Context: context that is canceled when one of targets is modified.
// context.Cause tells which one.
//
// - func(): cancel function.
//
// - error: error caused when it fails to start watching.
// If error is not nil, both of the the context and the cancel function are nil.
func UntilModified(ctx context.Context, logger logrus.FieldLogger, targets ...string) (context.Context, func(), error) {
	cctx, cancel := context.WithCancelCause(ctx)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		cancel(err)
		return nil, nil, err
	}

	// watched directory -> names to be noticed. nil means any.
	interests := map[string]map[string]struct{}{}
	for _, t := range targets {
		abs, err := filepath.Abs(t)
		if err != nil {
			w.Close()
			cancel(err)
			return nil, nil, err
		}
		if isDir(abs) {
			interests[abs] = nil
			continue
		}
		dir := filepath.Dir(abs)
		names, ok := interests[dir]
		if ok && names == nil {
			continue
		}
		if names == nil {
			names = map[string]struct{}{}
			interests[dir] = names
		}
		names[filepath.Base(abs)] = struct{}{}
	}

	for dir := range interests {
		if err := w.Add(dir); err != nil {
			w.Close()
			cancel(err)
			return nil, nil, err
		}
	}

	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("error on watching files")
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				names := interests[filepath.Dir(event.Name)]
				if names != nil {
					if _, ok := names[filepath.Base(event.Name)]; !ok {
						continue
					}
				}
				cause := fmt.Errorf("%s is updated (%s)", event.Name, event.Op.String())
				logger.Info(cause.Error())
				cancel(cause)
				return
			}
		}
	}()

	return cctx, func() { cancel(nil) }, nil
}
