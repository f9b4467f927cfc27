// Package errors is the error vocabulary of the orchestration core.
//
// Errors made here carry a Kind, which decides how callers react to them
// (see Kind), and remember Locations where they are created and wrapped.
//
//	err := xe.New(xe.NotFound, "train T1 is not found")
//	...
//	return xe.Wrap(err)
//
// Trace(err) lists the locations, outermost first.
package errors

import (
	"fmt"
	"runtime"
)

// Location is a point in source code.
type Location struct {
	Func string `json:"func"`
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%s:%d)", l.Func, l.File, l.Line)
}

// Located is an error marked with the location where it passed.
type Located struct {
	at   Location
	note string
	err  error
}

func (e *Located) Location() Location {
	return e.at
}

func (e *Located) Error() string {
	if e.note == "" {
		return e.err.Error()
	}
	return e.note + ": " + e.err.Error()
}

func (e *Located) Unwrap() error {
	return e.err
}

// Wrap err with the location of the caller.
//
// Wrapping nil gives nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap("", err, 1)
}

// WrapWithNote is Wrap, prefixing the message with note.
func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(note, err, 1)
}

func wrap(note string, err error, depth int) error {
	at := Location{Func: "(unknown func)", File: "?", Line: -1}
	if pc, file, line, ok := runtime.Caller(depth + 1); ok {
		at.File, at.Line = file, line
		if fn := runtime.FuncForPC(pc); fn != nil {
			at.Func = fn.Name()
		}
	}
	return &Located{at: at, note: note, err: err}
}

// Trace lists locations recorded in err's tree, outermost first.
func Trace(err error) []Location {
	trace := []Location{}
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if l, ok := err.(*Located); ok {
			trace = append(trace, l.at)
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		}
	}
	walk(err)
	return trace
}
