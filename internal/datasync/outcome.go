package datasync

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OutcomeKind classifies how a load ended.
type OutcomeKind int

const (
	// Skipped means no request was made: one is already in flight for the
	// same URL, the URL was already loaded, or no URL is configured.
	Skipped OutcomeKind = iota
	// Loaded carries data.
	Loaded
	// MissingAuth means no bearer token was available.
	MissingAuth
	// Aborted means the request was cancelled and should be discarded
	// silently.
	Aborted
	// Failed carries a readable message: HTTP status, network or decode
	// failure.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case MissingAuth:
		return "missing_auth"
	case Aborted:
		return "aborted"
	case Failed:
		return "error"
	default:
		return "skipped"
	}
}

var (
	ErrMissingAuth = errors.New("missing auth token")
	ErrAborted     = errors.New("request aborted")
)

// Outcome is the terminal result of a load.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Data  T
	Error string
}

// Err returns the outcome as an error, or nil for Loaded and Skipped.
func (o Outcome[T]) Err() error {
	switch o.Kind {
	case MissingAuth:
		return ErrMissingAuth
	case Aborted:
		return ErrAborted
	case Failed:
		return errors.New(o.Error)
	}
	return nil
}

func loaded[T any](v T) Outcome[T] { return Outcome[T]{Kind: Loaded, Data: v} }
func skipped[T any]() Outcome[T] { return Outcome[T]{Kind: Skipped} }
func missingAuth[T any]() Outcome[T] { return Outcome[T]{Kind: MissingAuth} }
func aborted[T any]() Outcome[T] { return Outcome[T]{Kind: Aborted} }
func failed[T any](msg string) Outcome[T] { return Outcome[T]{Kind: Failed, Error: msg} }

// isCancellation treats any cancellation shape as an abort: the request
// context being done, or an error wrapping context.Canceled or ErrAborted.
func isCancellation(ctx context.Context, err error) bool {
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrAborted)
}

// describe renders any failure value as a message, whatever its type.
func describe(v any) string {
	var msg string
	switch x := v.(type) {
	case nil:
		msg = ""
	case error:
		msg = x.Error()
	case string:
		msg = x
	case fmt.Stringer:
		msg = x.String()
	default:
		msg = fmt.Sprintf("%v", x)
	}
	if strings.TrimSpace(msg) == "" {
		return "Unknown error"
	}
	return msg
}
