package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a Firestore failure the way the services branch on it.
type Kind uint8

const (
	KindOther Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

// Aborted covers transactions that lost on contention after every retry.
var kindByCode = map[codes.Code]Kind{
	codes.NotFound:           KindNotFound,
	codes.AlreadyExists:      KindConflict,
	codes.FailedPrecondition: KindConflict,
	codes.Aborted:            KindConflict,
	codes.Unavailable:        KindUnavailable,
	codes.ResourceExhausted:  KindUnavailable,
	codes.Internal:           KindUnavailable,
}

// Error is the repositories.RepositoryError returned by the Firestore repositories.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.Kind == KindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Kind == KindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == KindUnavailable }

// NotFound reports a lookup that resolved to no document, e.g. inside a transaction.
func NotFound(op, detail string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: errors.New(detail)}
}

// Conflict reports a uniqueness violation such as an order number already reserved.
func Conflict(op, detail string) *Error {
	return &Error{Op: op, Kind: KindConflict, Err: errors.New(detail)}
}

// WrapError turns client errors into *Error. Cancellation surfaces as the context error,
// and errors without a gRPC status (returned by transaction callbacks) keep their identity.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var repoErr *Error
	if errors.As(err, &repoErr) {
		if repoErr.Op == "" {
			repoErr.Op = op
		}
		return repoErr
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return &Error{Op: op, Kind: kindByCode[st.Code()], Err: err}
}

// IsNotFound reports whether err is a gRPC NotFound from the client.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
