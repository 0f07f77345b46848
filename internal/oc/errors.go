package oc

import (
	"context"
	"errors"
	"os"

	bolt "go.etcd.io/bbolt"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/component"
	"github.com/appstract/appstract/internal/insurance"
)

// toStatusCode maps an operation error to the closest trace status code.
func toStatusCode(err error) int32 {
	switch {
	case isAny(err, context.Canceled):
		return trace.StatusCodeCancelled
	case isAny(err, context.DeadlineExceeded, os.ErrDeadlineExceeded):
		return trace.StatusCodeDeadlineExceeded
	case isAny(err, bolt.ErrTimeout):
		// Another process held the ledger for the whole lock timeout.
		return trace.StatusCodeUnavailable
	case isAny(err, component.ErrInvalidComponent, os.ErrInvalid):
		return trace.StatusCodeInvalidArgument
	case isAny(err, insurance.ErrIdentityMismatch):
		return trace.StatusCodeFailedPrecondition
	case isAny(err, os.ErrNotExist):
		return trace.StatusCodeNotFound
	case isAny(err, os.ErrExist):
		return trace.StatusCodeAlreadyExists
	case isAny(err, os.ErrPermission):
		return trace.StatusCodePermissionDenied
	default:
		return trace.StatusCodeUnknown
	}
}

func isAny(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
