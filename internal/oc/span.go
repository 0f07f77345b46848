// Package oc wraps OpenCensus tracing for the virtualization and ledger
// operations.
package oc

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
)

// DefaultSampler records every span. The diagnostic tools install it when
// tracing is requested.
var DefaultSampler = trace.AlwaysSample()

// StartSpan starts a span named name. When the span is recorded, the log
// entry in ctx is re-attached to the returned context so that entries logged
// during the operation carry the span's ids.
func StartSpan(ctx context.Context, name string, o ...trace.StartOption) (context.Context, *trace.Span) {
	ctx, span := trace.StartSpan(ctx, name, o...)
	if !span.IsRecordingEvents() {
		return ctx, span
	}
	return log.UpdateContext(ctx), span
}

// SetSpanStatus records the outcome of the operation traced by span. A nil
// err is OK; otherwise the code is derived from err and the innermost cause
// is added as an attribute.
func SetSpanStatus(span *trace.Span, err error) {
	if err == nil {
		span.SetStatus(trace.Status{Code: trace.StatusCodeOK})
		return
	}
	if cause := errors.Cause(err); cause != err {
		span.AddAttributes(trace.StringAttribute(logfields.Cause, cause.Error()))
	}
	span.SetStatus(trace.Status{Code: toStatusCode(err), Message: err.Error()})
}
