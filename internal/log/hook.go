package log

import (
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/logfields"
)

// Hook rewrites the fields of every entry before it is formatted: times are
// formatted, durations become seconds, Stringers become text and other
// composite values become compact JSON. Entries logged with a traced context
// are tagged with its trace and span ids.
type Hook struct {
	// TimeFormat formats time.Time fields. Empty leaves them to the
	// formatter.
	TimeFormat string

	// SpanContext adds logfields.TraceID and logfields.SpanID from the
	// entry's context.
	SpanContext bool
}

var _ logrus.Hook = &Hook{}

// NewHook returns a Hook with every rewrite enabled.
func NewHook() *Hook {
	return &Hook{
		TimeFormat:  TimeFormat,
		SpanContext: true,
	}
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(e *logrus.Entry) error {
	failed := map[string]string{}
	for k, v := range e.Data {
		if k == logrus.ErrorKey {
			continue
		}
		fv, replaced, err := formatValue(v, h.TimeFormat)
		if err != nil {
			failed[k+"-"+logrus.ErrorKey] = err.Error()
			continue
		}
		if replaced {
			e.Data[k] = fv
		}
	}
	for k, v := range failed {
		e.Data[k] = v
	}

	if h.SpanContext && e.Context != nil {
		if span := trace.FromContext(e.Context); span != nil {
			sc := span.SpanContext()
			e.Data[logfields.TraceID] = sc.TraceID.String()
			e.Data[logfields.SpanID] = sc.SpanID.String()
		}
	}
	return nil
}
