package oc

import (
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/appstract/appstract/internal/log"
	"github.com/appstract/appstract/internal/logfields"
)

// spanMessage is the message of every exported span entry.
const spanMessage = "Span"

// LogrusExporter is a trace.Exporter that writes each finished span as one
// log entry. Failed spans are logged at error level with the status as the
// error; all others at debug level.
type LogrusExporter struct{}

var _ trace.Exporter = &LogrusExporter{}

func (*LogrusExporter) ExportSpan(s *trace.SpanData) {
	fields := logrus.Fields{
		logfields.Name:      s.Name,
		logfields.TraceID:   s.TraceID.String(),
		logfields.SpanID:    s.SpanID.String(),
		logfields.StartTime: log.FormatTime(s.StartTime),
		logfields.EndTime:   log.FormatTime(s.EndTime),
		logfields.Duration:  s.EndTime.Sub(s.StartTime),
	}
	if s.HasRemoteParent || s.ParentSpanID != (trace.SpanID{}) {
		fields[logfields.ParentSpanID] = s.ParentSpanID.String()
	}
	for k, v := range s.Attributes {
		fields[k] = v
	}

	level := logrus.DebugLevel
	if s.Status.Code != trace.StatusCodeOK {
		level = logrus.ErrorLevel
		fields[logrus.ErrorKey] = s.Status.Message
		fields[logfields.StatusCode] = s.Status.Code
	}

	entry := log.L.WithFields(fields)
	entry.Time = s.StartTime
	entry.Log(level, spanMessage)
}
