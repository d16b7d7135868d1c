package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute constructors for the pipeline's span vocabulary. The key set is
// closed: spans carry these identifiers and nothing tenant-payload-derived.

func OrganizationAttr(id string) attribute.KeyValue {
	return attribute.String(OrganizationIDKey, id)
}

func WorkflowAttr(id string) attribute.KeyValue {
	return attribute.String(WorkflowIDKey, id)
}

func WebhookAttr(id string) attribute.KeyValue {
	return attribute.String(WebhookIDKey, id)
}

func ExecutionAttr(id string) attribute.KeyValue {
	return attribute.String(ExecutionIDKey, id)
}

func NodeAttrs(id, nodeType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NodeIDKey, id),
		attribute.String(NodeTypeKey, nodeType),
	}
}

// SetError marks the span failed and records the error as a span event.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}
