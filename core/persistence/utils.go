package persistence

import (
	"time"

	"github.com/asaidimu/go-n1ql/core/schema"
)

func createEvent(
	eventType EventType,
	operation string,
	connection string,
	collection string,
	input any,
	output any,
	query any,
	err *string,
	issues []schema.Issue,
	startTime time.Time,
) Event {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	return Event{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Connection: connection,
		Collection: collection,
		Input:      input,
		Output:     output,
		Error:      err,
		Issues:     issues,
		Query:      query,
		Duration:   duration,
	}
}

// merge overlays values on a copy of base.
func merge(base, values schema.Document) schema.Document {
	out := make(schema.Document, len(base)+len(values))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

// copyDocument returns a shallow copy of doc.
func copyDocument(doc schema.Document) schema.Document {
	return merge(doc, nil)
}

// withContext returns a copy of e with key set in its context.
func (e Event) withContext(key string, value any) Event {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	e.Context = ctx
	return e
}
