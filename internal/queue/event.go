// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumer that move them.
package queue

// FilmsQueriedQueue is the durable queue carrying FilmsQueriedEvent messages.
const FilmsQueriedQueue = "films.queried"

// FilmsQueriedEvent is published after every successful film query.  It
// carries enough information for downstream consumers to audit or analyze
// query traffic without touching the primary database.
type FilmsQueriedEvent struct {
	Filter     string `json:"filter"` // trimmed starting letter; empty when unfiltered
	Count      int    `json:"count"`
	DurationMS int64  `json:"duration_ms"`
	QueriedAt  string `json:"queried_at"` // RFC 3339, UTC
}
