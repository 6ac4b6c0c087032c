// Package queue defines message payloads exchanged over the message broker
// and the consumer that executes them.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/deal-finder/internal/ingest"
)

// DefaultFetchQueue is the queue carrying fetch requests when none is configured.
const DefaultFetchQueue = "deals.fetch"

// FetchRequestedEvent is published when a client asks for an ingestion run.
// It carries the whole job so the consumer needs no other lookup.
type FetchRequestedEvent struct {
	Job         ingest.Job `json:"job"`
	RequestedAt string     `json:"requested_at"`
}

// EncodeFetchRequested wraps job in an event stamped with the current time.
func EncodeFetchRequested(job ingest.Job) ([]byte, error) {
	return json.Marshal(FetchRequestedEvent{
		Job:         job,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// DecodeFetchRequested parses a message body.  Events without a job id are
// rejected.
func DecodeFetchRequested(body []byte) (FetchRequestedEvent, error) {
	var ev FetchRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return FetchRequestedEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Job.ID == "" {
		return FetchRequestedEvent{}, errors.New("fetch event without job_id")
	}
	return ev, nil
}
