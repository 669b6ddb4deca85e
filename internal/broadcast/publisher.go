package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aquasim-server/internal/telemetry"
)

// Publisher delivers one record to the topic of its organism. Delivery is at
// most once; callers never retry.
type Publisher interface {
	Publish(ctx context.Context, kind telemetry.Kind, record any) error
}

// Event is the envelope every transport carries
type Event struct {
	Name        string          `json:"event"`
	Topic       telemetry.Kind  `json:"topic"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"published_at"`
}

func NewEvent(kind telemetry.Kind, record any, now time.Time) (Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	return Event{
		Name:        kind.EventName(),
		Topic:       kind,
		Data:        data,
		PublishedAt: now.UTC(),
	}, nil
}
