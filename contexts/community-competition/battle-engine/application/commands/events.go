package commands

import (
	"encoding/json"
	"time"

	"stemstation/contexts/community-competition/battle-engine/ports"
)

func newBattleEnvelope(
	eventID string,
	eventType string,
	battleID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Command-side events are partitioned by battle for stable ordering on
	// battle-scoped consumers.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "battle-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "battle_id",
		PartitionKey:     battleID,
		Data:             payload,
	}, nil
}
