package events

import (
	"encoding/json"
	"fmt"
)

// Message is one raw event as received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel until cancel is
	// called.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// Decode unmarshals m into the event type published on its topic.
func Decode(m Message) (any, error) {
	var event any
	switch m.Topic {
	case TopicFetchCompleted:
		event = &FetchCompleted{}
	case TopicSyncCompleted:
		event = &SyncCompleted{}
	case TopicSyncFailed:
		event = &SyncFailed{}
	case TopicActionCompleted:
		event = &ActionCompleted{}
	default:
		return nil, fmt.Errorf("unknown event topic %q", m.Topic)
	}
	if err := json.Unmarshal(m.Data, event); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", m.Topic, err)
	}
	return event, nil
}
