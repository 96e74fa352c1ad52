package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PublisherManager fans events out to a set of watermill publishers. A
// subscriber registers a publisher for a topic; every published event is
// serialized once and distributed to all of them, stamped with a
// per-manager sequence number in the order Publish was called.
type PublisherManager struct {
	mu             sync.Mutex
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (pm *PublisherManager) SubscribePublisher(topic string, publisher message.Publisher) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.publishers[topic] = append(pm.publishers[topic], publisher)
}

func (pm *PublisherManager) Publish(topic string, event *Event) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", pm.sequenceNumber))
	msg.Metadata.Set("event_type", string(event.Type))
	pm.sequenceNumber++

	for _, publisher := range pm.publishers[topic] {
		if err := publisher.Publish(topic, msg); err != nil {
			log.Warn().Err(err).Str("topic", topic).Str("event_type", string(event.Type)).
				Msg("failed to publish event")
		}
	}

	return nil
}

// PublishBlind publishes and only logs failures; the manager's state
// transitions never depend on event delivery.
func (pm *PublisherManager) PublishBlind(event *Event) {
	if pm == nil {
		return
	}
	if err := pm.Publish(TopicChat, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}
}
