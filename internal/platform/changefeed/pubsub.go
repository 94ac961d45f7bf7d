package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher broadcasts configuration change events on a Pub/Sub topic so
// other instances refresh without waiting for their poll interval.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed change event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("changefeed publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// Publish enqueues the change event on the configured topic.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.topic == nil {
		return errors.New("changefeed publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "section", event.Section)
	setAttr(attrs, "origin", event.Origin)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ Publisher = (*PubSubPublisher)(nil)
