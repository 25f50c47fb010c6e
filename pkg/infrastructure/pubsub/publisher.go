package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub
type PubSubAdapter struct {
	Client *pubsub.Client
}

func (a *PubSubAdapter) PublishCloudEvent(ctx context.Context, topicName string, event cloudevents.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling cloud event: %w", err)
	}

	topic := a.Client.Topic(topicName)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing to %s: %w", topicName, err)
	}
	return nil
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct{}

func (p *LogPublisher) PublishCloudEvent(ctx context.Context, topicName string, event cloudevents.Event) error {
	log.Printf("[LogPublisher] MOCK PUBLISH to %s: type=%s source=%s", topicName, event.Type(), event.Source())
	return nil
}
