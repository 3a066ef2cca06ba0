package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	"github.com/roomcast/chat_backend/config"
	"github.com/roomcast/chat_backend/models"
)

// PubSubAdapter is the cloud-queue transport, backed by Google Cloud Pub/Sub.
// Credentials come from Application Default Credentials.
type PubSubAdapter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
}

func NewPubSub(ctx context.Context, cfg *config.Config) (*PubSubAdapter, error) {
	if cfg.GCloudProjectID == "" {
		return nil, errors.New("GCLOUD_PROJECT_ID is required for the gcloud backend")
	}

	client, err := pubsub.NewClient(ctx, cfg.GCloudProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pub/sub client: %w", err)
	}

	log.Printf("[gcloud] Pub/Sub client ready for project %s", cfg.GCloudProjectID)
	return &PubSubAdapter{
		client: client,
		topic:  client.Topic(cfg.GCloudTopicID),
		sub:    client.Subscription(cfg.GCloudSubscriptionID),
	}, nil
}

func (a *PubSubAdapter) Listen(ctx context.Context, d Dispatcher) error {
	log.Printf("[gcloud] Listening on subscription %q", a.sub.ID())

	// Messages are acked unconditionally, including decode failures: delivery
	// is at-most-once and a malformed message must not loop through redelivery.
	err := a.sub.Receive(ctx, func(_ context.Context, m *pubsub.Message) {
		dispatchEnvelope(d, m.Data)
		m.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pub/sub receive failed: %w", err)
	}
	return nil
}

func (a *PubSubAdapter) Publish(ctx context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	result := a.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", a.topic.ID(), err)
	}
	return nil
}

func (a *PubSubAdapter) Close() error {
	a.topic.Stop()
	err := a.client.Close()
	log.Println("[gcloud] Pub/Sub client closed")
	return err
}
