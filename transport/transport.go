// Package transport bridges external pub/sub backends to the broadcast router.
// One Adapter interface, three interchangeable implementations; the router
// never varies per transport.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/roomcast/chat_backend/config"
	"github.com/roomcast/chat_backend/models"
)

// Dispatcher is the router's inbound entry point. Adapters call it exactly
// once per delivered message; retry and ack policy stays inside the adapter.
type Dispatcher interface {
	Dispatch(roomID string, payload []byte)
}

// Adapter is one pub/sub backend.
type Adapter interface {
	// Listen consumes inbound messages and hands them to d until ctx is done.
	Listen(ctx context.Context, d Dispatcher) error

	// Publish sends one envelope to the shared transport channel.
	Publish(ctx context.Context, env models.Envelope) error

	Close() error
}

// New builds the adapter selected by PUBSUB_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Adapter, error) {
	switch cfg.PubSubBackend {
	case "nats":
		return NewNATS(cfg)
	case "redis":
		return NewRedis(ctx, cfg)
	case "gcloud":
		return NewPubSub(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown pub/sub backend %q", cfg.PubSubBackend)
	}
}

// dispatchEnvelope decodes one raw transport payload and routes it. Messages
// that fail to decode or carry no room_id are dropped with a log line; a bad
// message must never take the listener down.
func dispatchEnvelope(d Dispatcher, data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("error decoding transport message: %v", err)
		return
	}
	if env.RoomID == "" {
		log.Println("transport message without room_id - ignoring")
		return
	}
	d.Dispatch(env.RoomID, data)
}
