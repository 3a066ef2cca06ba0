package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/roomcast/chat_backend/config"
	"github.com/roomcast/chat_backend/models"
)

// NATSAdapter is the message-broker transport. All traffic moves over a single
// subject; the envelope's room_id decides the audience.
type NATSAdapter struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(cfg *config.Config) (*NATSAdapter, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Printf("[nats] Connected to %s", cfg.NATSURL)
	return &NATSAdapter{nc: nc, subject: cfg.NATSSubject}, nil
}

func (a *NATSAdapter) Listen(ctx context.Context, d Dispatcher) error {
	ch := make(chan *nats.Msg, 256)
	sub, err := a.nc.ChanSubscribe(a.subject, ch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", a.subject, err)
	}
	defer sub.Unsubscribe()

	log.Printf("[nats] Listening on subject %q", a.subject)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			dispatchEnvelope(d, msg.Data)
		}
	}
}

func (a *NATSAdapter) Publish(ctx context.Context, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := a.nc.Publish(a.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", a.subject, err)
	}
	return nil
}

func (a *NATSAdapter) Close() error {
	a.nc.Close()
	log.Println("[nats] Connection closed")
	return nil
}
