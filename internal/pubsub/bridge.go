package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cambohq/marketplace-api/internal/dto"
)

// wireEvent is the cross-node envelope. Source carries the publishing node id
// so a node never re-delivers its own events.
type wireEvent struct {
	Source string        `json:"source"`
	Topic  string        `json:"topic"`
	Event  dto.ChatEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

// Bridge extends a local broker with cross-node fan-out over Redis pubsub and
// NATS. Either backend may be nil; the bridge then degrades to whatever is
// available, down to purely in-process delivery.
type Bridge struct {
	local       Broker
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	natsQueue   string
	nodeID      string
	logger      zerolog.Logger
}

// NewBridge wraps the local broker with Redis/NATS relays derived from the
// channel base, e.g. "market:events".
func NewBridge(local Broker, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Bridge {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":chat"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &Bridge{
		local:       local,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		natsQueue:   "market-chat",
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "pubsub_bridge").Logger(),
	}
}

// Start launches the consumers that re-broadcast events from other nodes.
func (b *Bridge) Start(ctx context.Context) {
	if b.redis != nil && b.redisStream != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Publish delivers locally and relays to the cross-node backends.
func (b *Bridge) Publish(ctx context.Context, topic string, event dto.ChatEvent) {
	b.local.Publish(ctx, topic, event)

	if b.redis == nil && b.nats == nil {
		return
	}

	payload, err := json.Marshal(wireEvent{
		Source: b.nodeID,
		Topic:  topic,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal chat event for relay")
		return
	}

	if b.redis != nil && b.redisStream != "" {
		if err := b.redis.Publish(ctx, b.redisStream, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("failed to relay chat event via redis")
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("failed to relay chat event via nats")
		}
	}
}

// Subscribe delegates to the local broker.
func (b *Bridge) Subscribe(topic string) (<-chan dto.ChatEvent, func()) {
	return b.local.Subscribe(topic)
}

func (b *Bridge) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		b.handleWireEvent(ctx, []byte(msg.Payload))
	}
}

func (b *Bridge) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, b.natsQueue, func(msg *nats.Msg) {
		b.handleWireEvent(ctx, msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (b *Bridge) handleWireEvent(ctx context.Context, data []byte) {
	var event wireEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid chat wire event")
		return
	}

	if event.Source == b.nodeID {
		return
	}

	b.local.Publish(ctx, event.Topic, event.Event)
}
