package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ChannelPrefix namespaces the pub/sub channels, one per game.
const ChannelPrefix = "voro:games:"

func channelFor(gameID int64) string {
	return ChannelPrefix + strconv.FormatInt(gameID, 10)
}

func gameFromChannel(channel string) (int64, error) {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return 0, fmt.Errorf("channel %q outside %s", channel, ChannelPrefix)
	}
	return strconv.ParseInt(strings.TrimPrefix(channel, ChannelPrefix), 10, 64)
}

type envelope struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// RedisBridge publishes events through Redis so that every process hosting
// subscribers of a game delivers them. Events are delivered to the local
// hub directly and echoes of its own publications are ignored.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	origin string
	log    logrus.FieldLogger
}

func NewRedisBridge(client *redis.Client, hub *Hub, log logrus.FieldLogger) *RedisBridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisBridge{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
		log:    log,
	}
}

// DialRedis connects to the server at url (redis://...) and checks it.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Notify delivers ev locally and publishes it for other processes. A
// publish failure is returned after local delivery.
func (b *RedisBridge) Notify(ctx context.Context, gameID int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventAction(), err)
	}
	b.hub.Broadcast(gameID, payload)

	msg, err := json.Marshal(envelope{Origin: b.origin, Event: payload})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channelFor(gameID), msg).Err(); err != nil {
		return fmt.Errorf("publish game %d: %w", gameID, err)
	}
	return nil
}

// Run forwards events published by other processes into the local hub
// until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", ChannelPrefix, err)
	}
	b.log.WithField("origin", b.origin).Info("redis bridge subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *RedisBridge) forward(channel string, data []byte) bool {
	gameID, err := gameFromChannel(channel)
	if err != nil {
		b.log.WithError(err).Warn("ignoring redis message")
		return false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.log.WithError(err).WithField("game", gameID).Warn("ignoring malformed redis message")
		return false
	}
	if env.Origin == b.origin {
		return false
	}
	b.hub.Broadcast(gameID, env.Event)
	return true
}
