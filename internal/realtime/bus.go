package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/TheVenters/VentApp/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one row-level change pushed over a channel.
type Event struct {
	Op    Op           `json:"op"`
	Class entity.Class `json:"class"`
	Row   entity.Row   `json:"row"`
}

// envelope tags published events with the emitting bus so the redis
// mirror does not redeliver a bus's own publishes to it.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

const channelPrefix = "changes:"

// Bus fans change events out to local subscribers and mirrors them over
// redis pub/sub so every instance sees every change. A nil redis client
// keeps the bus fully functional within one process.
type Bus struct {
	id     string
	redis  *redis.Client
	pubsub *redis.PubSub

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewBus(redisClient *redis.Client) *Bus {
	b := &Bus{
		id:    uuid.NewString(),
		redis: redisClient,
		subs:  map[string]map[*Subscription]struct{}{},
	}
	if redisClient != nil {
		b.pubsub = redisClient.PSubscribe(context.Background(), channelPrefix+"*")
		go b.forwardRedis()
	}
	return b
}

// Subscribe registers fn for events on channel until the returned handle
// is cancelled. fn never runs after Cancel returns.
func (b *Bus) Subscribe(channel string, fn func(Event)) *Subscription {
	sub := &Subscription{bus: b, channel: channel, fn: fn}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[*Subscription]struct{}{}
	}
	b.subs[channel][sub] = struct{}{}
	return sub
}

// Publish delivers the event to local subscribers of channel and mirrors
// it to redis for other instances.
func (b *Bus) Publish(ctx context.Context, channel string, ev Event) error {
	b.dispatch(channel, ev)

	if b.redis == nil {
		return nil
	}
	payload, err := json.Marshal(envelope{Origin: b.id, Event: ev})
	if err != nil {
		return err
	}
	if err := b.redis.Publish(ctx, channelPrefix+channel, payload).Err(); err != nil {
		log.Printf("redis publish error: %v", err)
		return err
	}
	return nil
}

func (b *Bus) Close() {
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
}

func (b *Bus) dispatch(channel string, ev Event) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs[channel]))
	for sub := range b.subs[channel] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(ev)
	}
}

func (b *Bus) forwardRedis() {
	for msg := range b.pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Printf("realtime: bad payload on %s: %v", msg.Channel, err)
			continue
		}
		if env.Origin == b.id {
			continue
		}
		b.dispatch(strings.TrimPrefix(msg.Channel, channelPrefix), env.Event)
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.channel]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.channel)
		}
	}
}

// Subscription is a cancellable handle on one channel subscription.
type Subscription struct {
	bus     *Bus
	channel string
	fn      func(Event)

	mu        sync.Mutex
	cancelled bool
}

// Cancel detaches the subscription. Once it returns, no further
// deliveries happen, including events already in flight.
func (s *Subscription) Cancel() {
	s.bus.remove(s)
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Channel reports the channel this subscription listens on.
func (s *Subscription) Channel() string {
	return s.channel
}

func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.fn(ev)
}
