package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Event names yang dikonsumsi layer realtime.
const (
	EventUserRegistered = "user_registered"
	EventContactAdded   = "contact_added"
)

// Broadcaster adalah capability injeksi untuk mengumumkan perubahan ke
// layer realtime. Reconciler tidak boleh pegang koneksi socket sendiri —
// cukup emit lewat interface ini.
type Broadcaster interface {
	Emit(ctx context.Context, event, target string, payload any) error
}

/* ==========================
   Redis pub/sub implementation
========================== */

type RedisBroadcaster struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisBroadcaster(addr, password string, log *zap.Logger) *RedisBroadcaster {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisBroadcaster{rdb: rdb, log: log}
}

// Emit mem-publish event JSON ke channel per target; target kosong berarti
// channel broadcast umum. Layer websocket men-subscribe channel ini.
func (b *RedisBroadcaster) Emit(ctx context.Context, event, target string, payload any) error {
	msg, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		return err
	}

	channel := "events:broadcast"
	if target != "" {
		channel = "events:user:" + target
	}

	if err := b.rdb.Publish(ctx, channel, msg).Err(); err != nil {
		b.log.Warn("publish event gagal",
			zap.String("event", event),
			zap.String("channel", channel),
			zap.Error(err))
		return err
	}
	return nil
}

func (b *RedisBroadcaster) Close() error {
	return b.rdb.Close()
}

/* ==========================
   Nop (tests / Redis off)
========================== */

type NopBroadcaster struct{}

func (NopBroadcaster) Emit(ctx context.Context, event, target string, payload any) error {
	return nil
}
