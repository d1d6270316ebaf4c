// Package notifications publishes domain events to Redis and fans them out to websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"yatube/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventPostCreated    = "post_created"
	EventCommentCreated = "comment_created"
	EventUserFollowed   = "user_followed"
)

const (
	userChannelPrefix = "notifications:user:"
	// BroadcastChannel carries events for every connected user.
	BroadcastChannel = "notifications:broadcast"
)

// Event is the JSON envelope written to Redis and forwarded verbatim to sockets.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher is the subset of Notifier used by services.
type Publisher interface {
	PublishUser(ctx context.Context, userID uint, event Event) error
	PublishBroadcast(ctx context.Context, event Event) error
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends an event to a single user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, event Event) error {
	return n.publish(ctx, UserChannel(userID), event)
}

// PublishBroadcast sends an event to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, event Event) error {
	return n.publish(ctx, BroadcastChannel, event)
}

func (n *Notifier) publish(ctx context.Context, channel string, event Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return err
	}
	observability.NotificationsPublished.WithLabelValues(event.Type).Inc()
	return nil
}

// StartPatternSubscriber subscribes to every user channel and the broadcast channel and
// calls onMessage for each incoming message. It returns once the subscription is active.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in notification subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel built by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
