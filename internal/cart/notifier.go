package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Event is a cart change notification.
type Event struct {
	Type          enums.CartEventType    `json:"type"`
	SessionID     string                 `json:"sessionId"`
	Version       int64                  `json:"version"`
	ItemCount     int                    `json:"itemCount"`
	CouponRemoved *pricing.CouponRemoval `json:"couponRemoved,omitempty"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

// Notifier fans cart events out to listeners.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type channelBroker interface {
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string) (pkgredis.Subscription, error)
	CartChannel(sessionID string) string
}

// RedisNotifier publishes events on a per-session Redis channel.
type RedisNotifier struct {
	broker channelBroker
	logg   *logger.Logger
}

func NewRedisNotifier(broker channelBroker, logg *logger.Logger) *RedisNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisNotifier{broker: broker, logg: logg}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.broker.Publish(ctx, n.broker.CartChannel(event.SessionID), payload)
}

// Watch streams the session's events until ctx is done. The returned channel
// is closed when the subscription ends.
func (n *RedisNotifier) Watch(ctx context.Context, sessionID string) (<-chan Event, error) {
	sub, err := n.broker.Subscribe(ctx, n.broker.CartChannel(sessionID))
	if err != nil {
		return nil, fmt.Errorf("watch cart: %w", err)
	}
	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		messages := sub.Messages()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.logg.Warn(n.logg.WithField(ctx, "channel", msg.Channel), "cart event decode failed")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
